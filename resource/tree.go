// Package resource implements the URI-Path prefix tree that a CoAP
// server dispatches requests against, modeled on the teacher's
// Handler/ServeCOAP interface but generalized from a single flat
// handler into a tree of per-segment nodes with one handler per
// method.
package resource

import (
	"github.com/GiterLab/coap-engine/message"
)

// Method indexes the four request methods a node may handle.
type Method int

// Supported methods, matching the spec's "up to four handlers" rule.
const (
	MethodGET Method = iota
	MethodPOST
	MethodPUT
	MethodDELETE
	methodCount
)

func methodFromCode(code message.Code) (Method, bool) {
	switch code {
	case message.GET:
		return MethodGET, true
	case message.POST:
		return MethodPOST, true
	case message.PUT:
		return MethodPUT, true
	case message.DELETE:
		return MethodDELETE, true
	default:
		return 0, false
	}
}

// Engine is the minimal surface a handler needs from the running
// engine: capturing a separate response. Defined locally to avoid a
// resource -> engine import cycle (the engine package imports
// resource, not the other way around).
type Engine interface {
	// CaptureSeparateResponse records enough of the inbound request's
	// context (peer, token, type) to submit a deferred response later,
	// returning an opaque handle for that submission.
	CaptureSeparateResponse(peer string, req *message.Message) SeparateHandle
}

// SeparateHandle identifies a deferred response context captured by
// Engine.CaptureSeparateResponse.
type SeparateHandle string

// HandlerFunc serves one method on one node. It must call exactly one
// terminal operation on resp (Serialize or SerializeEmptyAck) before
// returning; failing to do so is a handler bug, not a framework error.
type HandlerFunc func(req *message.Message, resp *ResponseBuilder, eng Engine)

// Node is one path segment in the resource tree. The root node
// represents the empty path and is never attached to anything.
type Node struct {
	segment    string
	attributes string
	handlers   [methodCount]HandlerFunc
	children   []*Node
	parent     *Node
}

// NewNode creates a detached node for path segment. attributes is the
// RFC 6690 link-format attribute string advertised for this node under
// /.well-known/core (e.g. `;rt="temperature";if="sensor"`), or empty.
func NewNode(segment, attributes string) *Node {
	return &Node{segment: segment, attributes: attributes}
}

// Segment returns the node's path component.
func (n *Node) Segment() string { return n.segment }

// Attributes returns the node's link-format attribute string.
func (n *Node) Attributes() string { return n.attributes }

// Parent returns the node's parent, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's direct children in attach order.
func (n *Node) Children() []*Node { return n.children }

// SetHandler installs fn as the handler for method m, replacing any
// previous handler. A nil fn removes the handler.
func (n *Node) SetHandler(m Method, fn HandlerFunc) {
	n.handlers[m] = fn
}

// Handler returns the handler installed for method m, or nil.
func (n *Node) Handler(m Method) HandlerFunc {
	return n.handlers[m]
}

// Attach places child as a direct child of parent. It fails (returning
// false, not an error) if parent already has a child with the same
// path segment, or if child is an ancestor of parent (which would
// create a cycle).
func Attach(parent, child *Node) bool {
	if parent == nil || child == nil || parent == child {
		return false
	}
	for _, c := range parent.children {
		if c.segment == child.segment {
			return false
		}
	}
	for a := parent; a != nil; a = a.parent {
		if a == child {
			return false
		}
	}
	child.parent = parent
	parent.children = append(parent.children, child)
	return true
}

// Detach removes node (and its entire subtree, implicitly — the
// subtree is simply unreachable once its root is unlinked) from its
// parent. It is a no-op if node has no parent.
func Detach(node *Node) {
	if node == nil || node.parent == nil {
		return
	}
	siblings := node.parent.children
	for i, c := range siblings {
		if c == node {
			node.parent.children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	node.parent = nil
}

// Lookup walks the tree from root following segments in order,
// returning the last matching node, or nil if any segment has no
// matching child.
func Lookup(root *Node, segments []string) *Node {
	cur := root
	for _, seg := range segments {
		var next *Node
		for _, c := range cur.children {
			if c.segment == seg {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}
