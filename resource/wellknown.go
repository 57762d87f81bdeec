package resource

import (
	"strings"

	"github.com/GiterLab/coap-engine/message"
)

// WellKnownCore builds the built-in handler for `/.well-known/core`
// (spec §4.6 step 5): a depth-first walk of root emitting one
// link-format entry per node that carries a non-empty attribute
// string. This is deliberately not a full RFC 6690 generator — it
// supports the attribute string a resource was registered with and
// nothing beyond that (query filtering, resource-type negotiation),
// matching the spec's Non-goal on link-format generation.
func WellKnownCore(root *Node) HandlerFunc {
	return func(req *message.Message, resp *ResponseBuilder, eng Engine) {
		var b strings.Builder
		walkLinks(root, "", &b)

		resp.SetCode(message.Content)
		resp.AddOption(message.NewUint(message.ContentFormat, 40)) // application/link-format
		resp.SetPayload([]byte(b.String()))
		resp.Serialize()
	}
}

func walkLinks(node *Node, prefix string, b *strings.Builder) {
	path := prefix
	if node.segment != "" {
		if prefix != "" {
			path = prefix + "/" + node.segment
		} else {
			path = node.segment
		}
	}
	if node.attributes != "" {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('<')
		b.WriteByte('/')
		b.WriteString(path)
		b.WriteByte('>')
		b.WriteString(node.attributes)
	}
	for _, c := range node.children {
		walkLinks(c, path, b)
	}
}

// AttachWellKnownCore installs the built-in handler at
// /.well-known/core under root, creating the intermediate
// ".well-known" node if needed. The application may later overwrite
// the "core" node's GET handler to replace it entirely.
func AttachWellKnownCore(root *Node) {
	wk := Lookup(root, []string{".well-known"})
	if wk == nil {
		wk = NewNode(".well-known", "")
		Attach(root, wk)
	}
	core := Lookup(wk, []string{"core"})
	if core == nil {
		core = NewNode("core", "")
		Attach(wk, core)
	}
	core.SetHandler(MethodGET, WellKnownCore(root))
}
