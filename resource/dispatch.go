package resource

import (
	"errors"

	"github.com/GiterLab/coap-engine/internal/telemetry"
	"github.com/GiterLab/coap-engine/message"
)

// ErrSeparateOnReliableTransport is returned by
// ResponseBuilder.SerializeEmptyAck when called for a request received
// over reliable transport, where empty acks carrying a deferred
// response have no meaning (spec §4.6).
var ErrSeparateOnReliableTransport = errors.New("resource: separate response requires unreliable transport")

// ResponseBuilder accumulates the response a handler produces and
// records whether a terminal operation finalized it; Dispatch replaces
// an unfinalized response with 5.00. A second terminal call is not
// detected: it finalizes the builder again without error.
type ResponseBuilder struct {
	reliable  bool
	finalized bool
	separate  bool
	msg       message.Message
}

func newResponseBuilder(reliable bool, mid uint16, token []byte) *ResponseBuilder {
	rb := &ResponseBuilder{reliable: reliable}
	rb.msg.MessageID = mid
	rb.msg.Token = token
	rb.msg.Type = message.Acknowledgement
	return rb
}

// SetCode sets the response code.
func (r *ResponseBuilder) SetCode(c message.Code) { r.msg.Code = c }

// AddOption appends an option to the response.
func (r *ResponseBuilder) AddOption(opt message.Option) { r.msg.Options.Add(opt) }

// SetPayload sets the response payload.
func (r *ResponseBuilder) SetPayload(p []byte) { r.msg.Payload = p }

// Serialize finalizes the response as returned by Message. It is the
// ordinary terminal operation for a synchronous handler.
func (r *ResponseBuilder) Serialize() {
	r.finalized = true
}

// SerializeEmptyAck finalizes an empty acknowledgement (code 0.00, no
// token stripped — the token is still needed to correlate the later
// separate response) and captures a handle the handler can use to
// submit the real response once it is ready. Only valid on unreliable
// transport.
func (r *ResponseBuilder) SerializeEmptyAck(eng Engine, peer string, req *message.Message) (SeparateHandle, error) {
	if r.reliable {
		return "", ErrSeparateOnReliableTransport
	}
	r.msg.Code = message.Empty
	r.msg.Payload = nil
	r.msg.Options = message.OptionSet{}
	r.finalized = true
	r.separate = true
	return eng.CaptureSeparateResponse(peer, req), nil
}

// Finalized reports whether a terminal operation has been called.
func (r *ResponseBuilder) Finalized() bool { return r.finalized }

// Separate reports whether the finalized response was an empty ack
// deferring the real reply.
func (r *ResponseBuilder) Separate() bool { return r.separate }

// Message returns the built response. Only meaningful once Finalized.
func (r *ResponseBuilder) Message() message.Message { return r.msg }

// Dispatch implements the spec §4.6 lookup-and-invoke algorithm: parse
// the Uri-Path options off req, look up the matching node under root,
// and either invoke its handler for req's method or synthesize a
// 4.04/4.05 error response.
func Dispatch(root *Node, req *message.Message, reliable bool, eng Engine, peer string) ResponseBuilder {
	rb := newResponseBuilder(reliable, req.MessageID, req.Token)

	segments := uriPathSegments(req)
	node := Lookup(root, segments)
	if node == nil {
		rb.SetCode(message.NotFound)
		rb.Serialize()
		return *rb
	}

	method, ok := methodFromCode(req.Code)
	if !ok {
		rb.SetCode(message.MethodNotAllowed)
		rb.Serialize()
		return *rb
	}
	handler := node.Handler(method)
	if handler == nil {
		rb.SetCode(message.MethodNotAllowed)
		rb.Serialize()
		return *rb
	}

	handler(req, rb, eng)
	if !rb.Finalized() {
		telemetry.TraceError("[coap] handler for /%v did not call a terminal response operation", segments)
		rb.SetCode(message.InternalServerError)
		rb.Serialize()
	}
	return *rb
}

func uriPathSegments(req *message.Message) []string {
	opts := req.Options.GetAll(message.URIPath)
	segs := make([]string, len(opts))
	for i, o := range opts {
		segs[i] = string(o.Value)
	}
	return segs
}
