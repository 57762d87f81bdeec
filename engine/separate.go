package engine

import (
	"errors"

	"github.com/GiterLab/coap-engine/message"
	"github.com/GiterLab/coap-engine/resource"
	"github.com/rs/xid"
)

// ErrSeparateHandleNotFound is returned by SubmitSeparateResponse when
// handle does not correspond to a captured context, typically because
// it was already submitted or the engine restarted.
var ErrSeparateHandleNotFound = errors.New("engine: separate response handle not found")

// separateContext is what CaptureSeparateResponse remembers about a
// request a handler could not answer synchronously (spec §4.6's
// "global async_data" supplemented into a per-invocation context, per
// the spec's own design notes on that source artifact).
type separateContext struct {
	peer  string
	token []byte
	typ   message.Type
}

// separateTable maps opaque xid handles to captured request contexts.
// Handles are globally unique and sortable by creation time, which
// keeps correlation log lines (peer, token, handle) unambiguous across
// a long-running server without needing a counter the engine itself
// must persist.
type separateTable struct {
	byHandle map[resource.SeparateHandle]separateContext
}

func newSeparateTable() *separateTable {
	return &separateTable{byHandle: make(map[resource.SeparateHandle]separateContext)}
}

func (s *separateTable) capture(peer string, req *message.Message) resource.SeparateHandle {
	h := resource.SeparateHandle(xid.New().String())
	s.byHandle[h] = separateContext{peer: peer, token: append([]byte(nil), req.Token...), typ: req.Type}
	return h
}

// resolve consumes the context for handle, returning it along with
// whether it was found. A handle is single-use: resolving it removes
// it from the table.
func (s *separateTable) resolve(handle resource.SeparateHandle) (separateContext, bool) {
	ctx, ok := s.byHandle[handle]
	if ok {
		delete(s.byHandle, handle)
	}
	return ctx, ok
}
