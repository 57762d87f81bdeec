package transaction

import (
	"errors"
	"time"

	"github.com/GiterLab/coap-engine/message"
)

// Expiration selects how a reliable-transport transaction is released
// when no response arrives (spec §4.5). Unlike the unreliable table,
// there is never a retransmission timer here — the underlying
// transport guarantees delivery.
type Expiration int

const (
	// NoTransaction means don't track the request at all; any reply
	// that shows up for it routes to the connection's default callback.
	NoTransaction Expiration = iota
	// NoExpiration holds the slot until a response arrives or the
	// connection closes.
	NoExpiration
	// Finite holds the slot until a response arrives or the deadline
	// passes, whichever is first.
	Finite
)

// ErrReliableSlotBusy is returned by ReliableTable.Submit when idx
// names a slot that was not allocated.
var ErrReliableSlotBusy = errors.New("transaction: reliable slot busy")

type reliableSlot struct {
	inUse    bool
	peer     string
	token    string
	mode     Expiration
	deadline time.Time
	callback Callback
}

// ReliableTable tracks request/response pairing over reliable
// transport (spec §4.5). It never retransmits and never drives a
// backoff timer; Tick only needs to sweep Finite-mode deadlines.
type ReliableTable struct {
	clock Clock
	slots []reliableSlot
}

// NewReliableTable builds a ReliableTable with the given fixed slot
// capacity.
func NewReliableTable(capacity int, clock Clock) *ReliableTable {
	return &ReliableTable{clock: clock, slots: make([]reliableSlot, capacity)}
}

// Allocate reserves a free slot, or returns ErrNoFreeSlots.
func (t *ReliableTable) Allocate() (int, error) {
	for i := range t.slots {
		if !t.slots[i].inUse {
			t.slots[i].inUse = true
			return i, nil
		}
	}
	return -1, ErrNoFreeSlots
}

// Submit starts tracking a request previously allocated at idx. mode
// NoTransaction releases the slot immediately and cb is never called
// by this table for it — the caller is expected to have already
// arranged for a default callback elsewhere.
func (t *ReliableTable) Submit(idx int, peer string, msg *message.Message, mode Expiration, ttl time.Duration, cb Callback) error {
	if idx < 0 || idx >= len(t.slots) {
		return ErrTransactionNotFound
	}
	s := &t.slots[idx]
	if !s.inUse {
		return ErrReliableSlotBusy
	}
	if mode == NoTransaction {
		*s = reliableSlot{}
		return nil
	}
	s.peer = peer
	s.token = string(msg.Token)
	s.mode = mode
	s.callback = cb
	if mode == Finite {
		s.deadline = t.clock.Now().Add(ttl)
	}
	return nil
}

// Tick releases any Finite-mode slot past its deadline with a Timeout
// status. NoExpiration slots are never touched here.
func (t *ReliableTable) Tick(now time.Time) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.inUse && s.mode == Finite && now.After(s.deadline) {
			t.finish(s, nil, StatusTimeout)
		}
	}
}

// Match resolves resp against a pending slot for peer by token. It
// reports whether a slot consumed the response.
func (t *ReliableTable) Match(peer string, resp *message.Message) bool {
	token := string(resp.Token)
	for i := range t.slots {
		s := &t.slots[i]
		if s.inUse && s.peer == peer && s.token == token {
			t.finish(s, resp, StatusSuccess)
			return true
		}
	}
	return false
}

// CloseConnection releases every slot belonging to peer, invoking each
// callback with StatusCanceled — used when the underlying connection
// is torn down (on_close, or an inbound Abort).
func (t *ReliableTable) CloseConnection(peer string) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.inUse && s.peer == peer {
			t.finish(s, nil, StatusCanceled)
		}
	}
}

func (t *ReliableTable) finish(s *reliableSlot, resp *message.Message, status Status) {
	cb := s.callback
	*s = reliableSlot{}
	if cb != nil {
		cb(resp, status)
	}
}
