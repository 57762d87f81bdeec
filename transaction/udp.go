package transaction

import (
	"errors"
	"time"

	"github.com/GiterLab/coap-engine/internal/telemetry"
	"github.com/GiterLab/coap-engine/message"
)

// Errors returned by the unreliable transaction table (spec §7).
var (
	ErrNoFreeSlots         = errors.New("transaction: no free slots")
	ErrTransactionNotFound = errors.New("transaction: not found")
	ErrTransactionBusy     = errors.New("transaction: slot busy")
)

// Status is a transaction's lifecycle state (spec §3, §4.4).
type Status int

// Transaction states.
const (
	StatusNone Status = iota
	StatusSending
	StatusEmpty
	StatusCanceled
	StatusSuccess
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "None"
	case StatusSending:
		return "Sending"
	case StatusEmpty:
		return "Empty"
	case StatusCanceled:
		return "Canceled"
	case StatusSuccess:
		return "Success"
	case StatusTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Config is the RFC 7252 §4.8.1 transmission configuration.
type Config struct {
	AckTimeout         time.Duration
	AckRandomFactor    float64
	MaxRetransmissions int
}

// DefaultConfig matches RFC 7252's suggested defaults.
var DefaultConfig = Config{
	AckTimeout:         2 * time.Second,
	AckRandomFactor:    1.5,
	MaxRetransmissions: 4,
}

// exchangeLifetime is the hard per-transaction deadline (RFC 7252
// §4.8.2): MAX_TRANSMIT_SPAN plus two MAX_LATENCYs plus a processing
// delay, approximated here as the worst-case retransmission span plus a
// fixed tail, matching the spec §3 "deadline" field.
func (c Config) exchangeLifetime() time.Duration {
	span := c.AckTimeout
	for i := 0; i < c.MaxRetransmissions; i++ {
		span *= 2
	}
	return time.Duration(float64(span)*c.AckRandomFactor) + 2*maxLatency + processingDelay
}

const (
	maxLatency      = 100 * time.Second
	processingDelay = 2 * time.Second
)

// Callback is invoked exactly once per transaction, either with the
// matched response or with resp == nil to signal timeout/cancellation.
type Callback func(resp *message.Message, status Status)

// SendFunc transmits raw on the wire to peer. It is the only blocking
// seam the table calls into.
type SendFunc func(peer string, raw []byte) error

type slot struct {
	inUse            bool
	peer             string
	token            string
	mid              uint16
	buffer           []byte
	retriesRemaining int
	timeout          time.Duration
	nextFireAt       time.Time
	deadline         time.Time
	noTimer          bool
	callback         Callback
	status           Status
}

// Table is the fixed-capacity confirmable-exchange transaction table
// (spec §3, §4.4). Slots are never reallocated; the table holds
// capacity of them for the table's lifetime.
type Table struct {
	cfg     Config
	clock   Clock
	rng     RNG
	send    SendFunc
	slots   []slot
	metrics *Metrics
}

// NewTable builds a Table with the given fixed slot capacity.
func NewTable(capacity int, cfg Config, clock Clock, rng RNG, send SendFunc) *Table {
	return &Table{
		cfg:   cfg,
		clock: clock,
		rng:   rng,
		send:  send,
		slots: make([]slot, capacity),
	}
}

// SetMetrics attaches a Metrics sink. A nil Metrics is a valid no-op
// sink (see metrics.go), matching the nil-receiver pattern used
// throughout this module's instrumentation.
func (t *Table) SetMetrics(m *Metrics) {
	t.metrics = m
}

// Allocate reserves a free slot, returning its index, or
// ErrNoFreeSlots if the table is full.
func (t *Table) Allocate() (int, error) {
	for i := range t.slots {
		if t.slots[i].status == StatusNone && !t.slots[i].inUse {
			t.slots[i].inUse = true
			return i, nil
		}
	}
	t.metrics.NoFreeSlots()
	return -1, ErrNoFreeSlots
}

// Submit starts tracking a confirmable request previously allocated at
// idx. raw is the already-serialized message, retained for
// retransmission. cb fires exactly once, never re-entrantly from
// within Submit itself. It fails with ErrTransactionBusy if another
// slot is already Sending to peer with the same message id.
func (t *Table) Submit(idx int, peer string, msg *message.Message, raw []byte, cb Callback) error {
	if idx < 0 || idx >= len(t.slots) {
		return ErrTransactionNotFound
	}
	s := &t.slots[idx]
	if !s.inUse {
		return ErrTransactionBusy
	}
	for i := range t.slots {
		o := &t.slots[i]
		if i != idx && o.inUse && o.status == StatusSending && o.peer == peer && o.mid == msg.MessageID {
			return ErrTransactionBusy
		}
	}

	now := t.clock.Now()
	initial := t.cfg.AckTimeout
	if t.cfg.AckRandomFactor > 1.0 {
		spread := float64(t.cfg.AckTimeout) * (t.cfg.AckRandomFactor - 1.0)
		initial += time.Duration(t.rng.Float64() * spread)
	}

	s.peer = peer
	s.token = string(msg.Token)
	s.mid = msg.MessageID
	s.buffer = raw
	s.retriesRemaining = t.cfg.MaxRetransmissions
	s.timeout = initial
	s.nextFireAt = now.Add(initial)
	s.deadline = now.Add(t.cfg.exchangeLifetime())
	s.noTimer = false
	s.callback = cb
	s.status = StatusSending

	t.metrics.Submitted()
	telemetry.TraceInfo("[coap] transaction submit peer=%s mid=%d token=%x", peer, msg.MessageID, msg.Token)
	return nil
}

// Tick advances every Sending slot whose next_fire_at has passed: it
// either retransmits with a doubled timeout, or — once the retry
// budget is exhausted — transitions to Timeout and invokes the
// callback. Slots in Empty state are only checked against their hard
// deadline, since they carry no retransmission timer.
func (t *Table) Tick(now time.Time) {
	for i := range t.slots {
		s := &t.slots[i]
		if !s.inUse || s.status == StatusNone {
			continue
		}
		if now.After(s.deadline) {
			t.finish(s, nil, StatusTimeout)
			continue
		}
		switch s.status {
		case StatusSending:
			if s.noTimer || now.Before(s.nextFireAt) {
				continue
			}
			if s.retriesRemaining > 0 {
				s.retriesRemaining--
				s.timeout *= 2
				s.nextFireAt = now.Add(s.timeout)
				if err := t.send(s.peer, s.buffer); err != nil {
					telemetry.TraceError("[coap] retransmit failed peer=%s: %s", s.peer, err)
				}
				t.metrics.Retransmitted()
			} else {
				t.finish(s, nil, StatusTimeout)
			}
		case StatusEmpty:
			// waiting indefinitely (within the hard deadline) for the
			// separate response; nothing to fire on a timer tick.
		}
	}
}

// Match attempts to resolve resp against a pending slot.
//
// A piggybacked response (carried on an Ack) matches by peer+token+mid.
// A separate response (fresh Confirmable/NonConfirmable, new mid)
// matches an Empty-state slot by peer+token alone. A Reset matches by
// peer+mid and cancels the transaction. A separate empty ack (type=Ack,
// code=0.00) transitions a Sending slot to Empty and clears its
// retransmission timer.
func (t *Table) Match(peer string, resp *message.Message) bool {
	token := string(resp.Token)

	if resp.Type == message.Reset {
		for i := range t.slots {
			s := &t.slots[i]
			if s.inUse && s.status == StatusSending && s.peer == peer && s.mid == resp.MessageID {
				t.finish(s, nil, StatusCanceled)
				return true
			}
		}
		return false
	}

	if resp.Type == message.Acknowledgement && resp.Code == message.Empty {
		for i := range t.slots {
			s := &t.slots[i]
			if s.inUse && s.status == StatusSending && s.peer == peer && s.mid == resp.MessageID && s.token == token {
				s.status = StatusEmpty
				s.noTimer = true
				telemetry.TraceInfo("[coap] transaction separate-ack peer=%s token=%x", peer, resp.Token)
				return true
			}
		}
		return false
	}

	for i := range t.slots {
		s := &t.slots[i]
		if !s.inUse || s.peer != peer || s.token != token {
			continue
		}
		switch s.status {
		case StatusSending:
			if s.mid == resp.MessageID {
				t.finish(s, resp, StatusSuccess)
				return true
			}
		case StatusEmpty:
			t.finish(s, resp, StatusSuccess)
			return true
		}
	}
	return false
}

// Cancel transitions every slot matching predicate to Canceled and
// invokes its callback with a nil response.
func (t *Table) Cancel(predicate func(peer, token string) bool) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.inUse && s.status != StatusNone && predicate(s.peer, s.token) {
			t.finish(s, nil, StatusCanceled)
		}
	}
}

// finish transitions s to a terminal status, invokes its callback and
// releases the slot. Never called re-entrantly from within Submit.
func (t *Table) finish(s *slot, resp *message.Message, status Status) {
	s.status = status
	cb := s.callback
	switch status {
	case StatusTimeout:
		t.metrics.TimedOut()
	case StatusCanceled:
		t.metrics.Canceled()
	case StatusSuccess:
		t.metrics.Succeeded()
	}
	*s = slot{}
	if cb != nil {
		cb(resp, status)
	}
}

// InUseCount reports how many slots are currently occupied, for
// diagnostics and metrics gauges.
func (t *Table) InUseCount() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].inUse {
			n++
		}
	}
	return n
}
