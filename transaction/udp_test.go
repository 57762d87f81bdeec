package transaction

import (
	"testing"
	"time"

	"github.com/GiterLab/coap-engine/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeRNG struct{}

func (fakeRNG) Float64() float64 { return 0 }
func (fakeRNG) Uint32() uint32   { return 42 }

func newTestTable(t *testing.T, cfg Config) (*Table, *fakeClock, *[][]byte) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(0, 0)}
	var sent [][]byte
	tbl := NewTable(4, cfg, clock, fakeRNG{}, func(peer string, raw []byte) error {
		sent = append(sent, append([]byte(nil), raw...))
		return nil
	})
	return tbl, clock, &sent
}

func TestAllocateExhaustion(t *testing.T) {
	tbl, _, _ := newTestTable(t, DefaultConfig)
	for i := 0; i < 4; i++ {
		_, err := tbl.Allocate()
		require.NoError(t, err)
	}
	_, err := tbl.Allocate()
	assert.ErrorIs(t, err, ErrNoFreeSlots)
}

func TestSubmitThenMatchResolvesSuccess(t *testing.T) {
	tbl, _, _ := newTestTable(t, DefaultConfig)
	idx, err := tbl.Allocate()
	require.NoError(t, err)

	req := &message.Message{Type: message.Confirmable, Code: message.GET, MessageID: 1, Token: []byte{1}}
	var gotStatus Status
	var gotResp *message.Message
	require.NoError(t, tbl.Submit(idx, "peer1", req, []byte{0x40}, func(resp *message.Message, status Status) {
		gotResp, gotStatus = resp, status
	}))

	resp := &message.Message{Type: message.Acknowledgement, Code: message.Content, MessageID: 1, Token: []byte{1}}
	matched := tbl.Match("peer1", resp)
	assert.True(t, matched)
	assert.Equal(t, StatusSuccess, gotStatus)
	assert.Same(t, resp, gotResp)

	// slot released
	idx2, err := tbl.Allocate()
	require.NoError(t, err)
	assert.Equal(t, idx, idx2)
}

func TestSeparateResponseFlow(t *testing.T) {
	tbl, _, _ := newTestTable(t, DefaultConfig)
	idx, err := tbl.Allocate()
	require.NoError(t, err)

	req := &message.Message{Type: message.Confirmable, Code: message.GET, MessageID: 5, Token: []byte{9}}
	var gotStatus Status
	require.NoError(t, tbl.Submit(idx, "peer1", req, []byte{0x40}, func(resp *message.Message, status Status) {
		gotStatus = status
	}))

	emptyAck := &message.Message{Type: message.Acknowledgement, Code: message.Empty, MessageID: 5, Token: []byte{9}}
	assert.True(t, tbl.Match("peer1", emptyAck))

	// a retransmit tick must not fire while in Empty state: t=10s is past
	// the 2s initial timeout but well inside the exchange lifetime.
	tbl.Tick(time.Unix(10, 0))
	assert.Equal(t, Status(0), gotStatus)

	separate := &message.Message{Type: message.Confirmable, Code: message.Content, MessageID: 99, Token: []byte{9}}
	assert.True(t, tbl.Match("peer1", separate))
	assert.Equal(t, StatusSuccess, gotStatus)
}

func TestTickRetransmitsThenTimesOut(t *testing.T) {
	cfg := Config{AckTimeout: time.Second, AckRandomFactor: 1.0, MaxRetransmissions: 2}
	tbl, clock, sent := newTestTable(t, cfg)
	idx, err := tbl.Allocate()
	require.NoError(t, err)

	req := &message.Message{Type: message.Confirmable, Code: message.GET, MessageID: 1, Token: []byte{1}}
	var gotStatus Status
	var calls int
	require.NoError(t, tbl.Submit(idx, "peer1", req, []byte{0xaa}, func(resp *message.Message, status Status) {
		gotStatus = status
		calls++
	}))

	clock.advance(time.Second) // t=1s: first retransmit, next timeout doubles to 2s
	tbl.Tick(clock.now)
	assert.Len(t, *sent, 1)
	assert.Equal(t, Status(0), gotStatus)

	clock.advance(2 * time.Second) // t=3s: second retransmit, timeout doubles to 4s
	tbl.Tick(clock.now)
	assert.Len(t, *sent, 2)

	clock.advance(4 * time.Second) // t=7s: retry budget exhausted -> timeout
	tbl.Tick(clock.now)
	assert.Len(t, *sent, 2)
	assert.Equal(t, StatusTimeout, gotStatus)
	assert.Equal(t, 1, calls)
}

func TestCancelInvokesCallbackOnce(t *testing.T) {
	tbl, _, _ := newTestTable(t, DefaultConfig)
	idx, err := tbl.Allocate()
	require.NoError(t, err)

	req := &message.Message{Type: message.Confirmable, Code: message.GET, MessageID: 1, Token: []byte{1}}
	calls := 0
	require.NoError(t, tbl.Submit(idx, "peer1", req, nil, func(resp *message.Message, status Status) {
		calls++
		assert.Equal(t, StatusCanceled, status)
		assert.Nil(t, resp)
	}))

	tbl.Cancel(func(peer, token string) bool { return peer == "peer1" })
	assert.Equal(t, 1, calls)

	tbl.Cancel(func(peer, token string) bool { return true })
	assert.Equal(t, 1, calls) // already released, predicate can't match a freed slot
}

func TestResetCancelsTransaction(t *testing.T) {
	tbl, _, _ := newTestTable(t, DefaultConfig)
	idx, err := tbl.Allocate()
	require.NoError(t, err)

	req := &message.Message{Type: message.Confirmable, Code: message.GET, MessageID: 1, Token: []byte{1}}
	var gotStatus Status
	require.NoError(t, tbl.Submit(idx, "peer1", req, nil, func(resp *message.Message, status Status) {
		gotStatus = status
	}))

	reset := &message.Message{Type: message.Reset, Code: message.Empty, MessageID: 1}
	assert.True(t, tbl.Match("peer1", reset))
	assert.Equal(t, StatusCanceled, gotStatus)
}

func TestNoTwoSendingSlotsShareSamePeerAndMID(t *testing.T) {
	tbl, _, _ := newTestTable(t, DefaultConfig)
	idx1, _ := tbl.Allocate()
	req1 := &message.Message{Type: message.Confirmable, Code: message.GET, MessageID: 1, Token: []byte{1}}
	require.NoError(t, tbl.Submit(idx1, "peer1", req1, nil, func(*message.Message, Status) {}))

	idx2, _ := tbl.Allocate()
	req2 := &message.Message{Type: message.Confirmable, Code: message.GET, MessageID: 1, Token: []byte{2}}
	assert.ErrorIs(t, tbl.Submit(idx2, "peer1", req2, nil, func(*message.Message, Status) {}), ErrTransactionBusy)

	resp := &message.Message{Type: message.Acknowledgement, Code: message.Content, MessageID: 1, Token: []byte{1}}
	assert.True(t, tbl.Match("peer1", resp))

	// the rejected submit leaves idx2 allocated but never Sending; it is
	// the only slot still held once the first transaction resolves.
	assert.Equal(t, 1, tbl.InUseCount())
}
