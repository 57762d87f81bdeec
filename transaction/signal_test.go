package transaction

import (
	"testing"

	"github.com/GiterLab/coap-engine/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSignalCSMUpdatesConnectionState(t *testing.T) {
	ct := NewConnectionTable(2)
	_, err := ct.Open("peer1")
	require.NoError(t, err)

	msg := &message.Message{Code: message.SignalCSM}
	msg.Options.Add(mustUint(t, optCSMMaxMessageSize, 2048))
	msg.Options.Add(message.NewEmpty(optCSMBlockWiseTransfer))

	out := HandleSignal(ct, "peer1", msg)
	assert.Nil(t, out.Reply)
	assert.False(t, out.CloseConnection)

	st := ct.Get("peer1")
	require.NotNil(t, st)
	assert.Equal(t, uint32(2048), st.MaxMessageSize)
	assert.True(t, st.BlockWiseTransfer)
}

func TestHandleSignalCSMUnknownCriticalOptionAborts(t *testing.T) {
	ct := NewConnectionTable(2)
	msg := &message.Message{Code: message.SignalCSM}
	msg.Options.Add(message.NewEmpty(5)) // odd => critical, unknown to CSM

	out := HandleSignal(ct, "peer1", msg)
	require.NotNil(t, out.Reply)
	assert.Equal(t, message.SignalAbort, out.Reply.Code)
	assert.True(t, out.CloseConnection)
}

func TestHandleSignalCSMUnknownElectiveOptionIgnored(t *testing.T) {
	ct := NewConnectionTable(2)
	msg := &message.Message{Code: message.SignalCSM}
	msg.Options.Add(message.NewEmpty(6)) // even => elective

	out := HandleSignal(ct, "peer1", msg)
	assert.Nil(t, out.Reply)
	assert.False(t, out.CloseConnection)
}

func TestHandleSignalPingRepliesPongEchoingCustody(t *testing.T) {
	ct := NewConnectionTable(2)
	msg := &message.Message{Code: message.SignalPing, Token: []byte{0xab}}
	msg.Options.Add(message.NewOpaque(optPingPongCustody, []byte{0x01}))

	out := HandleSignal(ct, "peer1", msg)
	require.NotNil(t, out.Reply)
	assert.Equal(t, message.SignalPong, out.Reply.Code)
	assert.Equal(t, msg.Token, out.Reply.Token)
	custody, ok := out.Reply.Options.Get(optPingPongCustody)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01}, custody.Value)
}

func TestHandleSignalPingWithoutCustody(t *testing.T) {
	ct := NewConnectionTable(2)
	msg := &message.Message{Code: message.SignalPing, Token: []byte{0x01}}

	out := HandleSignal(ct, "peer1", msg)
	require.NotNil(t, out.Reply)
	_, ok := out.Reply.Options.Get(optPingPongCustody)
	assert.False(t, ok)
}

func TestHandleSignalPongInvokesDefault(t *testing.T) {
	ct := NewConnectionTable(2)
	out := HandleSignal(ct, "peer1", &message.Message{Code: message.SignalPong})
	assert.Nil(t, out.Reply)
	assert.True(t, out.InvokeDefault)
}

func TestHandleSignalReleaseMarksConnectionAndInvokesDefault(t *testing.T) {
	ct := NewConnectionTable(2)
	_, err := ct.Open("peer1")
	require.NoError(t, err)

	out := HandleSignal(ct, "peer1", &message.Message{Code: message.SignalRelease})
	assert.True(t, out.InvokeDefault)
	assert.False(t, ct.CanSubmit("peer1"))
}

func TestHandleSignalAbortClosesConnection(t *testing.T) {
	ct := NewConnectionTable(2)
	out := HandleSignal(ct, "peer1", &message.Message{Code: message.SignalAbort})
	assert.True(t, out.CloseConnection)
	assert.Nil(t, out.Reply)
}

func mustUint(t *testing.T, number uint16, v uint32) message.Option {
	t.Helper()
	return message.NewUint(number, v)
}
