package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamFrameRoundTrip(t *testing.T) {
	m := &Message{
		Code:  SignalCSM,
		Token: []byte("abc"),
	}
	m.Options.Add(NewUint(URIPort, 1152))

	buf := make([]byte, 64)
	n, err := StreamFrame(m, buf)
	require.NoError(t, err)

	got, consumed, err := ParseStreamFrame(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	assert.Equal(t, m.Code, got.Code)
	assert.Equal(t, m.Token, got.Token)
	opt, ok := got.Options.Get(URIPort)
	require.True(t, ok)
	assert.Equal(t, uint32(1152), opt.Uint())
}

func TestStreamFrameLargeBodyUsesExtendedLength(t *testing.T) {
	m := &Message{Code: Content, Payload: make([]byte, 400)}
	for i := range m.Payload {
		m.Payload[i] = byte(i)
	}

	buf := make([]byte, 512)
	n, err := StreamFrame(m, buf)
	require.NoError(t, err)

	got, consumed, err := ParseStreamFrame(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	assert.Equal(t, m.Payload, got.Payload)
}

func TestStreamFrameMultipleFramesInBuffer(t *testing.T) {
	m1 := &Message{Code: SignalPing}
	m2 := &Message{Code: SignalPong, Token: []byte{1, 2}}

	buf := make([]byte, 128)
	n1, err := StreamFrame(m1, buf)
	require.NoError(t, err)
	n2, err := StreamFrame(m2, buf[n1:])
	require.NoError(t, err)

	stream := buf[:n1+n2]
	got1, c1, err := ParseStreamFrame(stream)
	require.NoError(t, err)
	assert.Equal(t, SignalPing, got1.Code)

	got2, c2, err := ParseStreamFrame(stream[c1:])
	require.NoError(t, err)
	assert.Equal(t, SignalPong, got2.Code)
	assert.Equal(t, c1+c2, len(stream))
}
