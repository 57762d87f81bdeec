package transaction

import (
	"testing"
	"time"

	"github.com/GiterLab/coap-engine/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReliableNoTransactionReleasesImmediately(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rt := NewReliableTable(2, clock)
	idx, err := rt.Allocate()
	require.NoError(t, err)

	req := &message.Message{Code: message.GET, Token: []byte{1}}
	require.NoError(t, rt.Submit(idx, "peer1", req, NoTransaction, 0, nil))

	idx2, err := rt.Allocate()
	require.NoError(t, err)
	assert.Equal(t, idx, idx2)
}

func TestReliableNoExpirationWaitsForMatch(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rt := NewReliableTable(2, clock)
	idx, err := rt.Allocate()
	require.NoError(t, err)

	var gotStatus Status
	req := &message.Message{Code: message.GET, Token: []byte{7}}
	require.NoError(t, rt.Submit(idx, "peer1", req, NoExpiration, 0, func(resp *message.Message, status Status) {
		gotStatus = status
	}))

	clock.advance(time.Hour)
	rt.Tick(clock.now)
	assert.Equal(t, Status(0), gotStatus)

	resp := &message.Message{Code: message.Content, Token: []byte{7}}
	assert.True(t, rt.Match("peer1", resp))
	assert.Equal(t, StatusSuccess, gotStatus)
}

func TestReliableFiniteExpiresAfterDeadline(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rt := NewReliableTable(2, clock)
	idx, err := rt.Allocate()
	require.NoError(t, err)

	var gotStatus Status
	req := &message.Message{Code: message.GET, Token: []byte{3}}
	require.NoError(t, rt.Submit(idx, "peer1", req, Finite, 5*time.Second, func(resp *message.Message, status Status) {
		gotStatus = status
	}))

	clock.advance(4 * time.Second)
	rt.Tick(clock.now)
	assert.Equal(t, Status(0), gotStatus)

	clock.advance(2 * time.Second)
	rt.Tick(clock.now)
	assert.Equal(t, StatusTimeout, gotStatus)
}

func TestReliableCloseConnectionCancelsAll(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rt := NewReliableTable(2, clock)
	idx1, _ := rt.Allocate()
	idx2, _ := rt.Allocate()

	var statuses []Status
	require.NoError(t, rt.Submit(idx1, "peer1", &message.Message{Token: []byte{1}}, NoExpiration, 0, func(_ *message.Message, s Status) {
		statuses = append(statuses, s)
	}))
	require.NoError(t, rt.Submit(idx2, "peer1", &message.Message{Token: []byte{2}}, NoExpiration, 0, func(_ *message.Message, s Status) {
		statuses = append(statuses, s)
	}))

	rt.CloseConnection("peer1")
	assert.Equal(t, []Status{StatusCanceled, StatusCanceled}, statuses)

	idx3, err := rt.Allocate()
	require.NoError(t, err)
	assert.Contains(t, []int{idx1, idx2}, idx3)
}
