package observe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("peer1", "tok")
	r.Register("peer1", "tok")
	assert.Equal(t, 1, r.Count())
}

func TestDeregisterRemoves(t *testing.T) {
	r := NewRegistry()
	r.Register("peer1", "tok")
	r.Deregister("peer1", "tok")
	assert.Equal(t, 0, r.Count())
}

func TestDeregisterUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Deregister("peer1", "tok")
	assert.Equal(t, 0, r.Count())
}

func TestShouldDeliverFirstNotificationAlwaysTrue(t *testing.T) {
	r := NewRegistry()
	r.Register("peer1", "tok")
	assert.True(t, r.ShouldDeliver("peer1", "tok", 1, time.Unix(0, 0)))
}

func TestShouldDeliverRespectsFreshness(t *testing.T) {
	r := NewRegistry()
	r.Register("peer1", "tok")
	t0 := time.Unix(0, 0)
	r.MarkNotified("peer1", "tok", 10, t0)

	assert.False(t, r.ShouldDeliver("peer1", "tok", 5, t0.Add(5*time.Second)))
	assert.True(t, r.ShouldDeliver("peer1", "tok", 11, t0.Add(5*time.Second)))
}

func TestShouldDeliverUnknownObserverFalse(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.ShouldDeliver("peer1", "tok", 1, time.Unix(0, 0)))
}
