package observe

import "time"

// Observer is one (peer, token) subscription to a resource, plus the
// bookkeeping needed to decide whether a future notification is fresh
// relative to the last one this peer received.
type Observer struct {
	Peer         string
	Token        string
	hasSequence  bool
	lastSequence uint32
	lastNotifyAt time.Time
}

// Registry tracks observers for a single observable resource. It is
// owned by that resource, not shared — each observable node gets its
// own Registry.
type Registry struct {
	observers []Observer
}

// NewRegistry builds an empty observer registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a subscription for (peer, token), per spec §4.7: a
// request carrying Observe=0 registers. Registering a pair that is
// already present is a no-op.
func (r *Registry) Register(peer, token string) {
	for i := range r.observers {
		if r.observers[i].Peer == peer && r.observers[i].Token == token {
			return
		}
	}
	r.observers = append(r.observers, Observer{Peer: peer, Token: token})
}

// Deregister removes the (peer, token) subscription, per spec §4.7: a
// request carrying Observe=1 deregisters. It is a no-op if no such
// subscription exists.
func (r *Registry) Deregister(peer, token string) {
	for i := range r.observers {
		if r.observers[i].Peer == peer && r.observers[i].Token == token {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// All returns the currently registered observers, for notification
// fan-out.
func (r *Registry) All() []Observer {
	return r.observers
}

// Count reports how many observers are registered.
func (r *Registry) Count() int {
	return len(r.observers)
}

// MarkNotified records that observer (peer, token) was just sent a
// notification carrying sequence at time now, so the next
// notification's freshness can be judged against it.
func (r *Registry) MarkNotified(peer, token string, sequence uint32, now time.Time) {
	for i := range r.observers {
		if r.observers[i].Peer == peer && r.observers[i].Token == token {
			r.observers[i].hasSequence = true
			r.observers[i].lastSequence = sequence
			r.observers[i].lastNotifyAt = now
			return
		}
	}
}

// ShouldDeliver reports whether a notification carrying sequence at
// time now is fresh relative to observer's last delivered
// notification. An observer with no prior notification is always
// considered ready to receive its first one.
func (r *Registry) ShouldDeliver(peer, token string, sequence uint32, now time.Time) bool {
	for i := range r.observers {
		if r.observers[i].Peer == peer && r.observers[i].Token == token {
			o := &r.observers[i]
			if !o.hasSequence {
				return true
			}
			return IsFresher(o.lastSequence, sequence, o.lastNotifyAt, now)
		}
	}
	return false
}
