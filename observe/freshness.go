// Package observe implements the RFC 7641 observer registry: per-peer
// subscription records and the sequence-number freshness comparator
// used to decide whether an arriving notification should update a
// client's cached representation.
package observe

import "time"

// sequenceSpan is half the 24-bit sequence space (2^23), the
// wraparound threshold from RFC 7641 §3.4.
const sequenceSpan = 1 << 23

// sequenceMask keeps a counter within the 24-bit range the Observe
// option value occupies.
const sequenceMask = 1<<24 - 1

// refreshWindow is the 128 s fallback in the freshness comparator: a
// notification is considered fresh regardless of sequence comparison
// once this much time has passed since the last one.
const refreshWindow = 128 * time.Second

// NextSequence advances a 24-bit observe sequence counter by one,
// wrapping at 2^24.
func NextSequence(v uint32) uint32 {
	return (v + 1) & sequenceMask
}

// IsFresher reports whether a notification carrying sequence v2 at
// time t2 is fresher than the last-seen (v1, t1), per the spec's
// comparator:
//
//	(v1 < v2 && v2-v1 < 2^23) || (v1 > v2 && v1-v2 > 2^23) || (t2 > t1+128s)
func IsFresher(v1, v2 uint32, t1, t2 time.Time) bool {
	if v1 < v2 && v2-v1 < sequenceSpan {
		return true
	}
	if v1 > v2 && v1-v2 > sequenceSpan {
		return true
	}
	return t2.After(t1.Add(refreshWindow))
}
