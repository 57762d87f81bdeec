// Package transaction implements the retransmission state machine for
// confirmable exchanges over unreliable transport (spec §4.4) and the
// idle-response/connection bookkeeping for reliable transport (spec
// §4.5), both driven by a caller-supplied Clock and RNG rather than
// wall-clock globals, so the state machines are deterministic under
// test.
package transaction

import (
	"math/rand"
	"time"
)

// Clock is the monotonic time seam the engine and transaction tables
// consume. Seconds precision is sufficient per spec §6.
type Clock interface {
	Now() time.Time
}

// RNG is the uniform random integer seam used for initial message ids
// and retransmission jitter.
type RNG interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64
	// Uint32 returns a pseudo-random 32-bit value, used for message ids
	// and tokens.
	Uint32() uint32
}

// SystemClock wraps time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// SystemRNG wraps math/rand's global source. Retransmission jitter has
// no security requirement, so a non-cryptographic source is adequate.
type SystemRNG struct{}

// Float64 returns math/rand.Float64().
func (SystemRNG) Float64() float64 { return rand.Float64() } //nolint:gosec // jitter, not security-sensitive

// Uint32 returns math/rand.Uint32().
func (SystemRNG) Uint32() uint32 { return rand.Uint32() } //nolint:gosec // jitter, not security-sensitive
