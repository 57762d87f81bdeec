package engine

import "github.com/GiterLab/coap-engine/transaction"

// Clock and RNG are re-exported from transaction so callers configure
// one seam instead of two identical-looking interfaces; the engine and
// its transaction tables always share the same clock and RNG instance.
type (
	Clock = transaction.Clock
	RNG   = transaction.RNG
)

// SystemClock and SystemRNG are the default production seams.
type (
	SystemClock = transaction.SystemClock
	SystemRNG   = transaction.SystemRNG
)
