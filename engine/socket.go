// Package engine implements the single-threaded, cooperative event
// loop that ties the message codec, transaction tables, resource
// tree, and observer registry together (spec §5, §6). The concrete
// transport, clock, and RNG are external collaborators consumed
// through the seams defined here.
package engine

import "errors"

// Seam-level transport errors (spec §7 "Transport" category).
var (
	ErrSocketClosed  = errors.New("engine: socket closed")
	ErrWouldBlock    = errors.New("engine: would block")
	ErrSendFailed    = errors.New("engine: send failed")
	ErrReceiveFailed = errors.New("engine: receive failed")
)

// DefaultPort is the RFC 7252 default UDP CoAP port. The secure port
// (5684) is never used by this engine; DTLS is out of scope.
const DefaultPort = 5683

// PacketSocket is the datagram transport seam (spec §6, "Datagram
// variant"). A concrete implementation wraps a real UDP socket, a
// simulated in-memory one for tests, or an embedded-mesh radio.
type PacketSocket interface {
	Open(endpoint string) error
	Close() error
	IsOpen() bool
	// Send transmits raw to peer.
	Send(raw []byte, peer string) error
	// Receive reads one datagram into buf, returning the number of
	// bytes written to buf and the sender. Returns ErrWouldBlock when
	// nothing is pending; Run drains the socket until it does.
	Receive(buf []byte) (n int, peer string, err error)
	// Wait blocks for up to timeoutMS milliseconds for the socket to
	// become readable, returning true if it is.
	Wait(timeoutMS int) (ready bool, err error)
}

// StreamSocket is the connection-oriented transport seam (spec §6,
// "Stream variant") for RFC 8323 TCP/WS bindings.
type StreamSocket interface {
	Open(endpoint string) error
	Close() error
	IsOpen() bool
	Send(raw []byte) error
	Receive(buf []byte) (n int, err error)
	Wait(timeoutMS int) (ready bool, err error)
	// OnOpen/OnClose register callbacks invoked as connections to
	// distinct peers come and go, feeding the engine's connection
	// table (spec §4.5).
	OnOpen(fn func(peer string))
	OnClose(fn func(peer string))
}
