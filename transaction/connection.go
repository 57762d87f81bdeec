package transaction

import "errors"

// DefaultMaxMessageSize is the RFC 8323 §5.1 default max-message-size
// assumed for a peer until its CSM says otherwise.
const DefaultMaxMessageSize = 1152

// ErrConnectionNotFound is returned when an operation names a peer
// with no tracked connection state.
var ErrConnectionNotFound = errors.New("transaction: connection not found")

// ConnState is the lifecycle of one reliable-transport connection.
type ConnState int

const (
	ConnOpen ConnState = iota
	// ConnReleasing marks a peer that sent Release: no new requests
	// may be submitted on it, but in-flight replies still get matched
	// until the underlying transport close arrives.
	ConnReleasing
)

// PeerCSM is the per-peer Capabilities and Settings state negotiated
// over reliable transport (spec §4.5, RFC 8323 §5.3).
type PeerCSM struct {
	MaxMessageSize    uint32
	BlockWiseTransfer bool
	State             ConnState
}

// ConnectionTable holds per-peer CSM state for reliable transport,
// fixed-capacity like the transaction tables it sits alongside.
type ConnectionTable struct {
	peers map[string]*PeerCSM
	cap   int
}

// NewConnectionTable builds a ConnectionTable whose Open admits up to
// capacity peers at once. UpdateCSM does not apply this limit.
func NewConnectionTable(capacity int) *ConnectionTable {
	return &ConnectionTable{peers: make(map[string]*PeerCSM, capacity), cap: capacity}
}

// Open registers peer with default CSM assumptions ahead of the local
// side sending its own CSM as the first message on the connection
// (spec §4.5 step 1). Returns ErrNoFreeSlots if the table is full.
func (c *ConnectionTable) Open(peer string) (*PeerCSM, error) {
	if existing, ok := c.peers[peer]; ok {
		return existing, nil
	}
	if len(c.peers) >= c.cap {
		return nil, ErrNoFreeSlots
	}
	st := &PeerCSM{MaxMessageSize: DefaultMaxMessageSize}
	c.peers[peer] = st
	return st, nil
}

// Get returns the tracked CSM state for peer, or nil if untracked.
func (c *ConnectionTable) Get(peer string) *PeerCSM {
	return c.peers[peer]
}

// UpdateCSM applies a received CSM's Max-Message-Size and
// Block-Wise-Transfer signaling options to peer's stored state,
// opening the connection first if this is the peer's first message.
// That implicit open does not check the table's capacity.
func (c *ConnectionTable) UpdateCSM(peer string, maxMessageSize uint32, blockWise bool) {
	st, ok := c.peers[peer]
	if !ok {
		st = &PeerCSM{MaxMessageSize: DefaultMaxMessageSize}
		c.peers[peer] = st
	}
	if maxMessageSize > 0 {
		st.MaxMessageSize = maxMessageSize
	}
	st.BlockWiseTransfer = blockWise
}

// MarkReleasing transitions peer into ConnReleasing (spec §4.5
// Release handling): no further requests may be submitted on this
// connection, but it remains in the table until Close.
func (c *ConnectionTable) MarkReleasing(peer string) {
	if st, ok := c.peers[peer]; ok {
		st.State = ConnReleasing
	}
}

// Close removes peer's connection state entirely, used on transport
// close or after processing an Abort.
func (c *ConnectionTable) Close(peer string) {
	delete(c.peers, peer)
}

// CanSubmit reports whether new requests may still be sent to peer.
// An untracked peer is treated as submittable — Open has not run yet,
// which is the caller's responsibility before the first request.
func (c *ConnectionTable) CanSubmit(peer string) bool {
	st, ok := c.peers[peer]
	return !ok || st.State == ConnOpen
}
