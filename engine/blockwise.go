package engine

import (
	"errors"

	"github.com/GiterLab/coap-engine/message"
)

// ErrReassemblyBufferFull is returned when an incoming block-wise
// transfer would overflow its caller-provided reassembly buffer.
var ErrReassemblyBufferFull = errors.New("engine: block-wise reassembly buffer full")

// ErrOutOfSequenceBlock is returned when a block arrives with a number
// other than the next expected one. RFC 7959 allows a server to
// request retransmission of the correct block (4.08); this engine
// simply drops the transfer rather than implementing that recovery
// path, which is outside the core's scope.
var ErrOutOfSequenceBlock = errors.New("engine: out-of-sequence block")

// Reassembler accumulates a block-wise transfer into a single
// caller-provided buffer, honoring the spec's Non-goal against dynamic
// allocation on the datapath: capacity is fixed at construction and
// never grows.
type Reassembler struct {
	buf     []byte
	written int
	nextBlk uint32
}

// NewReassembler wraps buf as the fixed-capacity target for one
// in-flight block-wise transfer.
func NewReassembler(buf []byte) *Reassembler {
	return &Reassembler{buf: buf}
}

// Append incorporates one incoming block's payload. It returns true
// once block.More is false, meaning the transfer is complete and
// Bytes() holds the full reassembled body.
func (r *Reassembler) Append(block message.Block, payload []byte) (done bool, err error) {
	if block.Num != r.nextBlk {
		return false, ErrOutOfSequenceBlock
	}
	if r.written+len(payload) > len(r.buf) {
		return false, ErrReassemblyBufferFull
	}
	copy(r.buf[r.written:], payload)
	r.written += len(payload)
	r.nextBlk++
	return !block.More, nil
}

// Bytes returns the reassembled body accumulated so far.
func (r *Reassembler) Bytes() []byte {
	return r.buf[:r.written]
}

// Fragmenter splits a full response body into a sequence of
// fixed-size blocks for Block2 transfer, reading directly from the
// caller-owned body slice with no copying.
type Fragmenter struct {
	body      []byte
	blockSize int
}

// NewFragmenter prepares body for block-wise delivery at the given
// SZX-derived block size (use message.MakeBlock to validate size).
func NewFragmenter(body []byte, blockSize int) *Fragmenter {
	return &Fragmenter{body: body, blockSize: blockSize}
}

// Block returns the payload slice and Block descriptor for block
// number num, or ok=false if num is past the end of the body.
func (f *Fragmenter) Block(num uint32) (payload []byte, block message.Block, ok bool) {
	start := int(num) * f.blockSize
	if start >= len(f.body) && !(start == 0 && len(f.body) == 0) {
		return nil, message.Block{}, false
	}
	end := start + f.blockSize
	more := end < len(f.body)
	if end > len(f.body) {
		end = len(f.body)
	}
	blk, err := message.MakeBlock(num, more, f.blockSize)
	if err != nil {
		return nil, message.Block{}, false
	}
	return f.body[start:end], blk, true
}

// TotalBlocks reports how many blocks the full body splits into.
func (f *Fragmenter) TotalBlocks() uint32 {
	if len(f.body) == 0 {
		return 1
	}
	n := len(f.body) / f.blockSize
	if len(f.body)%f.blockSize != 0 {
		n++
	}
	return uint32(n)
}
