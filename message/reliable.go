package message

// Reliable-transport framing (RFC 8323 §3.2, §3.3). The message body
// (header without version/type, token, options, payload) is prefixed by
// a variable-length length field and a one-byte code, using the same
// nibble/extension-byte scheme as option deltas: 13/14/15 mean 1/2/4
// extra length bytes follow.
//
// Websocket framing (§3.3) relies on the transport to deliver exact
// message boundaries and omits the length prefix entirely; StreamFrame
// and ParseStreamFrame handle the length-prefixed case, while the
// websocket case is just Message.Serialize/Parse used directly against
// one transport frame.

const (
	streamLenByteCode  = 13
	streamLenByteBase  = 13
	streamLenWordCode  = 14
	streamLenWordBase  = 269
	streamLenQuadCode  = 15
	streamLenQuadBase  = 65805
)

// StreamFrame encodes msg using RFC 8323 §3.2 stream framing: a length
// field covering the options and payload (packed with the token length
// into the first byte, plus any extension bytes), the
// signaling-or-regular code byte, the token, then options and payload.
func StreamFrame(msg *Message, out []byte) (int, error) {
	token := msg.Token
	if len(token) > MaxTokenLength {
		token = token[:MaxTokenLength]
	}

	// The length field covers everything after the TKL/code/token
	// prefix: options then payload. Compute it analytically so the
	// frame can be written in a single pass with no scratch buffer.
	tailLen := msg.Options.Size()
	if len(msg.Payload) > 0 {
		tailLen += 1 + len(msg.Payload)
	}

	w := NewWriter(out)
	lenNibble, lenExt := splitStreamLength(tailLen)
	if err := w.WriteByte(byte(lenNibble<<4) | byte(len(token))); err != nil {
		return 0, err
	}
	if err := writeStreamLengthExt(w, lenNibble, lenExt); err != nil {
		return 0, err
	}
	if err := w.WriteByte(byte(msg.Code)); err != nil {
		return 0, err
	}
	if _, err := w.Write(token); err != nil {
		return 0, err
	}
	prev := uint16(0)
	for _, opt := range msg.Options.All() {
		if _, err := SerializeOption(w, prev, opt, CheckAll); err != nil {
			return 0, err
		}
		prev = opt.Number
	}
	if len(msg.Payload) > 0 {
		if err := w.WriteByte(payloadMarker); err != nil {
			return 0, err
		}
		if _, err := w.Write(msg.Payload); err != nil {
			return 0, err
		}
	}
	return w.Len(), nil
}

// ParseStreamFrame decodes one RFC 8323 §3.2 stream-framed message from
// the front of in. It returns the message and the number of bytes
// consumed, so the caller can advance past one frame in a byte stream.
func ParseStreamFrame(in []byte) (Message, int, error) {
	r := NewReader(in)

	header, err := r.ReadByte()
	if err != nil {
		return Message{}, 0, ErrInsufficientBuffer
	}
	lenNibble := int(header >> 4)
	tokenLen := int(header & 0x0f)
	if tokenLen > MaxTokenLength {
		return Message{}, 0, ErrInvalidTokenLength
	}

	tailLen, err := readStreamLengthExt(r, lenNibble)
	if err != nil {
		return Message{}, 0, err
	}

	codeByte, err := r.ReadByte()
	if err != nil {
		return Message{}, 0, ErrInsufficientBuffer
	}

	var token []byte
	if tokenLen > 0 {
		tb, err := r.ReadN(tokenLen)
		if err != nil {
			return Message{}, 0, ErrInsufficientBuffer
		}
		token = append([]byte(nil), tb...)
	}

	tail, err := r.ReadN(tailLen)
	if err != nil {
		return Message{}, 0, ErrInsufficientBuffer
	}

	m := Message{Code: Code(codeByte), Token: token}

	tr := NewReader(tail)
	prev := uint16(0)
	sawMarker := false
	for tr.Remaining() > 0 {
		opt, _, isMarker, err := ParseOption(tr, prev, CheckIncoming)
		if err != nil {
			return Message{}, 0, err
		}
		if isMarker {
			sawMarker = true
			break
		}
		m.Options.Add(opt)
		prev = opt.Number
	}
	if sawMarker && tr.Remaining() == 0 {
		return Message{}, 0, ErrInvalidPayloadMarker
	}
	if tr.Remaining() > 0 {
		m.Payload = append([]byte(nil), tr.Rest()...)
	}

	return m, r.Pos(), nil
}

func splitStreamLength(v int) (nibble, ext int) {
	switch {
	case v >= streamLenQuadBase:
		return streamLenQuadCode, v - streamLenQuadBase
	case v >= streamLenWordBase:
		return streamLenWordCode, v - streamLenWordBase
	case v >= streamLenByteBase:
		return streamLenByteCode, v - streamLenByteBase
	default:
		return v, 0
	}
}

func writeStreamLengthExt(w *Writer, nibble, ext int) error {
	switch nibble {
	case streamLenByteCode:
		return w.WriteByte(byte(ext))
	case streamLenWordCode:
		if err := w.WriteByte(byte(ext >> 8)); err != nil {
			return err
		}
		return w.WriteByte(byte(ext))
	case streamLenQuadCode:
		for shift := 24; shift >= 0; shift -= 8 {
			if err := w.WriteByte(byte(ext >> shift)); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func readStreamLengthExt(r *Reader, nibble int) (int, error) {
	switch nibble {
	case streamLenByteCode:
		b, err := r.ReadByte()
		if err != nil {
			return 0, ErrInsufficientBuffer
		}
		return int(b) + streamLenByteBase, nil
	case streamLenWordCode:
		b, err := r.ReadN(2)
		if err != nil {
			return 0, ErrInsufficientBuffer
		}
		return (int(b[0])<<8 | int(b[1])) + streamLenWordBase, nil
	case streamLenQuadCode:
		b, err := r.ReadN(4)
		if err != nil {
			return 0, ErrInsufficientBuffer
		}
		return (int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])) + streamLenQuadBase, nil
	default:
		return nibble, nil
	}
}
