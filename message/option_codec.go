package message

const (
	extByteCode   = 13
	extByteAddend = 13
	extWordCode   = 14
	extWordAddend = 269
	extReserved   = 15
)

func splitExtension(v int) (nibble, ext int) {
	switch {
	case v >= extWordAddend:
		return extWordCode, v - extWordAddend
	case v >= extByteAddend:
		return extByteCode, v - extByteAddend
	default:
		return v, 0
	}
}

// SerializeOption writes one option to w, delta-encoded against
// prevNumber. It returns the number of bytes written.
//
// When checks.Sequence is set, it fails with ErrOptionSequenceViolation
// if opt.Number < prevNumber, or if they are equal and the catalog marks
// the option non-repeatable.
func SerializeOption(w *Writer, prevNumber uint16, opt Option, checks Checks) (int, error) {
	def, known := Lookup(opt.Number)

	if checks.Sequence {
		if opt.Number < prevNumber {
			return 0, &OptionError{Number: opt.Number, Err: ErrOptionSequenceViolation}
		}
		if opt.Number == prevNumber && known && !def.Repeatable {
			return 0, &OptionError{Number: opt.Number, Err: ErrOptionRepeatedNotAllowed}
		}
	}

	if known {
		if err := validate(checks, def, opt); err != nil {
			return 0, err
		}
	} else if checks.Format && IsCritical(opt.Number) {
		return 0, &OptionError{Number: opt.Number, Err: ErrUnknownOption}
	}

	start := w.Len()
	delta := int(opt.Number) - int(prevNumber)
	deltaNibble, deltaExt := splitExtension(delta)
	lengthNibble, lengthExt := splitExtension(len(opt.Value))

	if err := w.WriteByte(byte(deltaNibble<<4) | byte(lengthNibble)); err != nil {
		return 0, err
	}
	if err := writeExtension(w, deltaNibble, deltaExt); err != nil {
		return 0, err
	}
	if err := writeExtension(w, lengthNibble, lengthExt); err != nil {
		return 0, err
	}
	if _, err := w.Write(opt.Value); err != nil {
		return 0, err
	}
	return w.Len() - start, nil
}

func writeExtension(w *Writer, nibble, ext int) error {
	switch nibble {
	case extByteCode:
		return w.WriteByte(byte(ext))
	case extWordCode:
		if err := w.WriteByte(byte(ext >> 8)); err != nil {
			return err
		}
		return w.WriteByte(byte(ext))
	default:
		return nil
	}
}

func readExtension(r *Reader, nibble int) (int, error) {
	switch nibble {
	case extByteCode:
		b, err := r.ReadByte()
		if err != nil {
			return 0, ErrInsufficientBuffer
		}
		return int(b) + extByteAddend, nil
	case extWordCode:
		b, err := r.ReadN(2)
		if err != nil {
			return 0, ErrInsufficientBuffer
		}
		return (int(b[0])<<8 | int(b[1])) + extWordAddend, nil
	default:
		return nibble, nil
	}
}

// ParseOption reads one option from r, delta-decoded against prevNumber.
// If the next byte is the payload marker (nibble 15/15), it returns
// isMarker=true and consumes that one byte; the caller should stop the
// option loop and treat the rest of r as payload.
//
// checks.Format and checks.Length are applied against the catalog;
// checks.Sequence is a no-op here because the delta encoding makes the
// number sequence non-decreasing by construction.
func ParseOption(r *Reader, prevNumber uint16, checks Checks) (opt Option, n int, isMarker bool, err error) {
	start := r.Pos()

	header, err := r.ReadByte()
	if err != nil {
		return Option{}, 0, false, ErrInsufficientBuffer
	}

	deltaNibble := int(header >> 4)
	lengthNibble := int(header & 0x0f)

	if deltaNibble == extReserved && lengthNibble == extReserved {
		return Option{}, r.Pos() - start, true, nil
	}
	if deltaNibble == extReserved || lengthNibble == extReserved {
		return Option{}, 0, false, ErrInvalidOptionHeader
	}

	delta, err := readExtension(r, deltaNibble)
	if err != nil {
		return Option{}, 0, false, err
	}
	length, err := readExtension(r, lengthNibble)
	if err != nil {
		return Option{}, 0, false, err
	}

	value, err := r.ReadN(length)
	if err != nil {
		return Option{}, 0, false, err
	}

	number := uint16(int(prevNumber) + delta)
	opt = Option{Number: number, Value: value}

	if def, known := Lookup(number); known {
		if err := validate(checks, def, opt); err != nil {
			return Option{}, 0, false, err
		}
	} else if checks.Format && IsCritical(number) {
		return Option{}, 0, false, &OptionError{Number: number, Err: ErrUnknownOption}
	}

	return opt, r.Pos() - start, false, nil
}
