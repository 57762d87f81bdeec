package message

import "errors"

// Framing errors, surfaced while parsing a message off the wire.
var (
	ErrInvalidVersion      = errors.New("message: invalid version")
	ErrInvalidTokenLength  = errors.New("message: invalid token length")
	ErrInvalidOptionHeader = errors.New("message: invalid option header")
	ErrInvalidPayloadMarker = errors.New("message: invalid payload marker")
)

// Option validation errors, raised by the catalog-backed option codec.
var (
	ErrUnknownOption            = errors.New("message: unknown critical option")
	ErrOptionFormatMismatch     = errors.New("message: option format mismatch")
	ErrOptionLengthOutOfRange   = errors.New("message: option length out of range")
	ErrOptionSequenceViolation  = errors.New("message: option sequence violation")
	ErrOptionRepeatedNotAllowed = errors.New("message: option repeated but not allowed")
)

// OptionError decorates one of the option validation sentinels above with
// the offending option number, so callers can log or report it without
// re-deriving context.
type OptionError struct {
	Number uint16
	Err    error
}

func (e *OptionError) Error() string {
	return e.Err.Error()
}

func (e *OptionError) Unwrap() error {
	return e.Err
}
