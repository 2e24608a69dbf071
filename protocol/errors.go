package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete is returned by Next and Decode when the buffered input is
	// a valid prefix of a message but more bytes are needed to finish it.
	ErrIncomplete = errors.New("incomplete message, more input is required")

	ErrUnknownType       = errors.New("unknown type tag")
	ErrInvalidLength     = errors.New("invalid length or count")
	ErrInvalidInteger    = errors.New("invalid integer")
	ErrInvalidDouble     = errors.New("invalid double")
	ErrInvalidBoolean    = errors.New("invalid boolean, expected t or f")
	ErrInvalidNull       = errors.New("invalid null, expected an empty line")
	ErrInvalidBigNumber  = errors.New("invalid big number")
	ErrInvalidSimple     = errors.New("simple strings and errors must not contain \\r or \\n")
	ErrInvalidVerbatim   = errors.New("invalid verbatim string format")
	ErrMissingTerminator = errors.New("expected \\r\\n terminator")
	ErrLimitExceeded     = errors.New("decoder limit exceeded")
)

// ProtocolError is returned when the input can not be a valid RESP3 stream.
//
// A ProtocolError is fatal for the stream it was raised on. The byte offset
// of every later value is ambiguous once framing is broken so a Decoder that
// returned a ProtocolError keeps returning it.
type ProtocolError struct {
	// Offset is the position in the stream, counted from the first byte ever
	// fed to the Decoder, where the problem was detected.
	Offset int64

	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error at offset %d: %v", e.Offset, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolError reports whether err is, or wraps, a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
