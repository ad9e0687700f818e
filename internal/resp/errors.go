package resp

import (
	"errors"
	"fmt"
)

// ErrIncomplete is returned by Parse when the buffer holds only a prefix of a value.
// It is not a failure: the caller must retry with more bytes from the same offset
var ErrIncomplete = errors.New("resp: incomplete value")

// ErrProtocol matches every *ProtocolError
var ErrProtocol = errors.New("resp: protocol error")

// Causes carried by ProtocolError.Err
var (
	ErrUnknownType    = errors.New("unknown type tag")
	ErrInvalidEnding  = errors.New("invalid line ending")
	ErrInvalidInteger = errors.New("invalid integer")
	ErrInvalidLength  = errors.New("invalid length")
	ErrTooLarge       = errors.New("length exceeds limit")
	ErrTooDeep        = errors.New("nesting exceeds limit")
)

// ErrInvalidSimpleString is returned by the encoder for SimpleString or Error text containing CR or LF
var ErrInvalidSimpleString = errors.New("resp: simple string contains CR or LF")

// ProtocolError describes malformed input. Offset is relative to the start of the parsed buffer.
// A stream that produced a ProtocolError cannot be resynchronized
type ProtocolError struct {
	Offset int
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("resp: %s at offset %d", e.Reason, e.Offset)
}

// Unwrap exposes both ErrProtocol and the specific cause to errors.Is
func (e *ProtocolError) Unwrap() []error {
	return []error{ErrProtocol, e.Err}
}
