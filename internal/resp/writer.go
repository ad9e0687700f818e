package resp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// scratchLimit is the largest encoding buffer an Encoder keeps between writes
const scratchLimit = 64 << 10

// Encode returns the wire form of v
func Encode(v Value) ([]byte, error) {
	return AppendValue(nil, v)
}

// AppendValue appends the wire form of v to dst.
// On error the content appended to dst is unspecified
func AppendValue(dst []byte, v Value) ([]byte, error) {
	switch v.Type {
	case TypeSimpleString, TypeError:
		if bytes.ContainsAny(v.String, "\r\n") {
			return dst, ErrInvalidSimpleString
		}
		dst = append(dst, v.Type)
		dst = append(dst, v.String...)
		return append(dst, '\r', '\n'), nil

	case TypeInteger:
		return appendHeader(dst, TypeInteger, v.Integer), nil

	case TypeBulkString:
		if v.IsNull {
			return append(dst, "$-1\r\n"...), nil
		}
		dst = appendHeader(dst, TypeBulkString, int64(len(v.String)))
		dst = append(dst, v.String...)
		return append(dst, '\r', '\n'), nil

	case TypeArray:
		if v.IsNull {
			return append(dst, "*-1\r\n"...), nil
		}
		dst = appendHeader(dst, TypeArray, int64(len(v.Array)))
		var err error
		for _, el := range v.Array {
			if dst, err = AppendValue(dst, el); err != nil {
				return dst, err
			}
		}
		return dst, nil

	case TypeNull:
		return append(dst, "_\r\n"...), nil
	}

	return dst, fmt.Errorf("resp: cannot encode value: %w %q", ErrUnknownType, v.Type)
}

// appendHeader writes the type prefix, numeric value, and CRLF
func appendHeader(dst []byte, prefix byte, n int64) []byte {
	dst = append(dst, prefix)
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, '\r', '\n')
}

// Encoder handles the serialization of RESP Value objects into an output stream.
// Writes are buffered until Flush
type Encoder struct {
	writer  *bufio.Writer
	scratch []byte
}

// NewEncoder initializes an Encoder with a buffered writer
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		writer: bufio.NewWriter(w)}
}

// NewEncoderSize initializes an Encoder whose buffer has at least size bytes
func NewEncoderSize(w io.Writer, size int) *Encoder {
	return &Encoder{
		writer: bufio.NewWriterSize(w, size)}
}

// Write serializes a RESP Value into the buffer. A value that cannot be encoded
// leaves the buffer untouched
func (e *Encoder) Write(v Value) error {
	b, err := AppendValue(e.scratch[:0], v)
	if err != nil {
		return err
	}

	if cap(b) <= scratchLimit {
		e.scratch = b
	} else {
		e.scratch = nil
	}

	_, err = e.writer.Write(b)
	return err
}

// Flush sends all buffered data to the underlying stream
func (e *Encoder) Flush() error {
	return e.writer.Flush()
}

// Buffered returns the number of encoded bytes waiting for Flush
func (e *Encoder) Buffered() int {
	return e.writer.Buffered()
}
