package resp

import (
	"errors"
	"io"
)

// DefaultReadSize is the minimum free space offered to each transport read
const DefaultReadSize = 4096

// maxEmptyReads mirrors bufio: a reader returning nothing this many times is broken
const maxEmptyReads = 100

// Decoder reads complete values from a byte stream.
// It never assumes that one transport read carries one value: a read may hold
// part of a value, exactly one, or several pipelined ones
type Decoder struct {
	rd       io.Reader
	frame    *Framer
	readSize int
	err      error // sticky transport error
}

// NewDecoder creates a Decoder with DefaultLimits
func NewDecoder(rd io.Reader) *Decoder {
	return NewDecoderSize(rd, DefaultReadSize, DefaultLimits)
}

// NewDecoderSize creates a Decoder that reads in chunks of at least readSize bytes
func NewDecoderSize(rd io.Reader, readSize int, limits Limits) *Decoder {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}

	return &Decoder{
		rd:       rd,
		frame:    NewFramer(limits),
		readSize: readSize,
	}
}

// Read returns the next complete value, reading from the stream only when no complete
// value is buffered. At a clean end of stream it returns io.EOF, in the middle of a value
// io.ErrUnexpectedEOF. Malformed input returns a *ProtocolError
func (d *Decoder) Read() (Value, error) {
	empty := 0

	for {
		v, ok, err := d.frame.Next()
		if err != nil {
			return Value{}, err
		}
		if ok {
			return v, nil
		}

		if d.err != nil {
			return Value{}, d.readErr()
		}

		n, err := d.frame.fill(d.rd, d.readSize)
		if err != nil {
			d.err = err
			continue
		}

		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				d.err = io.ErrNoProgress
			}
		}
	}
}

// TryRead returns a value only if one is already buffered, it never touches the stream
func (d *Decoder) TryRead() (Value, bool, error) {
	return d.frame.Next()
}

// Buffered returns the number of bytes that can be read from the current buffer
func (d *Decoder) Buffered() int {
	return d.frame.Buffered()
}

func (d *Decoder) readErr() error {
	if errors.Is(d.err, io.EOF) && d.frame.Buffered() > 0 {
		return io.ErrUnexpectedEOF
	}
	return d.err
}
