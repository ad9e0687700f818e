package resp

import (
	"errors"
	"io"
)

// idleCapLimit is the largest buffer a Framer keeps once it has been drained
const idleCapLimit = 64 << 10

// Framer turns an arbitrarily chunked byte stream into complete values.
// It owns one growable buffer: bytes are appended with Feed and complete values are
// taken from the front with Next, leaving a partial value or pipelined values buffered.
//
// A Framer belongs to a single connection and is not safe for concurrent use
type Framer struct {
	buf    []byte
	r      int // start of unconsumed bytes in buf
	limits Limits
	err    error
}

// NewFramer creates a Framer that parses with the given limits
func NewFramer(limits Limits) *Framer {
	return &Framer{limits: limits.withDefaults()}
}

// Feed appends bytes received from the transport
func (f *Framer) Feed(p []byte) {
	f.compact()
	f.buf = append(f.buf, p...)
}

// Next extracts the next complete value. It returns false and a nil error when more bytes
// are needed. After a protocol error the Framer is unusable and Next keeps returning that error
func (f *Framer) Next() (Value, bool, error) {
	if f.err != nil {
		return Value{}, false, f.err
	}
	if f.r == len(f.buf) {
		return Value{}, false, nil
	}

	v, n, err := f.limits.Parse(f.buf[f.r:])
	if err != nil {
		if errors.Is(err, ErrIncomplete) {
			return Value{}, false, nil
		}
		f.err = err
		return Value{}, false, err
	}

	f.r += n
	if f.r == len(f.buf) {
		f.drain()
	}

	return v, true, nil
}

// Buffered returns the number of bytes received but not yet returned as values
func (f *Framer) Buffered() int {
	return len(f.buf) - f.r
}

// Reset discards buffered bytes and any sticky error
func (f *Framer) Reset() {
	f.buf = nil
	f.r = 0
	f.err = nil
}

// fill reads once from rd straight into the buffer, growing it so that at least size bytes are free
func (f *Framer) fill(rd io.Reader, size int) (int, error) {
	f.compact()

	if cap(f.buf)-len(f.buf) < size {
		grown := make([]byte, len(f.buf), 2*cap(f.buf)+size)
		copy(grown, f.buf)
		f.buf = grown
	}

	n, err := rd.Read(f.buf[len(f.buf):cap(f.buf)])
	if n < 0 {
		n = 0
	}
	f.buf = f.buf[:len(f.buf)+n]

	return n, err
}

// compact moves unconsumed bytes to the front of the buffer
func (f *Framer) compact() {
	if f.r == 0 {
		return
	}
	n := copy(f.buf, f.buf[f.r:])
	f.buf = f.buf[:n]
	f.r = 0
}

func (f *Framer) drain() {
	f.r = 0
	if cap(f.buf) > idleCapLimit {
		f.buf = nil
		return
	}
	f.buf = f.buf[:0]
}
