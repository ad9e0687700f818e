package resp

import (
	"bytes"
	"fmt"
	"strconv"
)

// Limits bounds what the parser accepts from untrusted input.
// Zero fields fall back to DefaultLimits
type Limits struct {
	MaxBulkLen  int // bytes in one bulk string
	MaxArrayLen int // elements in one array
	MaxDepth    int // array nesting
}

// DefaultLimits mirror the Redis defaults (proto-max-bulk-len is 512MB)
var DefaultLimits = Limits{
	MaxBulkLen:  512 << 20,
	MaxArrayLen: 1 << 20,
	MaxDepth:    128,
}

// maxLengthDigits keeps length headers far away from int overflow
const maxLengthDigits = 18

// maxIntegerDigits is the widest int64 without its sign
const maxIntegerDigits = 19

// Parse extracts one value from the front of buf using DefaultLimits.
// See Limits.Parse
func Parse(buf []byte) (Value, int, error) {
	return DefaultLimits.Parse(buf)
}

// Parse extracts exactly one value from the front of buf and returns it together with
// the number of bytes it occupied. Trailing bytes are left untouched.
//
// If buf holds only a prefix of a value the error is ErrIncomplete and nothing is consumed.
// Malformed input yields a *ProtocolError. The returned Value never aliases buf
func (l Limits) Parse(buf []byte) (Value, int, error) {
	p := parser{buf: buf, limits: l.withDefaults()}

	v, err := p.value(0)
	if err != nil {
		return Value{}, 0, err
	}

	return v, p.pos, nil
}

func (l Limits) withDefaults() Limits {
	if l.MaxBulkLen <= 0 {
		l.MaxBulkLen = DefaultLimits.MaxBulkLen
	}
	if l.MaxArrayLen <= 0 {
		l.MaxArrayLen = DefaultLimits.MaxArrayLen
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultLimits.MaxDepth
	}
	return l
}

// parser is a cursor over a buffer. It is discarded after every Parse call,
// so an incomplete value leaves no state behind
type parser struct {
	buf    []byte
	pos    int
	limits Limits
}

func (p *parser) value(depth int) (Value, error) {
	if p.pos >= len(p.buf) {
		return Value{}, ErrIncomplete
	}

	start := p.pos
	tag := p.buf[p.pos]
	p.pos++

	switch tag {
	case TypeSimpleString, TypeError:
		line, err := p.line()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: tag, String: bytes.Clone(line)}, nil

	case TypeInteger:
		off := p.pos
		if err := p.scanInteger(); err != nil {
			return Value{}, err
		}
		line, err := p.line()
		if err != nil {
			return Value{}, err
		}
		n, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return Value{}, p.errorf(off, ErrInvalidInteger, "invalid integer %q", line)
		}
		return MakeInteger(n), nil

	case TypeBulkString:
		return p.bulk()

	case TypeArray:
		return p.array(start, depth)

	case TypeNull:
		if err := p.crlf(); err != nil {
			return Value{}, err
		}
		return MakeNull(), nil
	}

	return Value{}, p.errorf(start, ErrUnknownType, "unknown type tag %q", tag)
}

// line returns the bytes before the next CR LF and moves the cursor past the terminator.
// A bare LF, or a CR followed by anything but LF, is malformed
func (p *parser) line() ([]byte, error) {
	start := p.pos

	i := bytes.IndexAny(p.buf[start:], "\r\n")
	if i < 0 {
		if len(p.buf)-start > p.limits.MaxBulkLen {
			return nil, p.errorf(start, ErrTooLarge, "line longer than %d bytes", p.limits.MaxBulkLen)
		}
		return nil, ErrIncomplete
	}

	if i > p.limits.MaxBulkLen {
		return nil, p.errorf(start, ErrTooLarge, "line longer than %d bytes", p.limits.MaxBulkLen)
	}

	i += start
	if p.buf[i] == '\n' {
		return nil, p.errorf(i, ErrInvalidEnding, "LF without preceding CR")
	}
	if i+1 == len(p.buf) {
		return nil, ErrIncomplete
	}
	if p.buf[i+1] != '\n' {
		return nil, p.errorf(i+1, ErrInvalidEnding, "expected LF after CR")
	}

	p.pos = i + 2
	return p.buf[start:i], nil
}

// crlf consumes an exact CR LF. Each byte is checked as soon as it is available
func (p *parser) crlf() error {
	for i := 0; i < 2; i++ {
		at := p.pos + i
		if at >= len(p.buf) {
			return ErrIncomplete
		}
		if p.buf[at] != "\r\n"[i] {
			return p.errorf(at, ErrInvalidEnding, "expected CRLF")
		}
	}

	p.pos += 2
	return nil
}

// scanInteger checks the buffered part of an integer line so that a line which can never
// become a valid int64 is rejected before its terminator arrives
func (p *parser) scanInteger() error {
	off := p.pos
	digits := 0

	for i := off; i < len(p.buf); i++ {
		c := p.buf[i]
		switch {
		case c == '\r' || c == '\n':
			return nil
		case i == off && (c == '+' || c == '-'):
		case c < '0' || c > '9':
			return p.errorf(off, ErrInvalidInteger, "invalid integer %q", p.buf[off:i+1])
		default:
			digits++
			if digits > maxIntegerDigits {
				return p.errorf(off, ErrInvalidInteger, "integer longer than %d digits", maxIntegerDigits)
			}
		}
	}

	return nil
}

// scanLength checks the buffered part of a length header the same way. Only digits or
// exactly "-1" can become valid, and at most maxLengthDigits of them
func (p *parser) scanLength() error {
	off := p.pos

	for i := off; i < len(p.buf); i++ {
		c := p.buf[i]
		switch {
		case c == '\r' || c == '\n':
			return nil
		case i == off && c == '-':
		case p.buf[off] == '-':
			if i != off+1 || c != '1' {
				return p.errorf(off, ErrInvalidLength, "negative length %q", p.buf[off:i+1])
			}
		case c < '0' || c > '9':
			return p.errorf(off, ErrInvalidLength, "invalid length %q", p.buf[off:i+1])
		case i-off >= maxLengthDigits:
			return p.errorf(off, ErrTooLarge, "length longer than %d digits", maxLengthDigits)
		}
	}

	return nil
}

// length reads a bulk length or array count header. -1 is the only accepted negative value
// and is reported as null
func (p *parser) length(limit int) (n int, null bool, err error) {
	off := p.pos
	if err := p.scanLength(); err != nil {
		return 0, false, err
	}

	line, err := p.line()
	if err != nil {
		return 0, false, err
	}

	switch {
	case len(line) == 0:
		return 0, false, p.errorf(off, ErrInvalidLength, "empty length")
	case len(line) == 2 && line[0] == '-':
		return 0, true, nil
	case line[0] == '-':
		return 0, false, p.errorf(off, ErrInvalidLength, "negative length %q", line)
	}

	// scanLength has already checked every byte
	for _, c := range line {
		n = n*10 + int(c-'0')
	}

	if n > limit {
		return 0, false, p.errorf(off, ErrTooLarge, "length %d exceeds limit %d", n, limit)
	}

	return n, false, nil
}

func (p *parser) bulk() (Value, error) {
	n, null, err := p.length(p.limits.MaxBulkLen)
	if err != nil {
		return Value{}, err
	}
	if null {
		return MakeNullString(), nil
	}

	start := p.pos
	end := start + n
	if end > len(p.buf) {
		return Value{}, ErrIncomplete
	}

	p.pos = end
	if err := p.crlf(); err != nil {
		return Value{}, err
	}

	return MakeBulkBytes(bytes.Clone(p.buf[start:end])), nil
}

func (p *parser) array(start, depth int) (Value, error) {
	n, null, err := p.length(p.limits.MaxArrayLen)
	if err != nil {
		return Value{}, err
	}
	if null {
		return MakeNullArray(), nil
	}

	if depth >= p.limits.MaxDepth {
		return Value{}, p.errorf(start, ErrTooDeep, "arrays nested deeper than %d", p.limits.MaxDepth)
	}

	// the count is untrusted, so don't preallocate all of it
	elems := make([]Value, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		v, err := p.value(depth + 1)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}

	return MakeArray(elems), nil
}

func (p *parser) errorf(off int, cause error, format string, args ...any) error {
	return &ProtocolError{
		Offset: off,
		Reason: fmt.Sprintf(format, args...),
		Err:    cause,
	}
}
