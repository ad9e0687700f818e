package command

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownCommand = errors.New("unknown command")
	ErrWrongArity     = errors.New("wrong number of arguments")
)

// Error is a request that could not be mapped to a command.
// The connection stays usable: the error text is sent back as a RESP error
type Error struct {
	Name string // command name as sent by the client
	Err  error
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, ErrUnknownCommand):
		return fmt.Sprintf("ERR unknown command '%s'", Printable(e.Name))
	case errors.Is(e.Err, ErrWrongArity):
		return fmt.Sprintf("ERR wrong number of arguments for '%s' command", Printable(e.Name))
	case errors.Is(e.Err, ErrInvalidRequest):
		return "ERR invalid request, expected a non-empty array of bulk strings"
	}
	return "ERR " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Printable keeps client supplied text from breaking a single line error reply
func Printable(s string) string {
	const limit = 128
	if len(s) > limit {
		s = s[:limit]
	}
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
}
