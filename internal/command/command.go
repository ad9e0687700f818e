// Package command maps decoded requests to the commands the server understands.
// Mapping is pure: it validates the request shape, the command name and its arity,
// and never touches the keyspace
package command

import (
	"strings"

	"github.com/eternalApril/moonwire/internal/resp"
)

// Kind identifies a supported command
type Kind int

const (
	Ping Kind = iota + 1
	Echo
	Get
	Set
	Del
	Exists
	TTL
	PTTL
	Commands
	Quit
)

func (k Kind) String() string {
	if spec, ok := specByKind[k]; ok {
		return spec.Name
	}
	return "UNKNOWN"
}

// Command is a validated request
type Command struct {
	Kind Kind
	Name string   // upper-case command name
	Args [][]byte // arguments after the name, binary safe
}

// Parse maps a request, normally an array of bulk strings, to a Command.
// Every failure is a *Error whose text is the reply to send back to the client
func Parse(v resp.Value) (Command, error) {
	if v.Type != resp.TypeArray || v.IsNull || len(v.Array) == 0 {
		return Command{}, &Error{Err: ErrInvalidRequest}
	}

	parts := make([][]byte, len(v.Array))
	for i, el := range v.Array {
		if el.Type != resp.TypeBulkString || el.IsNull {
			return Command{}, &Error{Err: ErrInvalidRequest}
		}
		parts[i] = el.String
	}

	name := strings.ToUpper(string(parts[0]))

	spec, ok := Lookup(name)
	if !ok {
		return Command{}, &Error{Name: string(parts[0]), Err: ErrUnknownCommand}
	}

	if !spec.accepts(len(parts)) {
		return Command{}, &Error{Name: strings.ToLower(name), Err: ErrWrongArity}
	}

	return Command{
		Kind: spec.Kind,
		Name: spec.Name,
		Args: parts[1:],
	}, nil
}
