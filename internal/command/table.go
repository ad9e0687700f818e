package command

import (
	"slices"
	"strings"
)

// Spec describes a command the way COMMAND INFO reports it
type Spec struct {
	Kind     Kind
	Name     string
	Arity    int      // Arity includes the command name itself, negative means "at least"
	Flags    []string // readonly, write, fast, denyoom, etc
	FirstKey int      // 1-based index of the first key
	LastKey  int      // 1-based index of the last key
	Step     int      // Step count for finding keys
	Doc      Doc
}

// Doc stores a description for the command
type Doc struct {
	Summary    string
	Complexity string
	Group      string
	Since      string
}

func (s Spec) accepts(parts int) bool {
	if s.Arity < 0 {
		return parts >= -s.Arity
	}
	return parts == s.Arity
}

var specs = []Spec{
	{
		Kind: Ping, Name: "PING", Arity: -1, Flags: []string{"fast", "stale"},
		Doc: Doc{"Ping the server.", "O(1)", "connection", "1.0.0"},
	},
	{
		Kind: Echo, Name: "ECHO", Arity: 2, Flags: []string{"fast", "stale"},
		Doc: Doc{"Return the given string.", "O(1)", "connection", "1.0.0"},
	},
	{
		Kind: Quit, Name: "QUIT", Arity: -1, Flags: []string{"fast", "stale"},
		Doc: Doc{"Close the connection.", "O(1)", "connection", "1.0.0"},
	},
	{
		Kind: Get, Name: "GET", Arity: 2, Flags: []string{"readonly", "fast"}, FirstKey: 1, LastKey: 1, Step: 1,
		Doc: Doc{"Get the value of a key.", "O(1)", "string", "1.0.0"},
	},
	{
		Kind: Set, Name: "SET", Arity: -3, Flags: []string{"write", "denyoom"}, FirstKey: 1, LastKey: 1, Step: 1,
		Doc: Doc{"Set the string value of a key.", "O(1)", "string", "1.0.0"},
	},
	{
		Kind: Del, Name: "DEL", Arity: -2, Flags: []string{"write"}, FirstKey: 1, LastKey: -1, Step: 1,
		Doc: Doc{"Delete a key.", "O(N) where N is the number of keys that will be removed.", "generic", "1.0.0"},
	},
	{
		Kind: Exists, Name: "EXISTS", Arity: -2, Flags: []string{"readonly", "fast"}, FirstKey: 1, LastKey: -1, Step: 1,
		Doc: Doc{"Determine if a key exists.", "O(N) where N is the number of keys to check.", "generic", "1.0.0"},
	},
	{
		Kind: TTL, Name: "TTL", Arity: 2, Flags: []string{"readonly", "fast"}, FirstKey: 1, LastKey: 1, Step: 1,
		Doc: Doc{"Get the time to live for a key in seconds.", "O(1)", "generic", "1.0.0"},
	},
	{
		Kind: PTTL, Name: "PTTL", Arity: 2, Flags: []string{"readonly", "fast"}, FirstKey: 1, LastKey: 1, Step: 1,
		Doc: Doc{"Get the time to live for a key in milliseconds.", "O(1)", "generic", "2.6.0"},
	},
	{
		Kind: Commands, Name: "COMMAND", Arity: -1, Flags: []string{"random", "loading", "stale"},
		Doc: Doc{"Get array of command details.", "O(N) where N is the number of commands to look up.", "server", "2.8.13"},
	},
}

var (
	specByName = make(map[string]Spec, len(specs))
	specByKind = make(map[Kind]Spec, len(specs))
)

func init() {
	for _, s := range specs {
		specByName[s.Name] = s
		specByKind[s.Kind] = s
	}
}

// Lookup finds a command by name, case-insensitively
func Lookup(name string) (Spec, bool) {
	s, ok := specByName[strings.ToUpper(name)]
	return s, ok
}

// Specs returns every supported command ordered by name
func Specs() []Spec {
	out := slices.Clone(specs)
	slices.SortFunc(out, func(a, b Spec) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
