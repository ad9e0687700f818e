package server

import (
	"strings"

	"github.com/eternalApril/moonwire/internal/command"
	"github.com/eternalApril/moonwire/internal/resp"
)

// commandInfo handles COMMAND [COUNT | DOCS [name ...] | INFO [name ...]]
func commandInfo(req *request) resp.Value {
	if len(req.args) == 0 {
		return getAllCommands()
	}

	sub := strings.ToUpper(string(req.args[0]))
	names := req.args[1:]

	switch sub {
	case "COUNT":
		if len(names) != 0 {
			return wrongArity("command|count")
		}
		return resp.MakeInteger(int64(len(command.Specs())))
	case "DOCS":
		return getCommandsDocs(names)
	case "INFO":
		return getCommandsInfo(names)
	}

	return resp.MakeErrorf("ERR unknown subcommand '%s'. Try COMMAND HELP.", command.Printable(string(req.args[0])))
}

func makeFlagsArray(flags []string) resp.Value {
	vals := make([]resp.Value, len(flags))
	for i, f := range flags {
		vals[i] = resp.MakeSimpleString(f)
	}
	return resp.MakeArray(vals)
}

func makeInfoCmdArray(spec command.Spec) resp.Value {
	return resp.MakeArray([]resp.Value{
		resp.MakeBulkString(strings.ToLower(spec.Name)),
		resp.MakeInteger(int64(spec.Arity)),
		makeFlagsArray(spec.Flags),
		resp.MakeInteger(int64(spec.FirstKey)),
		resp.MakeInteger(int64(spec.LastKey)),
		resp.MakeInteger(int64(spec.Step)),
	})
}

func getAllCommands() resp.Value {
	specs := command.Specs()
	cmdArray := make([]resp.Value, 0, len(specs))
	for _, spec := range specs {
		cmdArray = append(cmdArray, makeInfoCmdArray(spec))
	}
	return resp.MakeArray(cmdArray)
}

// getCommandsInfo answers with one entry per requested name, null for unknown commands
func getCommandsInfo(names [][]byte) resp.Value {
	if len(names) == 0 {
		return getAllCommands()
	}

	result := make([]resp.Value, 0, len(names))
	for _, name := range names {
		spec, ok := command.Lookup(string(name))
		if !ok {
			result = append(result, resp.MakeNullArray())
			continue
		}
		result = append(result, makeInfoCmdArray(spec))
	}
	return resp.MakeArray(result)
}

// getCommandsDocs returns documentation for specified commands or all commands
// Format: [Name, [Summary, val, Since, val...], Name, [...]]
func getCommandsDocs(names [][]byte) resp.Value {
	var targets []command.Spec

	if len(names) == 0 {
		targets = command.Specs()
	} else {
		for _, name := range names {
			if spec, ok := command.Lookup(string(name)); ok {
				targets = append(targets, spec)
			}
		}
	}

	result := make([]resp.Value, 0, len(targets)*2)

	for _, spec := range targets {
		result = append(result, resp.MakeBulkString(strings.ToLower(spec.Name)))

		props := []resp.Value{
			resp.MakeBulkString("summary"),
			resp.MakeBulkString(spec.Doc.Summary),
			resp.MakeBulkString("since"),
			resp.MakeBulkString(spec.Doc.Since),
			resp.MakeBulkString("group"),
			resp.MakeBulkString(spec.Doc.Group),
			resp.MakeBulkString("complexity"),
			resp.MakeBulkString(spec.Doc.Complexity),
		}

		result = append(result, resp.MakeArray(props))
	}

	return resp.MakeArray(result)
}
