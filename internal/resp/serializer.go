package resp

// MakeCommand builds a request in its normal shape: an array of bulk strings
func MakeCommand(name string, args ...string) Value {
	elements := make([]Value, 1+len(args))

	elements[0] = MakeBulkString(name)
	for i, arg := range args {
		elements[i+1] = MakeBulkString(arg)
	}

	return MakeArray(elements)
}

// SerializeCommand encodes a request the way a client sends it on the wire
func SerializeCommand(name string, args ...string) ([]byte, error) {
	return Encode(MakeCommand(name, args...))
}
