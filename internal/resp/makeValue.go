package resp

import "fmt"

// MakeSimpleString construct SimpleString Value from string
func MakeSimpleString(s string) Value {
	return Value{
		Type:   TypeSimpleString,
		String: []byte(s),
	}
}

// MakeOK construct the +OK reply
func MakeOK() Value {
	return MakeSimpleString("OK")
}

// MakeError construct Error Value from string
func MakeError(s string) Value {
	return Value{
		Type:   TypeError,
		String: []byte(s),
	}
}

// MakeErrorf construct Error Value from a format string
func MakeErrorf(format string, args ...any) Value {
	return MakeError(fmt.Sprintf(format, args...))
}

// MakeBulkString construct BulkString Value from string
func MakeBulkString(s string) Value {
	return MakeBulkBytes([]byte(s))
}

// MakeBulkBytes construct BulkString Value that takes ownership of b
func MakeBulkBytes(b []byte) Value {
	return Value{
		Type:   TypeBulkString,
		String: b,
	}
}

// MakeNullString construct the RESP2 nil BulkString ($-1)
func MakeNullString() Value {
	return Value{
		Type:   TypeBulkString,
		IsNull: true,
	}
}

// MakeInteger construct Integer Value from int64
func MakeInteger(n int64) Value {
	return Value{
		Type:    TypeInteger,
		Integer: n,
	}
}

// MakeArray creates a standard RESP array containing the provided elements
func MakeArray(values []Value) Value {
	return Value{
		Type:  TypeArray,
		Array: values,
	}
}

// MakeNullArray construct the RESP2 nil Array (*-1)
func MakeNullArray() Value {
	return Value{
		Type:   TypeArray,
		IsNull: true,
	}
}

// MakeNull construct the RESP3 null (_)
func MakeNull() Value {
	return Value{Type: TypeNull}
}
