package resp

import "bytes"

// RESP type tags. The tag is the first byte of every encoded value
const (
	TypeSimpleString = '+'
	TypeError        = '-'
	TypeInteger      = ':'
	TypeBulkString   = '$'
	TypeArray        = '*'
	TypeNull         = '_'
)

// Value is a single RESP datum.
// Type selects the meaningful payload: String for SimpleString, Error and BulkString,
// Integer for Integer and Array for Array. IsNull marks the RESP2 null bulk string ($-1)
// and null array (*-1); the RESP3 null has its own Type.
// A Value is not modified after it has been built
type Value struct {
	String  []byte  // SimpleString, Error, BulkString
	Array   []Value // Array
	Integer int64   // Integer
	Type    byte
	IsNull  bool // For nil BulkString and nil Array
}

// Equal reports whether v and o describe the same RESP value.
// Nil and empty payloads compare equal, null variants never equal their empty counterparts
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.IsNull != o.IsNull {
		return false
	}

	switch v.Type {
	case TypeSimpleString, TypeError, TypeBulkString:
		return bytes.Equal(v.String, o.String)
	case TypeInteger:
		return v.Integer == o.Integer
	case TypeArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
	}

	return true
}

// Kind returns the variant name, used in logs and metric labels
func (v Value) Kind() string {
	switch v.Type {
	case TypeSimpleString:
		return "simple_string"
	case TypeError:
		return "error"
	case TypeInteger:
		return "integer"
	case TypeBulkString:
		if v.IsNull {
			return "null_string"
		}
		return "bulk_string"
	case TypeArray:
		if v.IsNull {
			return "null_array"
		}
		return "array"
	case TypeNull:
		return "null"
	}
	return "unknown"
}
