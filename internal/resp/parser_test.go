package resp_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eternalApril/moonwire/internal/resp"
)

// assertValue compares values structurally, so nil and empty payloads match
func assertValue(t *testing.T, want, got resp.Value) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "value mismatch\nwant: %+v\n got: %+v", want, got)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  resp.Value
		n     int
	}{
		{"Simple string", "+ciao\r\n", resp.MakeSimpleString("ciao"), 7},
		{"Simple string with remainder", "+ciao\r\n-hola\r\n", resp.MakeSimpleString("ciao"), 7},
		{"Empty simple string", "+\r\n", resp.MakeSimpleString(""), 3},
		{"Error", "-ciao\r\n", resp.MakeError("ciao"), 7},
		{"Error with remainder", "-ciao\r\n+pippo\r\n", resp.MakeError("ciao"), 7},
		{"Error with spaces", "-ERR unknown command 'foobar'\r\n", resp.MakeError("ERR unknown command 'foobar'"), 31},
		{"Integer with plus", ":+12\r\n", resp.MakeInteger(12), 6},
		{"Integer negative", ":-12\r\n", resp.MakeInteger(-12), 6},
		{"Integer zero", ":0\r\n", resp.MakeInteger(0), 4},
		{"Integer with remainder", ":+12\r\n+OK\r\n", resp.MakeInteger(12), 6},
		{"Integer max", ":9223372036854775807\r\n", resp.MakeInteger(9223372036854775807), 22},
		{"Integer min", ":-9223372036854775808\r\n", resp.MakeInteger(-9223372036854775808), 23},
		{"Bulk string", "$4\r\nciao\r\n", resp.MakeBulkString("ciao"), 10},
		{"Bulk string with remainder", "$4\r\nciao\r\n+Ok\r\n", resp.MakeBulkString("ciao"), 10},
		{"Empty bulk string", "$0\r\n\r\n", resp.MakeBulkString(""), 6},
		{"Bulk string containing CRLF", "$8\r\nfoo\r\nbar\r\n", resp.MakeBulkString("foo\r\nbar"), 14},
		{"Bulk string binary safe", "$4\r\na\r\nb\r\n", resp.MakeBulkBytes([]byte{'a', '\r', '\n', 'b'}), 10},
		{"Bulk string not utf8", "$3\r\n\xff\x00\xfe\r\n", resp.MakeBulkBytes([]byte{0xff, 0x00, 0xfe}), 9},
		{"Null bulk string", "$-1\r\n", resp.MakeNullString(), 5},
		{"Null bulk string with remainder", "$-1\r\n+Ok\r\n", resp.MakeNullString(), 5},
		{"RESP3 null", "_\r\n", resp.MakeNull(), 3},
		{"RESP3 null with remainder", "_\r\n:123\r\n", resp.MakeNull(), 3},
		{"Null array", "*-1\r\n", resp.MakeNullArray(), 5},
		{"Null array with remainder", "*-1\r\n+OK\r\n", resp.MakeNullArray(), 5},
		{"Empty array", "*0\r\n", resp.MakeArray(nil), 4},
		{
			"Array of bulk strings",
			"*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n",
			resp.MakeArray([]resp.Value{resp.MakeBulkString("foo"), resp.MakeBulkString("bar")}),
			22,
		},
		{
			"Mixed array with remainder",
			"*3\r\n:1\r\n+Hello\r\n-Error\r\n$4\r\nciao\r\n",
			resp.MakeArray([]resp.Value{resp.MakeInteger(1), resp.MakeSimpleString("Hello"), resp.MakeError("Error")}),
			24,
		},
		{
			"Nested array",
			"*2\r\n*2\r\n+One\r\n:2\r\n$3\r\nend\r\n",
			resp.MakeArray([]resp.Value{
				resp.MakeArray([]resp.Value{resp.MakeSimpleString("One"), resp.MakeInteger(2)}),
				resp.MakeBulkString("end"),
			}),
			27,
		},
		{
			"Deeply nested single element",
			"*1\r\n*1\r\n:5\r\n",
			resp.MakeArray([]resp.Value{resp.MakeArray([]resp.Value{resp.MakeInteger(5)})}),
			12,
		},
		{
			"Array containing nulls",
			"*3\r\n$-1\r\n*-1\r\n_\r\n",
			resp.MakeArray([]resp.Value{resp.MakeNullString(), resp.MakeNullArray(), resp.MakeNull()}),
			17,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := resp.Parse([]byte(tt.input))
			require.NoError(t, err)
			assertValue(t, tt.want, got)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestParse_Pipelined(t *testing.T) {
	buf := []byte("+A\r\n+B\r\n")

	v, n, err := resp.Parse(buf)
	require.NoError(t, err)
	assertValue(t, resp.MakeSimpleString("A"), v)
	require.Equal(t, 4, n)

	buf = buf[n:]
	assert.Equal(t, "+B\r\n", string(buf))

	v, n, err = resp.Parse(buf)
	require.NoError(t, err)
	assertValue(t, resp.MakeSimpleString("B"), v)
	require.Equal(t, 4, n)
	assert.Empty(t, buf[n:])
}

func TestParse_NullsAreDistinct(t *testing.T) {
	nulls := []resp.Value{
		mustParse(t, "$-1\r\n"),
		mustParse(t, "*-1\r\n"),
		mustParse(t, "_\r\n"),
	}
	empties := []resp.Value{
		mustParse(t, "$0\r\n\r\n"),
		mustParse(t, "*0\r\n"),
	}

	for i, a := range nulls {
		for j, b := range nulls {
			assert.Equal(t, i == j, a.Equal(b), "null %d vs null %d", i, j)
		}
		for j, e := range empties {
			assert.False(t, a.Equal(e), "null %d equals empty %d", i, j)
		}
	}

	assert.Equal(t, "null_string", nulls[0].Kind())
	assert.Equal(t, "null_array", nulls[1].Kind())
	assert.Equal(t, "null", nulls[2].Kind())
}

func TestParse_Incomplete(t *testing.T) {
	tests := []string{
		"",
		"+OK",
		"+OK\r",
		":12",
		":-",
		":+9223372036854775807",
		"$",
		"$-",
		"$-1",
		"*" + strings.Repeat("9", 18),
		"$5",
		"$5\r\n",
		"$5\r\nab",
		"$5\r\na\r\nb",
		"$5\r\na\r\nb\r",
		"$-1\r",
		"*2\r\n+only-one\r\n",
		"*1\r\n",
		"*1\r\n*1\r\n",
		"_",
		"_\r",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, n, err := resp.Parse([]byte(input))
			assert.ErrorIs(t, err, resp.ErrIncomplete)
			assert.NotErrorIs(t, err, resp.ErrProtocol)
			assert.Zero(t, n)
		})
	}
}

// every proper prefix of a valid encoding must ask for more data, never fail
func TestParse_PrefixesAreIncomplete(t *testing.T) {
	inputs := []string{
		"*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nva\r\nl\r\n",
		"*2\r\n*2\r\n+One\r\n:2\r\n$3\r\nend\r\n",
		"*3\r\n$-1\r\n*-1\r\n_\r\n",
		"-ERR nope\r\n",
		":-9223372036854775808\r\n",
	}

	for _, input := range inputs {
		for i := 0; i < len(input); i++ {
			_, _, err := resp.Parse([]byte(input[:i]))
			require.ErrorIsf(t, err, resp.ErrIncomplete, "prefix %q", input[:i])
		}
		_, n, err := resp.Parse([]byte(input))
		require.NoError(t, err)
		require.Equal(t, len(input), n)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		cause  error
		offset int
	}{
		{"Non numeric bulk length", "$abc\r\n", resp.ErrInvalidLength, 1},
		{"Non numeric integer", ":12x\r\n", resp.ErrInvalidInteger, 1},
		{"Empty integer", ":\r\n", resp.ErrInvalidInteger, 1},
		{"Integer overflow", ":9223372036854775808\r\n", resp.ErrInvalidInteger, 1},
		{"Negative bulk length", "$-2\r\n", resp.ErrInvalidLength, 1},
		{"Negative array count", "*-5\r\n", resp.ErrInvalidLength, 1},
		{"Bulk length with sign", "$+3\r\nfoo\r\n", resp.ErrInvalidLength, 1},
		{"Empty bulk length", "$\r\n", resp.ErrInvalidLength, 1},
		{"Unknown tag", "?foo\r\n", resp.ErrUnknownType, 0},
		{"Unknown nested tag", "*1\r\n!x\r\n", resp.ErrUnknownType, 4},
		{"Bare LF", "+OK\n", resp.ErrInvalidEnding, 3},
		{"CR without LF", "+O\rK\r\n", resp.ErrInvalidEnding, 3},
		{"Bulk payload longer than declared", "$3\r\nabcd\r\n", resp.ErrInvalidEnding, 7},
		{"Declared length one past the payload", "$5\r\na\r\nb\r\n", resp.ErrInvalidEnding, 9},
		{"Bulk payload missing LF", "$3\r\nabc\rX", resp.ErrInvalidEnding, 8},
		{"Null with payload", "_x\r\n", resp.ErrInvalidEnding, 1},
		{"Huge bulk length", "$99999999999999999999\r\n", resp.ErrTooLarge, 1},
		{"Unterminated over long bulk length", "$" + strings.Repeat("1", 1<<20), resp.ErrTooLarge, 1},
		{"Unterminated over long array count", "*" + strings.Repeat("9", 19), resp.ErrTooLarge, 1},
		{"Unterminated non numeric length", "$12a", resp.ErrInvalidLength, 1},
		{"Unterminated negative length", "$-x", resp.ErrInvalidLength, 1},
		{"Unterminated minus one with trailing digit", "*-10", resp.ErrInvalidLength, 1},
		{"Unterminated garbage integer", ":" + strings.Repeat("x", 1<<20), resp.ErrInvalidInteger, 1},
		{"Unterminated over long integer", ":-" + strings.Repeat("1", 20), resp.ErrInvalidInteger, 1},
		{"Sign inside integer", ":1-", resp.ErrInvalidInteger, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, n, err := resp.Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Zero(t, n)
			assert.ErrorIs(t, err, resp.ErrProtocol)
			assert.ErrorIs(t, err, tt.cause)
			assert.NotErrorIs(t, err, resp.ErrIncomplete)

			var perr *resp.ProtocolError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.offset, perr.Offset)
			assert.NotEmpty(t, perr.Reason)
		})
	}
}

func TestParse_Limits(t *testing.T) {
	limits := resp.Limits{MaxBulkLen: 4, MaxArrayLen: 2, MaxDepth: 2}

	_, _, err := limits.Parse([]byte("$4\r\nabcd\r\n"))
	assert.NoError(t, err)

	_, _, err = limits.Parse([]byte("$5\r\n"))
	assert.ErrorIs(t, err, resp.ErrTooLarge, "rejected before the payload arrives")

	_, _, err = limits.Parse([]byte("*3\r\n"))
	assert.ErrorIs(t, err, resp.ErrTooLarge)

	_, _, err = limits.Parse([]byte("*1\r\n*1\r\n:1\r\n"))
	assert.NoError(t, err)

	_, _, err = limits.Parse([]byte("*1\r\n*1\r\n*1\r\n:1\r\n"))
	assert.ErrorIs(t, err, resp.ErrTooDeep)

	// null arrays do not nest
	_, _, err = limits.Parse([]byte("*1\r\n*1\r\n*-1\r\n"))
	assert.NoError(t, err)

	_, _, err = limits.Parse([]byte("+abcdef"))
	assert.ErrorIs(t, err, resp.ErrTooLarge, "unterminated line beyond the bulk limit")
}

func TestParse_DoesNotAliasInput(t *testing.T) {
	buf := []byte("*2\r\n$3\r\nfoo\r\n+bar\r\n")

	v, _, err := resp.Parse(buf)
	require.NoError(t, err)

	for i := range buf {
		buf[i] = 'x'
	}

	assert.Equal(t, "foo", string(v.Array[0].String))
	assert.Equal(t, "bar", string(v.Array[1].String))
}

func mustParse(t *testing.T, s string) resp.Value {
	t.Helper()
	v, n, err := resp.Parse([]byte(s))
	require.NoError(t, err)
	require.Equal(t, len(s), n)
	return v
}
