package resp_test

import (
	"errors"
	"testing"

	"github.com/eternalApril/moonwire/internal/resp"
)

func FuzzParse(f *testing.F) {
	f.Add([]byte("*2\r\n$3\r\nGET\r\n$3\r\nkey\r\n"))
	f.Add([]byte("+OK\r\n-ERR x\r\n:+12\r\n"))
	f.Add([]byte("$5\r\na\r\nb\r\n"))
	f.Add([]byte("*3\r\n$-1\r\n*-1\r\n_\r\n"))
	f.Add([]byte("*1\r\n*1\r\n:5\r\n"))
	f.Add([]byte("$abc\r\n"))

	limits := resp.Limits{MaxBulkLen: 1 << 16, MaxArrayLen: 1 << 10, MaxDepth: 16}

	f.Fuzz(func(t *testing.T, data []byte) {
		v, n, err := limits.Parse(data)
		if err != nil {
			if !errors.Is(err, resp.ErrIncomplete) && !errors.Is(err, resp.ErrProtocol) {
				t.Fatalf("unexpected error class: %v", err)
			}
			return
		}

		if n <= 0 || n > len(data) {
			t.Fatalf("consumed %d of %d bytes", n, len(data))
		}

		// the canonical re-encoding must decode to the same value
		encoded, err := resp.Encode(v)
		if err != nil {
			t.Fatalf("decoded value cannot be encoded: %v", err)
		}
		again, m, err := limits.Parse(encoded)
		if err != nil || m != len(encoded) || !again.Equal(v) {
			t.Fatalf("round trip mismatch: %q -> %q (%v)", data[:n], encoded, err)
		}

		// splitting the input must not change the outcome
		fr := resp.NewFramer(limits)
		fr.Feed(data[:n/2])
		if _, ok, err := fr.Next(); ok || err != nil {
			t.Fatalf("half a value produced ok=%v err=%v", ok, err)
		}
		fr.Feed(data[n/2 : n])
		got, ok, err := fr.Next()
		if err != nil || !ok || !got.Equal(v) {
			t.Fatalf("split decode mismatch: ok=%v err=%v", ok, err)
		}
	})
}
