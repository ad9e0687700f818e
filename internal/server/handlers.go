package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eternalApril/moonwire/internal/command"
	"github.com/eternalApril/moonwire/internal/resp"
	"github.com/eternalApril/moonwire/internal/storage"
)

var (
	errSyntax        = resp.MakeError("ERR syntax error")
	errNotInteger    = resp.MakeError("ERR value is not an integer or out of range")
	errInvalidExpire = resp.MakeError("ERR invalid expire time in 'set' command")
)

func wrongArity(name string) resp.Value {
	return resp.MakeError((&command.Error{Name: name, Err: command.ErrWrongArity}).Error())
}

func ping(req *request) resp.Value {
	switch len(req.args) {
	case 0:
		return resp.MakeSimpleString("PONG")
	case 1:
		return resp.MakeBulkBytes(req.args[0])
	}
	return wrongArity("ping")
}

func echo(req *request) resp.Value {
	return resp.MakeBulkBytes(req.args[0])
}

// quit only acknowledges, the connection loop closes the connection after the reply is flushed
func quit(_ *request) resp.Value {
	return resp.MakeOK()
}

func get(req *request) resp.Value {
	val, ok := req.storage.Get(string(req.args[0]))
	if !ok {
		return resp.MakeNullString()
	}
	return resp.MakeBulkString(val)
}

// set handles SET key value [NX | XX] [EX seconds | PX milliseconds | EXAT unix-seconds | PXAT unix-milliseconds | KEEPTTL]
func set(req *request) resp.Value {
	key := string(req.args[0])
	value := string(req.args[1])

	var (
		opts   storage.SetOptions
		hasTTL bool
	)

	for i := 2; i < len(req.args); i++ {
		opt := strings.ToUpper(string(req.args[i]))

		switch opt {
		case "NX":
			if opts.XX {
				return errSyntax
			}
			opts.NX = true

		case "XX":
			if opts.NX {
				return errSyntax
			}
			opts.XX = true

		case "KEEPTTL":
			if hasTTL {
				return errSyntax
			}
			hasTTL = true
			opts.KeepTTL = true

		case "EX", "PX", "EXAT", "PXAT":
			if hasTTL || i+1 >= len(req.args) {
				return errSyntax
			}
			i++

			ttl, errReply, ok := parseExpire(opt, req.args[i])
			if !ok {
				return errReply
			}
			hasTTL = true
			opts.TTL = ttl

		default:
			return errSyntax
		}
	}

	if !req.storage.Set(key, value, opts) {
		return resp.MakeNullString()
	}
	return resp.MakeOK()
}

// parseExpire converts an expiration argument to a lifetime relative to now
func parseExpire(opt string, arg []byte) (time.Duration, resp.Value, bool) {
	n, err := strconv.ParseInt(string(arg), 10, 64)
	if err != nil {
		return 0, errNotInteger, false
	}
	if n <= 0 {
		return 0, errInvalidExpire, false
	}

	var ttl time.Duration
	switch opt {
	case "EX":
		if n > math.MaxInt64/int64(time.Second) {
			return 0, errInvalidExpire, false
		}
		ttl = time.Duration(n) * time.Second
	case "PX":
		if n > math.MaxInt64/int64(time.Millisecond) {
			return 0, errInvalidExpire, false
		}
		ttl = time.Duration(n) * time.Millisecond
	case "EXAT":
		ttl = time.Until(time.Unix(n, 0))
	case "PXAT":
		ttl = time.Until(time.UnixMilli(n))
	}

	if ttl <= 0 {
		// an absolute time in the past, the key is written and expires at once
		ttl = time.Nanosecond
	}

	return ttl, resp.Value{}, true
}

func del(req *request) resp.Value {
	var deleted int64
	for _, key := range req.args {
		if req.storage.Delete(string(key)) {
			deleted++
		}
	}
	return resp.MakeInteger(deleted)
}

// exists counts a key once per occurrence in the arguments
func exists(req *request) resp.Value {
	var found int64
	for _, key := range req.args {
		if req.storage.Exists(string(key)) {
			found++
		}
	}
	return resp.MakeInteger(found)
}

func ttl(req *request) resp.Value {
	d, status := req.storage.Expiry(string(req.args[0]))
	if status != storage.ExpActive {
		return resp.MakeInteger(int64(status))
	}
	return resp.MakeInteger(int64((d + time.Second/2) / time.Second))
}

func pttl(req *request) resp.Value {
	d, status := req.storage.Expiry(string(req.args[0]))
	if status != storage.ExpActive {
		return resp.MakeInteger(int64(status))
	}
	return resp.MakeInteger(d.Milliseconds())
}
