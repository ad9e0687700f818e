package server

import (
	"github.com/eternalApril/moonwire/internal/resp"
	"github.com/eternalApril/moonwire/internal/storage"
)

// request is what a handler sees of a command: its arguments and the keyspace
type request struct {
	args    [][]byte
	storage storage.Storage
}

type handler interface {
	execute(req *request) resp.Value
}

type handlerFunc func(req *request) resp.Value

func (f handlerFunc) execute(req *request) resp.Value {
	return f(req)
}
