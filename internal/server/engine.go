package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eternalApril/moonwire/internal/command"
	"github.com/eternalApril/moonwire/internal/config"
	"github.com/eternalApril/moonwire/internal/metrics"
	"github.com/eternalApril/moonwire/internal/resp"
	"github.com/eternalApril/moonwire/internal/storage"
)

// Engine coordinates the execution of commands against the storage
type Engine struct {
	handlers map[command.Kind]handler // Registry of available commands
	storage  storage.Storage          // Interface to the underlying KV storage
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewEngine initializes the engine and registers the basic commands. m may be nil
func NewEngine(s storage.Storage, logger *zap.Logger, m *metrics.Metrics) *Engine {
	engine := &Engine{
		handlers: make(map[command.Kind]handler),
		storage:  s,
		logger:   logger,
		metrics:  m,
	}
	engine.registerBasicCommands()

	return engine
}

// register adds a handler for a command kind
func (e *Engine) register(kind command.Kind, h handler) {
	e.handlers[kind] = h
}

// registerBasicCommands fills the registry with standard commands
func (e *Engine) registerBasicCommands() {
	e.register(command.Ping, handlerFunc(ping))
	e.register(command.Echo, handlerFunc(echo))
	e.register(command.Quit, handlerFunc(quit))
	e.register(command.Get, handlerFunc(get))
	e.register(command.Set, handlerFunc(set))
	e.register(command.Del, handlerFunc(del))
	e.register(command.Exists, handlerFunc(exists))
	e.register(command.TTL, handlerFunc(ttl))
	e.register(command.PTTL, handlerFunc(pttl))
	e.register(command.Commands, handlerFunc(commandInfo))
}

// Dispatch maps a decoded request to a command and executes it.
// Requests that cannot be mapped are answered with an error reply.
// quit reports that the client asked to close the connection
func (e *Engine) Dispatch(v resp.Value) (reply resp.Value, quit bool) {
	cmd, err := command.Parse(v)
	if err != nil {
		if e.logger.Core().Enabled(zap.DebugLevel) {
			e.logger.Debug("rejected request", zap.Error(err))
		}
		return resp.MakeError(err.Error()), false
	}

	return e.Execute(cmd), cmd.Kind == command.Quit
}

// Execute runs a validated command and returns its reply
func (e *Engine) Execute(cmd command.Command) resp.Value {
	if e.logger.Core().Enabled(zap.DebugLevel) {
		// Log the command name and number of args
		e.logger.Debug("executing command",
			zap.String("cmd", cmd.Name),
			zap.Int("args_count", len(cmd.Args)),
		)
	}

	h, ok := e.handlers[cmd.Kind]
	if !ok {
		return resp.MakeErrorf("ERR unknown command '%s'", cmd.Name)
	}

	start := time.Now()
	res := h.execute(&request{
		args:    cmd.Args,
		storage: e.storage,
	})
	e.metrics.ObserveCommand(cmd.Name, time.Since(start))

	return res
}

// RunGC triggers the active expiration mechanism every cfg.Interval until ctx is done
func (e *Engine) RunGC(ctx context.Context, cfg config.GCConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.expireCycle(cfg)
		case <-ctx.Done():
			e.logger.Info("GC stopped")
			return
		}
	}
}

// expireCycle samples again right away while the expired share stays above the threshold
func (e *Engine) expireCycle(cfg config.GCConfig) int {
	rounds := 0
	for rounds < cfg.MaxRounds {
		rounds++
		ratio := e.storage.DeleteExpired(cfg.SamplesPerCheck)

		if ratio > 0 && e.logger.Core().Enabled(zap.DebugLevel) {
			e.logger.Debug("GC delete expired", zap.Float64("expired_ratio", ratio))
		}

		if ratio <= cfg.MatchThreshold {
			break
		}
	}
	return rounds
}
