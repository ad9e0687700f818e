package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eternalApril/moonwire/internal/config"
	"github.com/eternalApril/moonwire/internal/metrics"
	"github.com/eternalApril/moonwire/internal/resp"
)

// Server accepts client connections and runs one connection loop per client
type Server struct {
	cfg     config.ServerConfig
	limits  resp.Limits
	engine  *Engine
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	listener net.Listener
	peers    map[*Peer]struct{}
	wg       sync.WaitGroup
	closing  atomic.Bool
}

// New creates a server. m may be nil
func New(cfg config.ServerConfig, limits resp.Limits, engine *Engine, log *zap.Logger, m *metrics.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		limits:  limits,
		engine:  engine,
		log:     log,
		metrics: m,
		peers:   make(map[*Peer]struct{}),
	}
}

// Listen binds the configured address. Serve calls it when it was not called before
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	address := s.cfg.Address()

	var (
		listener net.Listener
		err      error
	)
	if s.cfg.ReusePort {
		listener, err = reuseport.Listen("tcp", address)
	} else {
		listener, err = net.Listen("tcp", address)
	}
	if err != nil {
		return fmt.Errorf("listen %s: %w", address, err)
	}

	s.listener = listener
	s.log.Info("listening on", zap.String("address", listener.Addr().String()), zap.Bool("reuseport", s.cfg.ReusePort))

	return nil
}

// Addr returns the bound address, nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done or Shutdown is called.
// It returns nil after a shutdown, connections may still be draining
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		s.closing.Store(true)
		listener.Close() //nolint:errcheck
	})
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error("Accept error", zap.Error(err))
			continue
		}

		s.mu.Lock()
		if s.closing.Load() {
			s.mu.Unlock()
			conn.Close() //nolint:errcheck
			return nil
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Shutdown stops accepting, closes every client connection and waits for the
// connection loops to exit or for ctx to be done
func (s *Server) Shutdown(ctx context.Context) error {
	var err error

	s.mu.Lock()
	s.closing.Store(true)
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	for peer := range s.peers {
		if cerr := peer.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("All connections closed gracefully")
	case <-ctx.Done():
		s.log.Warn("Shutdown timed out, forcing exit")
		err = multierr.Append(err, ctx.Err())
	}

	return err
}

// track registers a peer so Shutdown can close it. It fails once shutdown has started
func (s *Server) track(p *Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing.Load() {
		return false
	}
	s.peers[p] = struct{}{}
	return true
}

func (s *Server) untrack(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, p)
}

// handleConnection handles a connection for a single user
func (s *Server) handleConnection(conn net.Conn) {
	peer := NewPeer(conn, PeerOptions{
		IdleTimeout: s.cfg.IdleTimeout,
		ReadSize:    s.cfg.ReadBuffer,
		Limits:      s.limits,
		Metrics:     s.metrics,
	})

	if !s.track(peer) {
		peer.Close() //nolint:errcheck
		return
	}

	log := s.log.With(zap.String("addr", peer.RemoteAddr()))
	s.metrics.ConnOpened()
	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("client connected")
	}

	defer func() {
		s.untrack(peer)
		peer.Close() //nolint:errcheck
		s.metrics.ConnClosed()
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client disconnected")
		}
	}()

	for {
		// replies are flushed only when no further request is already buffered,
		// so a pipeline gets its replies in one write
		v, ok, err := peer.TryReadCommand()
		if err == nil && !ok {
			if err = peer.Flush(); err != nil {
				log.Warn("flush failed", zap.Error(err))
				return
			}
			v, err = peer.ReadCommand()
		}

		if err != nil {
			s.readFailed(peer, log, err)
			return
		}

		reply, quit := s.engine.Dispatch(v)

		if err = peer.Send(reply); err != nil {
			log.Error("error writing response", zap.Error(err))
			return
		}

		if quit {
			if err = peer.Flush(); err != nil {
				log.Warn("flush failed", zap.Error(err))
			}
			return
		}
	}
}

// readFailed reports why a connection loop stopped reading. Malformed input gets
// an error reply after all pending replies, the stream cannot be resynchronized
func (s *Server) readFailed(peer *Peer, log *zap.Logger, err error) {
	var perr *resp.ProtocolError

	switch {
	case errors.As(err, &perr):
		s.metrics.ProtocolError(protocolErrorReason(err))
		log.Warn("protocol error, closing connection", zap.Error(err))

		if serr := peer.Send(resp.MakeErrorf("ERR Protocol error: %s", perr.Reason)); serr != nil {
			log.Warn("error reply failed", zap.Error(serr))
		}
		if ferr := peer.Flush(); ferr != nil {
			log.Debug("flush failed", zap.Error(ferr))
		}

	case errors.Is(err, io.EOF):
		// clean close between requests

	case errors.Is(err, io.ErrUnexpectedEOF):
		log.Debug("client closed mid-request", zap.Int("buffered", peer.InputBuffered()))

	case errors.Is(err, os.ErrDeadlineExceeded):
		log.Debug("idle timeout")

	case s.closing.Load() && errors.Is(err, net.ErrClosed):
		// shutdown

	default:
		log.Warn("read command failed", zap.Error(err))
	}
}

// protocolErrorReason is the metric label for a protocol error
func protocolErrorReason(err error) string {
	switch {
	case errors.Is(err, resp.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, resp.ErrInvalidEnding):
		return "invalid_ending"
	case errors.Is(err, resp.ErrInvalidInteger):
		return "invalid_integer"
	case errors.Is(err, resp.ErrInvalidLength):
		return "invalid_length"
	case errors.Is(err, resp.ErrTooLarge):
		return "too_large"
	case errors.Is(err, resp.ErrTooDeep):
		return "too_deep"
	}
	return "other"
}
