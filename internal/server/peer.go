package server

import (
	"net"
	"sync"
	"time"

	"github.com/eternalApril/moonwire/internal/metrics"
	"github.com/eternalApril/moonwire/internal/resp"
)

// Peer represents a connected client.
// It wraps a network connection and provides synchronized methods for reading and writing RESP-encoded data
type Peer struct {
	conn   net.Conn
	reader *resp.Decoder
	writer *resp.Encoder
	mu     sync.Mutex
}

// PeerOptions tune a client connection. The zero value uses the protocol defaults
type PeerOptions struct {
	IdleTimeout time.Duration // read deadline for every socket read, 0 disables it
	ReadSize    int
	Limits      resp.Limits
	Metrics     *metrics.Metrics
}

// NewPeer initializes a new client peer from a network connection
func NewPeer(conn net.Conn, opts PeerOptions) *Peer {
	rd := &connReader{
		conn:        conn,
		idleTimeout: opts.IdleTimeout,
		metrics:     opts.Metrics,
	}

	return &Peer{
		conn:   conn,
		reader: resp.NewDecoderSize(rd, opts.ReadSize, opts.Limits),
		writer: resp.NewEncoder(conn),
	}
}

// Send encodes and writes a RESP value to the client.
// This method is thread-safe and can be called from multiple goroutines
func (p *Peer) Send(v resp.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Write(v)
}

// ReadCommand reads and decodes the next RESP value from the client's input stream,
// blocking until one is complete
func (p *Peer) ReadCommand() (resp.Value, error) {
	return p.reader.Read()
}

// TryReadCommand returns the next value only if it is already buffered
func (p *Peer) TryReadCommand() (resp.Value, bool, error) {
	return p.reader.TryRead()
}

// Close terminates the underlying network connection
func (p *Peer) Close() error {
	return p.conn.Close()
}

// Flush sends all buffered data to the client
func (p *Peer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Flush()
}

// InputBuffered returns the number of bytes that can be read from the current buffer
func (p *Peer) InputBuffered() int {
	return p.reader.Buffered()
}

// RemoteAddr returns the client address
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// connReader refreshes the idle deadline before every socket read and counts what arrives
type connReader struct {
	conn        net.Conn
	idleTimeout time.Duration
	metrics     *metrics.Metrics
}

func (r *connReader) Read(b []byte) (int, error) {
	if r.idleTimeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.idleTimeout)); err != nil {
			return 0, err
		}
	}

	n, err := r.conn.Read(b)
	r.metrics.Read(n)
	return n, err
}
