// Package metrics exposes the server's Prometheus collectors
package metrics

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "moonwire"

// Metrics groups the collectors updated by the server. A nil *Metrics is valid and records nothing
type Metrics struct {
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	CommandsTotal     *prometheus.CounterVec   // labels: command
	CommandDuration   *prometheus.HistogramVec // labels: command
	ProtocolErrors    *prometheus.CounterVec   // labels: reason
	BytesRead         prometheus.Counter
}

// New registers every collector on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Gauge for current connections
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of active client connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections",
		}),
		// Counter for total commands processed
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of commands processed",
		}, []string{"command"}),
		// Histogram for command duration
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		ProtocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Connections closed because of malformed input",
		}, []string{"reason"}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Bytes read from client connections",
		}),
	}
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ActiveConnections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

// ObserveCommand records one executed command and how long it took
func (m *Metrics) ObserveCommand(name string, took time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(name).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(took.Seconds())
}

func (m *Metrics) ProtocolError(reason string) {
	if m == nil {
		return
	}
	m.ProtocolErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) Read(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesRead.Add(float64(n))
}

// Handler serves /metrics from g and a /health probe, logging requests with log
func Handler(g prometheus.Gatherer, log *zap.Logger) http.Handler {
	gin.DisableConsoleColor()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
	}))

	// Logs all panic to error log
	r.Use(ginzap.RecoveryWithZap(log, true))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r
}

// NewServer returns an HTTP server for Handler listening on addr
func NewServer(addr string, g prometheus.Gatherer, log *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           Handler(g, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
