package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.ObserveCommand("GET", time.Millisecond)
	m.ObserveCommand("GET", time.Millisecond)
	m.ObserveCommand("SET", time.Millisecond)
	m.ProtocolError("invalid_ending")
	m.Read(10)
	m.Read(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveConnections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConnectionsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("GET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("SET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProtocolErrors.WithLabelValues("invalid_ending")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.BytesRead))
	assert.Equal(t, 2, testutil.CollectAndCount(m.CommandDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ConnOpened()
		m.ConnClosed()
		m.ObserveCommand("PING", time.Second)
		m.ProtocolError("x")
		m.Read(1)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveCommand("PING", time.Millisecond)

	srv := httptest.NewServer(Handler(reg, zaptest.NewLogger(t)))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `moonwire_commands_total{command="PING"} 1`)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
