// Package telemetry holds the Prometheus metrics recorded by every
// operation and an optional HTTP endpoint that exposes them.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// operationTotal counts operations by name and outcome
	operationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etgraph_operation_total",
		Help: "Total operations by name and result",
	}, []string{"operation", "result"})

	// operationDuration tracks operation latency
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etgraph_operation_duration_seconds",
		Help:    "Operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"operation"})

	// eventsTotal counts applied ETG events by kind
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etgraph_events_total",
		Help: "Total ETG events applied by kind",
	}, []string{"kind"})

	// filesIndexedTotal counts file records written by index and update
	filesIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etgraph_files_indexed_total",
		Help: "Total file records written",
	})
)

// ObserveOperation records one finished operation.
func ObserveOperation(operation string, started time.Time, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	operationTotal.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// RecordEvent counts one applied event.
func RecordEvent(kind string) {
	eventsTotal.WithLabelValues(kind).Inc()
}

// AddFilesIndexed counts n written file records.
func AddFilesIndexed(n int) {
	if n > 0 {
		filesIndexedTotal.Add(float64(n))
	}
}

// --- Exposition ---

// Server exposes /metrics over HTTP.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and starts serving /metrics in the background.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "error", err)
		}
	}()
	slog.Info("Serving metrics", "addr", ln.Addr().String())
	return s, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
