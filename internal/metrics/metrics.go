package metrics

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"steadydb/internal/stats"
)

const namespace = "steadydb"

// Source is what the collector reads on every scrape. DBStats is optional.
type Source struct {
	Stats         *stats.Stats
	ActiveWorkers func() int64
	DBStats       func() sql.DBStats
}

// Collector exposes run counters in Prometheus format. Values are read from
// the live atomics at scrape time, nothing is copied.
type Collector struct {
	reg *prometheus.Registry
}

func NewCollector(src Source) *Collector {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inserts_success_total",
			Help:      "Inserts that completed successfully.",
		}, func() float64 { return float64(src.Stats.Success()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inserts_failure_total",
			Help:      "Inserts that returned an error.",
		}, func() float64 { return float64(src.Stats.Failure()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquire_failures_total",
			Help:      "Workers that could not obtain a connection.",
		}, func() float64 { return float64(src.Stats.AcquireFailures()) }),
	)

	if src.ActiveWorkers != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Workers currently inserting.",
		}, func() float64 { return float64(src.ActiveWorkers()) }))
	}

	if src.DBStats != nil {
		registerPoolGauges(reg, src.DBStats)
	}

	return &Collector{reg: reg}
}

func registerPoolGauges(reg *prometheus.Registry, read func() sql.DBStats) {
	gauge := func(name, help string, value func(sql.DBStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(read()) })
	}

	reg.MustRegister(
		gauge("open_connections", "Open connections, in use and idle.", func(s sql.DBStats) float64 { return float64(s.OpenConnections) }),
		gauge("in_use_connections", "Connections currently in use.", func(s sql.DBStats) float64 { return float64(s.InUse) }),
		gauge("idle_connections", "Idle connections.", func(s sql.DBStats) float64 { return float64(s.Idle) }),
		gauge("wait_count", "Total connections waited for.", func(s sql.DBStats) float64 { return float64(s.WaitCount) }),
		gauge("wait_seconds", "Total time blocked waiting for a connection.", func(s sql.DBStats) float64 { return s.WaitDuration.Seconds() }),
	)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Server serves /metrics until shut down.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *zap.Logger
}

// Listen binds addr and starts serving in the background.
func Listen(addr string, c *Collector, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("Metrics server listening", zap.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
