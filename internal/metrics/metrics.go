package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Sampling metrics
	SamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appwatch_samples_total",
			Help: "Foreground samples taken, by outcome",
		},
		[]string{"result"},
	)

	UsageSecondsCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appwatch_usage_seconds_total",
			Help: "Wall-clock seconds credited to apps",
		},
		[]string{"app"},
	)

	// Probe metrics
	ProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appwatch_probe_failures_total",
			Help: "Probe calls that failed or timed out",
		},
		[]string{"probe"},
	)

	// Notification metrics
	NotificationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appwatch_notification_events_total",
			Help: "Deduplicated notification events counted per app",
		},
		[]string{"app"},
	)

	// Limit metrics
	LimitAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appwatch_limit_alerts_total",
			Help: "Time-limit alerts emitted",
		},
		[]string{"app"},
	)

	PersistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appwatch_persistence_failures_total",
			Help: "Storage writes that failed and were swallowed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SamplesTotal,
		UsageSecondsCredited,
		ProbeFailures,
		NotificationEvents,
		LimitAlerts,
		PersistenceFailures,
	)
}

// Server is the metrics HTTP server.
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server.
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start starts the metrics server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
