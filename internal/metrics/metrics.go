package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// Lookups counts emoji lookups by outcome.
	Lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emojicdn_lookups_total",
			Help: "Total number of emoji lookups.",
		},
		[]string{"result"}, // hit, codepoints_hit, alias_hit, miss, invalid_style, malformed
	)

	// Deliveries counts images handed out, by style and delivery mode.
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emojicdn_deliveries_total",
			Help: "Total number of emoji images redirected to or proxied.",
		},
		[]string{"style", "mode"}, // mode: redirect, proxy
	)

	// UpstreamFetches counts proxied CDN fetches by upstream status.
	UpstreamFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emojicdn_upstream_fetches_total",
			Help: "Total number of CDN fetches made in proxy mode.",
		},
		[]string{"status"}, // HTTP status code, error, canceled, breaker_open
	)

	// RateLimited counts requests rejected by the per-client limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emojicdn_rate_limited_total",
			Help: "Total number of requests rejected by rate limiting.",
		},
	)

	// DatasetRecords reports the size of the flattened dataset.
	DatasetRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emojicdn_dataset_records",
			Help: "Number of records in the flattened emoji dataset.",
		},
	)
)

// Server exposes the Prometheus endpoint on its own listener.
type Server struct {
	srv *http.Server
}

// NewServer returns nil when addr is empty.
func NewServer(addr string) *Server {
	if addr == "" {
		log.Info().Msg("Metrics server address not configured, Prometheus endpoint will not be available.")
		return nil
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	log.Info().Str("address", s.srv.Addr).Msg("Starting Prometheus metrics server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Prometheus metrics server failed")
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
