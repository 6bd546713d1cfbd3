package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/haytac/emoji-cdn/internal/cdn"
	"github.com/haytac/emoji-cdn/internal/config"
	"github.com/haytac/emoji-cdn/internal/emoji"
	"github.com/haytac/emoji-cdn/internal/metrics"
	"github.com/haytac/emoji-cdn/pkg/interfaces"
)

const (
	immutableCacheControl = "public, max-age=604800, immutable"
	noStoreCacheControl   = "no-store"

	randomPath  = "random"
	faviconPath = "favicon.ico"
)

// Options configures a Server.
type Options struct {
	// Table returns the emoji table. It is called on every lookup and is
	// expected to be memoized, see emoji.Loader.Lazy.
	Table        func() (*emoji.Table, error)
	URLs         *cdn.URLBuilder
	DefaultStyle cdn.Style
	Delivery     string
	// Fetcher is required when Delivery is config.DeliveryProxy.
	Fetcher        interfaces.ImageFetcher
	RateLimit      config.RateLimitConfig
	// TrustedProxies lists the peers whose X-Real-IP / X-Forwarded-For
	// headers are believed. Requests from anyone else are keyed on their
	// socket address.
	TrustedProxies []netip.Prefix
}

// Server answers emoji image requests.
type Server struct {
	opts    Options
	router  chi.Router
	limiter *clientLimiters
}

// New builds the router. The returned server holds no per-request state.
func New(opts Options) *Server {
	if opts.URLs == nil {
		opts.URLs = cdn.NewURLBuilder("")
	}
	if opts.DefaultStyle == "" {
		opts.DefaultStyle = cdn.DefaultStyle
	}
	if opts.Delivery == "" {
		opts.Delivery = config.DeliveryRedirect
	}

	s := &Server{opts: opts}
	if opts.RateLimit.RequestsPerSecond > 0 {
		s.limiter = newClientLimiters(opts.RateLimit.RequestsPerSecond, opts.RateLimit.Burst)
	}

	r := chi.NewRouter()
	if len(opts.TrustedProxies) > 0 {
		r.Use(trustedRealIP(opts.TrustedProxies))
	}
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.EscapedPath()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request served")
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/healthz/", s.handleHealth)
	r.Get("/*", s.handleEmoji)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on addr until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Str("delivery", s.opts.Delivery).Msg("Starting emoji server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down emoji server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.opts.Table(); err != nil {
		http.Error(w, "dataset unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleEmoji(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.EscapedPath(), "/")

	switch path {
	case "":
		s.writeUsage(w, r)
		return
	case faviconPath:
		w.WriteHeader(http.StatusOK)
		return
	}

	style := s.opts.DefaultStyle
	if values, ok := r.URL.Query()["style"]; ok {
		parsed, err := cdn.ParseStyle(values[0])
		if err != nil {
			metrics.Lookups.WithLabelValues("invalid_style").Inc()
			http.Error(w, "Invalid style. Valid styles are: "+cdn.StyleList(), http.StatusBadRequest)
			return
		}
		style = parsed
	}

	table, err := s.opts.Table()
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Emoji dataset unavailable")
		http.Error(w, "Dataset unavailable", http.StatusInternalServerError)
		return
	}

	if path == randomPath {
		rec := table.Random()
		s.deliver(w, r, style, rec, noStoreCacheControl)
		return
	}

	text, err := url.PathUnescape(path)
	if err != nil {
		metrics.Lookups.WithLabelValues("malformed").Inc()
		http.Error(w, "Malformed path", http.StatusBadRequest)
		return
	}

	rec, kind, err := table.Resolve(text)
	if err != nil {
		metrics.Lookups.WithLabelValues("miss").Inc()
		http.Error(w, "Emoji not found", http.StatusNotFound)
		return
	}
	switch kind {
	case emoji.MatchAlias:
		metrics.Lookups.WithLabelValues("alias_hit").Inc()
	case emoji.MatchCodepoints:
		metrics.Lookups.WithLabelValues("codepoints_hit").Inc()
	default:
		metrics.Lookups.WithLabelValues("hit").Inc()
	}

	s.deliver(w, r, style, rec, immutableCacheControl)
}

func (s *Server) deliver(w http.ResponseWriter, r *http.Request, style cdn.Style, rec emoji.Record, cacheControl string) {
	target := s.opts.URLs.URL(style, rec.Image)
	metrics.Deliveries.WithLabelValues(style.String(), s.opts.Delivery).Inc()

	hlog.FromRequest(r).Debug().
		Str("unified", rec.Unified).
		Str("style", style.String()).
		Str("target", target).
		Msg("Emoji resolved")

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", cacheControl)

	if s.opts.Delivery != config.DeliveryProxy || s.opts.Fetcher == nil {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	s.proxy(w, r, target)
}

func (s *Server) proxy(w http.ResponseWriter, r *http.Request, target string) {
	resp, err := s.opts.Fetcher.Fetch(r.Context(), target)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("target", target).Msg("CDN fetch failed")
		w.Header().Del("Cache-Control")
		if errors.Is(err, cdn.ErrUpstreamUnavailable) {
			http.Error(w, "Upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "Upstream error", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for _, h := range []string{"Content-Type", "Content-Length", "ETag", "Last-Modified"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	if resp.StatusCode != http.StatusOK {
		w.Header().Del("Cache-Control")
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("Client went away during proxied copy")
	}
}

func (s *Server) writeUsage(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	base := scheme + "://" + r.Host + "/"

	var b strings.Builder
	fmt.Fprintf(&b, "This is a CDN for emojis. Add any emoji to the end of the URL, like:\n\n  %s\U0001F44D\n\n", base)
	fmt.Fprintf(&b, "Names work too, lowercased with spaces replaced by hyphens:\n\n  %sgrinning-face\n\n", base)
	fmt.Fprintf(&b, "Use the `style` query parameter to pick an emoji platform:\n\n  %s\U0001F973?style=google\n\n", base)
	fmt.Fprintf(&b, "If no `style` is provided, the API defaults to `%s`.\n\nSupported styles:\n\n", s.opts.DefaultStyle)
	for _, st := range cdn.Styles {
		fmt.Fprintf(&b, "  - `%s`\n", st)
	}
	fmt.Fprintf(&b, "\nFor a surprise, try %srandom\n", base)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, b.String())
}
