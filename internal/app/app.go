package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/haytac/emoji-cdn/internal/cdn"
	"github.com/haytac/emoji-cdn/internal/config"
	"github.com/haytac/emoji-cdn/internal/emoji"
	"github.com/haytac/emoji-cdn/internal/logging"
	"github.com/haytac/emoji-cdn/internal/metrics"
	"github.com/haytac/emoji-cdn/internal/proxy"
	"github.com/haytac/emoji-cdn/internal/server"
)

// Application holds all dependencies for the service.
type Application struct {
	Config  *config.AppConfig
	Table   func() (*emoji.Table, error)
	URLs    *cdn.URLBuilder
	Server  *server.Server
	Metrics *metrics.Server
}

// NewApplication wires the service from cfg. The dataset is not read until the
// first call to Table; Run forces that load before accepting traffic.
func NewApplication(cfg *config.AppConfig) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clientFactory := proxy.NewHTTPClientFactory(cfg.UpstreamProxy, cfg.UpstreamTimeout())
	httpClient, err := clientFactory.GetClient()
	if err != nil {
		return nil, fmt.Errorf("building upstream HTTP client: %w", err)
	}

	loader := &emoji.Loader{HTTPClient: httpClient, Logger: logging.NewLeveled("dataset")}
	table := loader.Lazy(cfg.Dataset)

	defaultStyle, err := cdn.ParseStyle(cfg.DefaultStyle)
	if err != nil {
		return nil, err
	}
	urls := cdn.NewURLBuilder(cfg.CDNBaseURL)
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}

	opts := server.Options{
		Table:          table,
		URLs:           urls,
		DefaultStyle:   defaultStyle,
		Delivery:       cfg.Delivery,
		RateLimit:      cfg.RateLimit,
		TrustedProxies: trusted,
	}
	if cfg.Delivery == config.DeliveryProxy {
		opts.Fetcher = cdn.NewFetcher(httpClient)
	}

	return &Application{
		Config:  cfg,
		Table:   table,
		URLs:    urls,
		Server:  server.New(opts),
		Metrics: metrics.NewServer(cfg.MetricsPort),
	}, nil
}

// Run loads the dataset, then serves until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	log.Info().Msg("Starting application...")

	table, err := app.Table()
	if err != nil {
		return fmt.Errorf("loading emoji dataset: %w", err)
	}
	metrics.DatasetRecords.Set(float64(table.Len()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Server.Run(gctx, app.Config.ListenAddr) })
	g.Go(func() error { return app.Metrics.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Application stopped with error")
		return err
	}
	log.Info().Msg("Application shut down gracefully.")
	return nil
}
