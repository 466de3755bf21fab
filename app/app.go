// Package app wires the service together once at startup.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"coinquote/api"
	"coinquote/config"
	"coinquote/db"
	"coinquote/exchange"
	"coinquote/metrics"
	"coinquote/orderbook"
	"coinquote/quote"
)

// App holds every long-lived component. Nothing here is global; handlers
// and the feed receive what they need from this value.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Products db.Products
	Books    *orderbook.Registry
	Feed     *exchange.Feed
	Quoter   *quote.Quoter
	Metrics  *prometheus.Registry
	Handler  http.Handler

	cache *db.RedisCache
}

// New loads product metadata and builds the book registry, quoter and HTTP
// handler. The feed is created but not connected; call Start for that.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Books:   orderbook.NewRegistry(),
		Metrics: metrics.Init(logger),
	}

	var repo db.Repo = exchange.NewProductsClient(cfg.Feed.APIURL, cfg.Feed.HTTPTimeout)
	if cfg.Redis.URL != "" {
		cache, err := db.NewRedisCache(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.ProductsTTL, repo, logger)
		if err != nil {
			return nil, err
		}
		a.cache = cache
		repo = cache
	}

	products, err := repo.GetProducts(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load products: %w", err)
	}
	a.Products = products
	logger.Info().Strs("products", products.IDs()).Msg("supported products")

	a.Quoter = quote.NewQuoter(products, a.Books, cfg.Quote.Depth, cfg.Quote.MaxCapacity, logger)
	a.Feed = exchange.NewFeed(a.Books, logger)

	a.Handler, err = api.NewRouter(api.Options{
		Quoter:         a.Quoter,
		Books:          a.Books,
		Feed:           a.Feed,
		Metrics:        metrics.Handler(a.Metrics),
		DefaultDepth:   cfg.Quote.Depth,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Start connects the feed, subscribes to the configured products (all known
// products when none are configured) and launches the receive loop.
func (a *App) Start(ctx context.Context) error {
	ids := a.Config.Feed.Products
	if len(ids) == 0 {
		ids = a.Products.IDs()
	}
	known, unknown := lo.FilterReject(ids, func(id string, _ int) bool {
		_, ok := a.Products[id]
		return ok
	})
	if len(unknown) > 0 {
		a.Logger.Warn().Strs("products", unknown).Msg("skipping products without metadata")
	}
	if len(known) == 0 {
		return fmt.Errorf("no products to subscribe")
	}

	if err := a.Feed.Connect(ctx, a.Config.Feed.URL); err != nil {
		return err
	}
	if err := a.Feed.Subscribe(known); err != nil {
		return err
	}
	return a.Feed.Start(ctx)
}

func (a *App) Close() {
	if a.Feed != nil {
		a.Feed.Stop()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("redis close failed")
		}
	}
}
