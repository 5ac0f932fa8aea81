package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"metalpulse/internal/aggregator"
	"metalpulse/internal/alerting"
	"metalpulse/internal/api"
	"metalpulse/internal/breaker"
	"metalpulse/internal/config"
	"metalpulse/internal/metals"
	"metalpulse/internal/provider"
	"metalpulse/internal/provider/chainlink"
	"metalpulse/internal/provider/goldapi"
	"metalpulse/internal/provider/metalprice"
	"metalpulse/internal/provider/stooq"
	"metalpulse/internal/scheduler"
	"metalpulse/internal/storage"
	"metalpulse/internal/worker"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newAdapters builds the enabled provider adapters in priority order:
// stooq, goldapi, metalprice, chainlink.
func (a *App) newAdapters() []provider.Adapter {
	cfg := a.Config
	var adapters []provider.Adapter

	if cfg.Providers.Stooq.Enabled {
		adapters = append(adapters, stooq.New(stooq.Options{
			BaseURL:   cfg.Providers.Stooq.BaseURL,
			UserAgent: cfg.Providers.Stooq.UserAgent,
			Timeout:   cfg.Providers.Stooq.RequestTimeout,
			CacheTTL:  cfg.Quotes.CacheTTL,
		}, a.Logger))
	}

	if cfg.Providers.GoldAPI.Enabled {
		adapters = append(adapters, goldapi.New(goldapi.Options{
			BaseURL:  cfg.Providers.GoldAPI.BaseURL,
			APIKey:   cfg.Providers.GoldAPI.APIKey,
			Timeout:  cfg.Providers.GoldAPI.RequestTimeout,
			CacheTTL: cfg.Quotes.CacheTTL,
		}, a.Logger))
	}

	if cfg.Providers.MetalPrice.Enabled {
		adapters = append(adapters, metalprice.New(metalprice.Options{
			BaseURL:  cfg.Providers.MetalPrice.BaseURL,
			APIKey:   cfg.Providers.MetalPrice.APIKey,
			Timeout:  cfg.Providers.MetalPrice.RequestTimeout,
			CacheTTL: cfg.Quotes.CacheTTL,
		}, a.Logger))
	}

	if cfg.Providers.Chainlink.Enabled {
		adapters = append(adapters, chainlink.New(chainlink.Options{
			RPCURL:        cfg.Providers.Chainlink.RPCURL,
			FeedAddresses: cfg.Providers.Chainlink.Feeds,
			Timeout:       cfg.Providers.Chainlink.RequestTimeout,
		}, a.Logger))
	}

	return adapters
}

// newAggregator assembles the fallback engine from config.
func (a *App) newAggregator() (*aggregator.Aggregator, error) {
	adapters := a.newAdapters()
	if len(adapters) == 0 {
		return nil, errors.New("no price providers enabled")
	}

	ranges := make(map[string]metals.Range, len(a.Config.Quotes.Ranges))
	for sym, r := range a.Config.Quotes.Ranges {
		ranges[sym] = metals.Range{
			Min: decimal.NewFromFloat(r.Min),
			Max: decimal.NewFromFloat(r.Max),
		}
	}

	b := breaker.New(a.Config.Quotes.BreakerCooldown, a.Config.Providers.Cooldowns, a.Logger)

	return aggregator.New(adapters, b, aggregator.Options{
		Ranges:           ranges,
		MaxChangePercent: decimal.NewFromFloat(a.Config.Quotes.MaxChangePct),
	}, a.Logger), nil
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Resend
	return alerting.NewResendNotifier(cfg.APIKey, cfg.FromEmail, cfg.FromName, cfg.APIBase, cfg.RequestTimeout, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running service: HTTP API plus alert worker.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; alert persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	agg, err := a.newAggregator()
	if err != nil {
		return err
	}

	var alertStore storage.AlertStore
	if store != nil {
		alertStore = store
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.Config.API.Enabled {
		server := api.New(agg, alertStore, a.Logger)
		g.Go(func() error {
			return server.Run(gctx, a.Config.API.ListenAddr)
		})
	}

	notifier := a.newNotifier()
	switch {
	case notifier == nil:
		a.Logger.Warn().Msg("alerting disabled; worker not started")
	case store == nil:
		a.Logger.Warn().Msg("alerting enabled but no database; worker not started")
	default:
		w := worker.New(agg, alertStore, notifier, a.Logger)
		sched := scheduler.New(scheduler.Options{
			Interval:       a.Config.Scheduler.Interval,
			AlignToStart:   a.Config.Scheduler.AlignToStart,
			RunImmediately: a.Config.Scheduler.RunImmediately,
			StartupDelay:   a.Config.Scheduler.StartupDelay,
		}, a.Logger)
		g.Go(func() error {
			return sched.Run(gctx, w.Tick)
		})
	}

	a.Logger.Info().Msg("starting metalpulse service")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("metalpulse service stopped")
	return nil
}
