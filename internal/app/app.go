// Package app wires configuration, the fetch stack, the feed service and
// the outward surfaces (HTTP API, Telegram bot, scheduler) into a running
// application.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"pricefeed/internal/adapter/jupiter"
	"pricefeed/internal/adapter/raydium"
	"pricefeed/internal/adapter/scheduler"
	"pricefeed/internal/adapter/telegram"
	"pricefeed/internal/adapter/telegram/handlers"
	"pricefeed/internal/adapter/telegram/middleware"
	"pricefeed/internal/config"
	"pricefeed/internal/feed"
	"pricefeed/internal/fetch"
	"pricefeed/internal/platform/httpclient"
	"pricefeed/internal/platform/logger"
	"pricefeed/internal/registry"
	"pricefeed/internal/server"
	"pricefeed/internal/store"
)

const shutdownTimeout = 5 * time.Second

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "pricefeed",
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run starts the application and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	a.log.Info("starting", "env", a.cfg.Env)
	defer func() { _ = logger.Close(a.log) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := registry.Load()
	if err != nil {
		return err
	}

	client := httpclient.New(httpclient.WithLogger(a.log))
	defer client.CloseIdleConnections()

	fetcher := fetch.New(
		fetch.WithDoer(client),
		fetch.WithLogger(a.log),
		fetch.WithSettings(fetch.DefaultSettings().
			WithMaxRetries(a.cfg.Fetch.MaxRetries).
			WithRequestTimeout(a.cfg.Fetch.Timeout).
			WithBaseBackoff(a.cfg.Fetch.BaseBackoff)),
	)

	priceClient := jupiter.NewPriceClient(fetcher, a.cfg.Jupiter.PriceURL)
	perpsClient := jupiter.NewPerpsClient(fetcher, a.cfg.Jupiter.PerpsURL)
	rayClient := raydium.NewClient(fetcher, a.cfg.Raydium.URL)

	source := feed.NewPairFallback(priceClient, a.log)
	for _, pair := range reg.Pairs() {
		if pair[0].Symbol == registry.SOL && pair[1].Symbol == registry.JLP {
			source.RegisterPool(pair[0].Address, pair[1].Address, func(ctx context.Context) (float64, error) {
				return rayClient.PoolPrice(ctx, raydium.PoolSOLJLP)
			})
		}
	}

	st, err := store.Open(ctx, a.cfg.DB.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	opts := []feed.Option{feed.WithHistory(st), feed.WithLogger(a.log)}
	if a.cfg.Feed.PerpsWallet != "" {
		opts = append(opts, feed.WithPerps(perpsClient, a.cfg.Feed.PerpsWallet))
	}
	svc := feed.NewService(reg, source, opts...)

	// Warm the feed before serving; a failed first refresh is not fatal.
	if err := svc.RefreshAll(ctx); err != nil {
		a.log.Warn("initial refresh incomplete", "error", err)
	}

	sched := scheduler.New(ctx, a.log)
	if _, err := sched.AddCronJob(a.cfg.Feed.RefreshSchedule, svc.RefreshAll, scheduler.JobOptions{
		Name:          "refresh",
		Timeout:       2 * time.Minute,
		OverlapPolicy: scheduler.SkipIfRunning,
	}); err != nil {
		return err
	}
	sched.Start()

	srv := &http.Server{
		Addr:    a.cfg.HTTP.Addr,
		Handler: server.New(svc, st, a.log).Handler(),
	}
	go func() {
		a.log.Info("http listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("server", slog.Any("err", err))
		}
	}()

	if a.cfg.Telegram.Token != "" {
		if err := a.startBot(ctx, svc, reg); err != nil {
			return err
		}
	}

	<-ctx.Done()
	a.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		a.log.Warn("scheduler stop", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}

// startBot wires the Telegram surface: commands over the feed, behind the
// rate limiter and the allow-list.
func (a *App) startBot(ctx context.Context, svc *feed.Service, reg *registry.Registry) error {
	cmds := handlers.New(svc, reg, a.log)
	rate := middleware.NewRateLimiter(time.Second)
	acl := middleware.NewACL(a.cfg.Telegram.AllowedIDs)
	handler := middleware.Chain(cmds.Handle, rate.Middleware, acl.Middleware)

	var disp *telegram.Dispatcher
	b, err := bot.New(a.cfg.Telegram.Token,
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, upd *models.Update) {
			disp.Dispatch(ctx, upd)
		}),
		bot.WithAllowedUpdates([]string{"message"}),
	)
	if err != nil {
		return err
	}
	disp = telegram.NewDispatcher(b, 8, handler)

	go b.Start(ctx)
	a.log.Info("telegram bot started")
	return nil
}
