// Package server provides the agent's composition root: it builds every
// long-lived dependency from config and runs the view API until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/studysync/internal/api"
	"github.com/JakeFAU/studysync/internal/beacon"
	"github.com/JakeFAU/studysync/internal/catalog"
	"github.com/JakeFAU/studysync/internal/client"
	"github.com/JakeFAU/studysync/internal/clock"
	"github.com/JakeFAU/studysync/internal/clock/system"
	"github.com/JakeFAU/studysync/internal/config"
	"github.com/JakeFAU/studysync/internal/id/uuid"
	"github.com/JakeFAU/studysync/internal/metrics"
	"github.com/JakeFAU/studysync/internal/notify"
	"github.com/JakeFAU/studysync/internal/policy/backoff"
	"github.com/JakeFAU/studysync/internal/policy/ratelimit"
	"github.com/JakeFAU/studysync/internal/progress"
	progresssinks "github.com/JakeFAU/studysync/internal/progress/sinks"
	localstorage "github.com/JakeFAU/studysync/internal/storage/local"
)

// App contains the agent's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	notices   *notify.Recorder
	beacon    *beacon.Dispatcher
	syncer    *progress.Syncer
	apiServer *api.Server
	watcher   *catalog.Watcher
}

// Options override collaborators Build would otherwise construct. Tests use
// them to inject a fake clock or HTTP client.
type Options struct {
	Clock      clock.Clock
	HTTPClient *http.Client
}

// Build creates the agent's dependencies. It performs no network I/O; call
// Bootstrap to resolve the session user and hydrate.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}

	type sanitizedConfig struct {
		Addr    string `json:"addr"`
		BaseURL string `json:"base_url"`
		Catalog string `json:"catalog,omitempty"`
	}
	logger.Info("building application dependencies", zap.Any("config", sanitizedConfig{
		Addr:    cfg.Server.Addr(),
		BaseURL: cfg.API.BaseURL,
		Catalog: cfg.Catalog.Path,
	}))

	if err := clearLegacyState(ctx, app); err != nil {
		return nil, err
	}

	cat, err := setupCatalog(app)
	if err != nil {
		return nil, err
	}

	app.metrics, err = metrics.New()
	if err != nil {
		return nil, fmt.Errorf("metrics init failed: %w", err)
	}

	storeClient, err := client.New(client.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		SessionCookie: cfg.API.SessionCookie,
		SessionToken:  cfg.API.SessionToken,
		UserAgent:     cfg.API.UserAgent,
		HTTPClient:    opts.HTTPClient,
		Limiter: ratelimit.New(ratelimit.Config{
			RPS:     cfg.API.MaxRPS,
			Burst:   cfg.API.Burst,
			Observe: app.metrics.ObserveRateLimitDelay,
		}),
		IDs:    uuid.New(),
		Logger: logger.Named("client"),
	})
	if err != nil {
		return nil, fmt.Errorf("store client init failed: %w", err)
	}

	observer, err := setupObservers(app)
	if err != nil {
		return nil, err
	}

	app.notices = notify.NewRecorder(cfg.Notifications.History)
	app.beacon = beacon.New(cfg.Sync.BeaconTimeout, logger.Named("beacon"))

	clk := opts.Clock
	if clk == nil {
		clk = system.New()
	}
	app.syncer, err = progress.New(progress.Config{
		Store:        storeClient,
		Identity:     storeClient,
		Catalog:      cat,
		Debounce:     cfg.Sync.Debounce,
		FlushTimeout: cfg.Sync.FlushTimeout,
		ProgressTTL:  cfg.Sync.ProgressTTL,
		StatsTTL:     cfg.Sync.StatsTTL,
		Clock:        clk,
		Notifier:     notify.Multi{app.notices, notify.NewLogNotifier(logger.Named("notify"))},
		Observer:     observer,
		Beacon:       app.beacon,
		Retry: backoff.New(backoff.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("progress core init failed: %w", err)
	}

	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		app.watcher = catalog.NewWatcher(cfg.Catalog.Path, app.syncer.SetCatalog, logger.Named("catalog"))
	}

	app.apiServer = api.NewServer(api.Options{
		Core:           app.syncer,
		Notices:        app.notices,
		Metrics:        app.metrics.Handler(),
		Instrument:     app.metrics.Middleware,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	})
	return app, nil
}

func clearLegacyState(ctx context.Context, app *App) error {
	dir, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.State.Dir})
	if err != nil {
		return fmt.Errorf("state dir init failed: %w", err)
	}
	removed, err := dir.ClearLegacy(ctx)
	if err != nil {
		return fmt.Errorf("legacy state cleanup failed: %w", err)
	}
	if len(removed) > 0 {
		app.logger.Info("removed legacy progress state",
			zap.String("dir", dir.Dir()),
			zap.Strings("keys", removed),
		)
	}
	return nil
}

func setupCatalog(app *App) (*catalog.Catalog, error) {
	if app.cfg.Catalog.Path == "" {
		app.logger.Warn("no catalog configured, declared goal counts default to zero")
		return catalog.Empty(), nil
	}
	cat, err := catalog.Load(app.cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog load failed: %w", err)
	}
	app.logger.Info("catalog loaded",
		zap.String("path", app.cfg.Catalog.Path),
		zap.Int("identifiers", len(cat.Identifiers())),
	)
	return cat, nil
}

func setupObservers(app *App) (progress.Observer, error) {
	prom, err := progresssinks.NewPrometheusObserver(app.metrics.Registerer())
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	return progress.Observers{
		prom,
		progresssinks.NewLogObserver(app.logger.Named("progress_log")),
	}, nil
}

// Syncer exposes the session core.
func (a *App) Syncer() *progress.Syncer {
	return a.syncer
}

// Handler returns the view API router.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Bootstrap resolves the session user and hydrates the tree. Failures are
// surfaced as notices by the core; the returned error lets callers decide
// whether to keep serving.
func (a *App) Bootstrap(ctx context.Context) error {
	user, err := a.syncer.Identify(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	a.logger.Info("session user resolved", zap.String("user_id", string(user.ID)))
	if _, err := a.syncer.Hydrate(ctx, false); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}

// Run serves the view API on ln until ctx is canceled or SIGINT/SIGTERM
// arrives, then shuts the server down and closes the core.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Bootstrap(ctx); err != nil {
		a.logger.Warn("initial hydrate failed, serving without progress", zap.Error(err))
	}

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.watcher != nil {
		g.Go(func() error {
			if err := a.watcher.Run(gctx); err != nil {
				a.logger.Warn("catalog watcher stopped", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
		return a.Close(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

// Close force-flushes pending progress and waits for beacon delivery.
func (a *App) Close(ctx context.Context) error {
	if err := a.syncer.Close(ctx); err != nil {
		a.logger.Warn("progress core close failed", zap.Error(err))
		return fmt.Errorf("close: %w", err)
	}
	sent, failed := a.beacon.Stats()
	a.logger.Info("shutdown complete", zap.Int64("beacons_sent", sent), zap.Int64("beacons_failed", failed))
	return nil
}
