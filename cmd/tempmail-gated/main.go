package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/haukened/tempmail-gate/internal/gate/common/clock"
	"github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/config"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/feed"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/httpapi"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/notify"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/scheduler"
	"github.com/haukened/tempmail-gate/internal/gate/repos/blocklist"
	"github.com/haukened/tempmail-gate/internal/gate/repos/blocklist/bloom"
	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
	boltstore "github.com/haukened/tempmail-gate/internal/gate/repos/options/bolt"
	"github.com/haukened/tempmail-gate/internal/gate/repos/options/lru"
	redisstore "github.com/haukened/tempmail-gate/internal/gate/repos/options/redis"
	"github.com/haukened/tempmail-gate/internal/gate/repos/sites"
	"github.com/haukened/tempmail-gate/internal/gate/services/site"
)

const (
	version = "0.1.0-dev"
	appName = "tempmail-gated"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds every long-lived component of the service.
type Application struct {
	config    *config.AppConfig
	backend   options.Backend
	sites     *site.Registry
	scheduler *scheduler.Scheduler
	server    *httpapi.Server
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":     version,
		"env":         cfg.Env,
		"log_level":   cfg.LogLevel,
		"port":        cfg.Port,
		"backend":     cfg.Backend,
		"scope":       cfg.Scope,
		"cache_size":  cfg.CacheSize,
		"notify_mode": cfg.NotifyMode,
	}, "Starting "+appName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApplication(ctx, cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, appName+" stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build option store: %w", err)
	}

	app, err := assemble(ctx, cfg, backend, clk, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return app, nil
}

// assemble builds everything that sits on top of the option store.
func assemble(ctx context.Context, cfg *config.AppConfig, backend options.Backend, clk clock.Clock, logger log.Logger) (*Application, error) {
	scope, err := options.ParseScope(cfg.Scope)
	if err != nil {
		return nil, err
	}

	siteList, err := sites.Load(cfg.SitesDir, cfg.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}

	seed, err := blocklist.LoadSeed(cfg.SeedFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed list: %w", err)
	}

	notifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build notifier: %w", err)
	}

	sched, err := scheduler.New(logger)
	if err != nil {
		return nil, err
	}

	registry, err := site.Build(siteList, site.Deps{
		Backend:   backend,
		Scope:     scope,
		Seed:      seed,
		Bloom:     bloom.NewFactory(),
		Feed:      feed.NewClient(nil, cfg.FetchTimeout),
		FeedURL:   cfg.FeedURL,
		Notifier:  notifier,
		Scheduler: sched,
		Clock:     clk,
		Logger:    logger,
	})
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to build sites: %w", err)
	}
	log.Info(map[string]any{"sites": registry.IDs(), "scope": scope.Name()}, "Sites configured")

	server := httpapi.New(httpapi.Config{
		Port:     cfg.Port,
		MaxConns: cfg.MaxConns,
		APIToken: cfg.APIToken,
	}, registry, logger)

	return &Application{
		config:    cfg,
		backend:   backend,
		sites:     registry,
		scheduler: sched,
		server:    server,
	}, nil
}

// buildBackend opens the configured option store and wraps it in the LRU
// cache when enabled.
func buildBackend(ctx context.Context, cfg *config.AppConfig) (options.Backend, error) {
	var backend options.Backend
	switch cfg.Backend {
	case "bolt":
		b, err := boltstore.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if ns, err := b.Namespaces(); err == nil {
			log.Debug(map[string]any{"path": cfg.DBPath, "namespaces": ns}, "bolt store opened")
		}
		backend = b
	case "redis":
		b := redisstore.New(goredis.NewClient(&goredis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		}), "")
		if err := b.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		backend = b
	case "memory":
		log.Warn(nil, "memory backend selected, state is lost on restart")
		backend = options.NewMemory()
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}

	cached, err := lru.New(backend, cfg.CacheSize)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	if cfg.CacheSize > 0 {
		log.Info(map[string]any{"type": "LRU", "size": cfg.CacheSize}, "Option cache configured")
	}
	return cached, nil
}

// buildNotifier selects the admin alert channel.
func buildNotifier(ctx context.Context, cfg *config.AppConfig, logger log.Logger) (notify.Notifier, error) {
	switch cfg.NotifyMode {
	case "ses":
		return notify.NewSES(ctx, notify.SESConfig{
			Region:    cfg.SESRegion,
			AccessKey: cfg.SESAccessKey,
			SecretKey: cfg.SESSecretKey,
			From:      cfg.NotifyFrom,
		}, logger)
	case "log", "":
		return notify.NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unsupported notify mode %q", cfg.NotifyMode)
	}
}

// Run schedules the per-site jobs, serves HTTP, and blocks until ctx is
// cancelled. Shutdown order: HTTP, schedules, scheduler, store.
func (app *Application) Run(ctx context.Context) error {
	if err := app.sites.ScheduleAll(); err != nil {
		return fmt.Errorf("failed to schedule jobs: %w", err)
	}
	app.scheduler.Start()
	log.Info(map[string]any{"jobs": app.scheduler.Names()}, "Scheduler started")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.server.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(nil, "Shutdown initiated")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http api: %w", err)
		}
	}

	return errors.Join(runErr, app.shutdown())
}

func (app *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		log.Warn(map[string]any{"error": err}, "Error during HTTP shutdown")
		errs = append(errs, err)
	}
	if err := app.sites.UnscheduleAll(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error clearing schedules")
		errs = append(errs, err)
	}
	if err := app.scheduler.Shutdown(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error stopping scheduler")
		errs = append(errs, err)
	}
	if c, ok := app.backend.(*lru.Backend); ok {
		st := c.Stats()
		log.Info(map[string]any{
			"size":      st.Size,
			"hits":      st.Hits,
			"misses":    st.Misses,
			"evictions": st.Evictions,
		}, "Option cache stats")
	}
	if err := app.backend.Close(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error closing option store")
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		log.Info(nil, "Graceful shutdown completed")
	}
	return errors.Join(errs...)
}
