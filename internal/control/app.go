package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/retryguard/internal/core/config"
	"github.com/vietddude/retryguard/internal/failure"
	redisclient "github.com/vietddude/retryguard/internal/infra/redis"
	"github.com/vietddude/retryguard/internal/infra/storage/postgres"
	"github.com/vietddude/retryguard/internal/metrics"
	"github.com/vietddude/retryguard/internal/rules"
	"github.com/vietddude/retryguard/internal/server"
)

// App runs the operations service: snapshot lookup, rule inspection and
// scheduled rule refresh.
type App struct {
	cfg       Config
	redis     *redisclient.Client
	db        *postgres.DB
	failures  *postgres.FailureRepo
	cache     *rules.Cache
	guard     *Guard
	server    *server.Server
	refresher *server.Refresher
	log       *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port     int
	Redis    redisclient.Config
	Database postgres.Config
	Rules    config.RulesConfig
	WorkerID string
}

// RuleLoader picks the rule document source: a local file when configured,
// otherwise the Redis key.
func RuleLoader(cfg config.RulesConfig, client *redisclient.Client) rules.Loader {
	if cfg.File != "" {
		return rules.FileLoader{Path: cfg.File}
	}
	return redisclient.NewRuleStore(client, cfg.Key)
}

// NewApp creates an App with all dependencies initialized.
func NewApp(cfg Config) (*App, error) {
	log := slog.Default()

	// 1. Shared store
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	// 2. Failure backends
	var backends []failure.Named
	var db *postgres.DB
	var failures *postgres.FailureRepo
	if cfg.Database.URL != "" {
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			_ = client.Close()
			_ = db.Close()
			return nil, err
		}
		failures = postgres.NewFailureRepo(db)
		backends = append(backends, failure.Named{Name: "postgres", Backend: failures})
		log.Info("Using PostgreSQL failure backend")
	}

	// 3. Rules
	cache := rules.NewCache(RuleLoader(cfg.Rules, client), cfg.Rules.CheckInterval, rules.WithLogger(log))
	guard := NewGuard(cache, client, failure.NewMultiple(backends...), cfg.WorkerID, log)

	deps := server.Deps{
		Store:  client,
		Health: map[string]server.Pinger{"redis": client},
		Rules:  cache,
		Guard:  guard,
		Logger: log,
	}
	if failures != nil {
		deps.Failures = failures
		deps.Health["postgres"] = server.PingFunc(db.Health)
	}

	app := &App{
		cfg:      cfg,
		redis:    client,
		db:       db,
		failures: failures,
		cache:    cache,
		guard:    guard,
		server:   server.New(deps, cfg.Port),
		log:      log,
	}

	if cfg.Rules.RefreshSchedule != "" {
		app.refresher, err = server.NewRefresher(cfg.Rules.RefreshSchedule, cache, log)
		if err != nil {
			_ = app.close()
			return nil, err
		}
	}
	return app, nil
}

// Guard returns the failure pipeline for in-process workers.
func (a *App) Guard() *Guard {
	return a.guard
}

// Start loads the rules once and starts the server and refresher.
func (a *App) Start(ctx context.Context) error {
	list, err := a.cache.Rules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	metrics.RulesLoaded.Set(float64(len(list)))
	a.log.Info("Rules loaded", "count", len(list), "version", a.cache.Version())

	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	if a.refresher != nil {
		a.refresher.Start()
	}
	return nil
}

// Stop stops the app.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping retryguard...")

	if a.refresher != nil {
		a.refresher.Stop()
	}
	err := a.server.Stop(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func (a *App) close() error {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
	return a.redis.Close()
}
