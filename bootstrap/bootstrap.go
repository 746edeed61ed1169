// Package bootstrap wires configuration, adapters and the dispatch core
// into a runnable application.
package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/datagate/adapters/auth"
	"github.com/artpar/datagate/adapters/clock"
	httpadapter "github.com/artpar/datagate/adapters/http"
	"github.com/artpar/datagate/adapters/idgen"
	"github.com/artpar/datagate/adapters/memory"
	"github.com/artpar/datagate/adapters/metrics"
	"github.com/artpar/datagate/adapters/sqlite"
	"github.com/artpar/datagate/app"
	"github.com/artpar/datagate/config"
	"github.com/artpar/datagate/core/handler"
	"github.com/artpar/datagate/domain/identity"
	"github.com/artpar/datagate/domain/policy"
	"github.com/artpar/datagate/domain/schema"
	"github.com/artpar/datagate/ports"
)

// App holds the wired application components.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Tree       *schema.Tree
	Identities *identity.Registry
	Handlers   *handler.Registry
	Dispatcher *app.Dispatcher
	Policies   *config.PolicyHolder
	Tokens     *auth.TokenService
	Metrics    *metrics.Collector
	AuditStore ports.AuditStore

	httpServer *http.Server
	recorder   *LocalAuditRecorder
	db         *sqlite.DB
}

// New loads the schema artifact and policy, then wires the full stack.
// An inconsistent artifact refuses startup.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	tree, identities, err := config.LoadArtifact(cfg.Schema.Artifact)
	if err != nil {
		return nil, fmt.Errorf("load schema artifact: %w", err)
	}
	logger.Info().
		Str("artifact", cfg.Schema.Artifact).
		Int("identities", identities.Len()).
		Msg("schema loaded")

	holder, err := config.NewPolicyHolder(cfg.Policy.File, logger)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	store, db, err := buildAuditStore(cfg.Audit)
	if err != nil {
		holder.Stop()
		return nil, err
	}
	recorder := NewLocalAuditRecorder(store, cfg.Audit.BatchSize, cfg.Audit.FlushInterval)

	handlers := handler.NewRegistry()

	dispatcher := app.NewDispatcher(app.DispatcherDeps{
		Tree:       tree,
		Identities: identities,
		Handlers:   handlers,
		Clock:      clock.Real{},
		IDGen:      idgen.UUID{},
		Audit:      recorder,
		Metrics:    collector,
		Logger:     logger,
	}, app.DispatcherConfig{
		CallbackTimeout:     cfg.Dispatch.CallbackTimeout,
		RejectUnconstrained: cfg.Dispatch.RejectUnconstrained,
	}, holder.Get())

	holder.OnChange(func(p *policy.Policy) {
		dispatcher.UpdatePolicy(p)
		if collector != nil {
			collector.PolicyReloads.Inc()
			collector.PolicyLastReload.SetToCurrentTime()
		}
	})
	holder.OnError(func(error) {
		if collector != nil {
			collector.PolicyReloadErrors.Inc()
		}
	})

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn().Msg("auth.jwt_secret not set, using random per-process secret")
	}
	tokens := auth.NewTokenService(secret, cfg.Auth.TokenTTL)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Tree:       tree,
		Identities: identities,
		Handlers:   handlers,
		Dispatcher: dispatcher,
		Policies:   holder,
		Tokens:     tokens,
		Metrics:    collector,
		AuditStore: store,
		recorder:   recorder,
		db:         db,
	}

	h := httpadapter.NewHandler(httpadapter.HandlerDeps{
		Dispatcher: dispatcher,
		Tokens:     tokens,
		Policies:   holder,
		Audit:      store,
		Clock:      clock.Real{},
		IDGen:      idgen.UUID{},
		Logger:     logger,
	}, cfg.Admin.TokenHash, cfg.Metrics.Enabled)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      h.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Policy.Watch {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("policy file watch unavailable")
		}
	}
	holder.WatchSignals()

	return a, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.httpServer.Addr).Msg("server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the server and flushes pending audit entries.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http shutdown")
	}

	a.Policies.Stop()

	if err := a.recorder.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("audit flush")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("close audit db")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func buildAuditStore(cfg config.AuditConfig) (ports.AuditStore, *sqlite.DB, error) {
	switch cfg.Mode {
	case "", "memory":
		return memory.NewAuditStore(0), nil, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate audit db: %w", err)
		}
		return sqlite.NewAuditStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit mode %q", cfg.Mode)
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
