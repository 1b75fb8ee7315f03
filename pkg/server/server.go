// Package server provides the public entry point for initializing the
// agentdesk chat service.
//
// This package exists in pkg/ (not internal/) so that other binaries can
// compose the service behind their own authentication or middleware.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	defer srv.Close(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/agentdesk/internal/api"
	"github.com/agentoven/agentdesk/internal/api/handlers"
	"github.com/agentoven/agentdesk/internal/config"
	"github.com/agentoven/agentdesk/internal/executor"
	"github.com/agentoven/agentdesk/internal/orchestrator"
	"github.com/agentoven/agentdesk/internal/providers"
	"github.com/agentoven/agentdesk/internal/registry"
	"github.com/agentoven/agentdesk/internal/router"
	"github.com/agentoven/agentdesk/internal/store"
	"github.com/agentoven/agentdesk/internal/telemetry"
	"github.com/agentoven/agentdesk/pkg/models"
)

// Server holds the initialized chat service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Orchestrator runs turns without going through HTTP.
	Orchestrator *orchestrator.Orchestrator

	Registry *registry.Registry
	Router   *router.Router
	Store    store.Gateway
	Metrics  *telemetry.Metrics
	Config   *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc telemetry.ShutdownFunc
}

// New initializes the service from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes every component and fails fast on any
// misconfiguration: invalid agent table, missing provider credential,
// unreachable store.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg, err := LoadRegistry(cfg.AgentsFile)
	if err != nil {
		return nil, err
	}
	log.Info().Int("agents", len(reg.List())).Str("default", reg.Default().ID).Msg("✅ Agent registry loaded")

	adapters, err := BuildAdapters(cfg.Providers, reg.Providers())
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	gw, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	rt := router.New(reg)
	exec := executor.New(reg, adapters, executor.Options{
		TurnTimeout: cfg.Turn.Timeout,
		Metrics:     metrics,
	})
	orch := orchestrator.New(rt, exec, gw, orchestrator.Options{
		HistoryLimit: cfg.Turn.HistoryLimit,
		Metrics:      metrics,
	})

	h := handlers.New(orch, gw, reg)
	handler := api.NewRouter(h, api.RouterConfig{
		Version: cfg.Version,
		Metrics: metrics.Handler(),
	})

	return &Server{
		Handler:      handler,
		Orchestrator: orch,
		Registry:     reg,
		Router:       rt,
		Store:        gw,
		Metrics:      metrics,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// Close flushes telemetry and closes the store.
func (s *Server) Close(ctx context.Context) error {
	return errors.Join(s.ShutdownFunc(ctx), s.Store.Close())
}

// LoadRegistry returns the agents table at path, or the built-in table when
// path is empty.
func LoadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.New(registry.Builtin())
	}
	return registry.LoadFile(path)
}

// BuildAdapters creates one adapter for every provider the registry binds.
// In live mode a missing credential is a startup error.
func BuildAdapters(cfg config.ProvidersConfig, needed []models.Provider) (*providers.Set, error) {
	var adapters []providers.Adapter
	for _, p := range needed {
		if cfg.Mode == config.ProviderModeMock {
			adapters = append(adapters, providers.NewMock(p))
			continue
		}

		var (
			a   providers.Adapter
			err error
		)
		switch p {
		case models.ProviderOpenAI:
			a, err = providers.NewOpenAI(providers.Config{
				APIKey:  cfg.OpenAIAPIKey,
				BaseURL: cfg.OpenAIBaseURL,
				Timeout: cfg.RequestTimeout,
			})
		case models.ProviderAnthropic:
			a, err = providers.NewAnthropic(providers.Config{
				APIKey:  cfg.AnthropicAPIKey,
				BaseURL: cfg.AnthropicBaseURL,
				Timeout: cfg.RequestTimeout,
			})
		default:
			err = fmt.Errorf("no adapter for provider %q", p)
		}
		if err != nil {
			return nil, fmt.Errorf("provider adapters: %w", err)
		}
		adapters = append(adapters, a)
	}

	log.Info().Str("mode", cfg.Mode).Int("adapters", len(adapters)).Msg("✅ Provider adapters initialized")
	return providers.NewSet(adapters...), nil
}

// OpenStore opens the configured backend, wrapped in the history cache when
// a cache size is set.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Gateway, error) {
	var (
		gw  store.Gateway
		err error
	)
	switch cfg.Backend {
	case config.StoreMemory:
		gw = store.NewMemoryStore()
		log.Info().Msg("✅ In-memory store initialized")
	case config.StoreSQLite:
		gw, err = store.NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.StorePostgres:
		gw, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		err = fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.HistoryCacheSize > 0 {
		cached, err := store.NewCachedGateway(gw, cfg.HistoryCacheSize)
		if err != nil {
			gw.Close()
			return nil, err
		}
		return cached, nil
	}
	return gw, nil
}
