// Package server provides the public entry point for assembling the
// concierge engine and its ops HTTP surface.
//
// This package lives in pkg/ (not internal/) so that the chat front end can
// embed the engine directly and call RunTurn in-process.
//
// Usage:
//
//	srv, err := server.New(ctx, "concierge.yaml")
//	defer srv.Close(ctx)
//	res := srv.Engine.RunTurn(ctx, req, nil)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentoven/concierge/internal/api"
	"github.com/agentoven/concierge/internal/api/handlers"
	"github.com/agentoven/concierge/internal/bundle"
	"github.com/agentoven/concierge/internal/clients"
	"github.com/agentoven/concierge/internal/config"
	"github.com/agentoven/concierge/internal/executor"
	"github.com/agentoven/concierge/internal/planner"
	"github.com/agentoven/concierge/internal/refinement"
	"github.com/agentoven/concierge/internal/retention"
	modelrouter "github.com/agentoven/concierge/internal/router"
	"github.com/agentoven/concierge/internal/rules"
	"github.com/agentoven/concierge/internal/telemetry"
	"github.com/agentoven/concierge/pkg/models"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized engine and everything it depends on.
type Server struct {
	// Handler serves /health, /version, /metrics and the inspection routes.
	Handler http.Handler

	// Engine runs conversation turns.
	Engine *executor.Engine

	// Store persists refinement context between turns.
	Store refinement.Store

	// Janitor expires stale refinement context. Nil when the backend
	// expires entries itself or the TTL is zero.
	Janitor *retention.Janitor

	// Router is the LLM backend used by the planner.
	Router *modelrouter.ModelRouter

	// Config is the resolved configuration.
	Config *config.Config

	// Port is the port the ops server should listen on.
	Port int

	// ShutdownFunc flushes telemetry.
	ShutdownFunc func(context.Context) error
}

// New loads configuration from the environment (and configPath when set)
// and initializes every component.
func New(ctx context.Context, configPath string) (*Server, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes the engine with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store, err := refinement.Open(ctx, cfg.Store)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open refinement store: %w", err)
	}
	log.Info().Str("backend", store.Kind()).Msg("✅ Refinement store initialized")

	mr, err := modelrouter.NewFromConfig(ctx, cfg.LLM)
	if err != nil {
		store.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("init model router: %w", err)
	}
	log.Info().Strs("providers", mr.ListDrivers()).Msg("✅ Model Router initialized")

	collab, err := clients.New(cfg.Collaborators, clients.NewHTTPClient())
	if err != nil {
		mr.Close()
		store.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("init collaborators: %w", err)
	}
	if collab.Discovery != nil {
		synth := bundle.NewSynthesizer(collab, cfg.Collaborators.AuxTimeout)
		collab.Composite = synth
		collab.Refiner = synth
	}

	var ruleSet models.RulesConfig
	if cfg.Rules.File != "" {
		ruleSet, err = rules.Load(cfg.Rules.File)
		if err != nil {
			mr.Close()
			store.Close()
			_ = shutdown(ctx)
			return nil, err
		}
		log.Info().Str("file", cfg.Rules.File).Int("rules", len(ruleSet.Rules)).Msg("✅ Rules loaded")
	}

	p := planner.New(mr, mr, cfg.LLM.ConfigTTL)
	engine := executor.NewEngine(collab, p, store, executor.Options{
		MaxIterations: cfg.Engine.MaxIterations,
		DefaultLimit:  cfg.Engine.DefaultLimit,
		Rules:         ruleSet,
	})
	log.Info().Msg("✅ Turn engine initialized")

	var janitor *retention.Janitor
	if purger, ok := store.(retention.Purger); ok {
		janitor = retention.NewJanitor(purger, cfg.Store.TTL, cfg.Store.SweepInterval)
	}

	h := handlers.New(cfg.Version, store, mr)

	return &Server{
		Handler:      api.NewRouter(h),
		Engine:       engine,
		Store:        store,
		Janitor:      janitor,
		Router:       mr,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// Close releases the store and LLM drivers and flushes telemetry.
func (s *Server) Close(ctx context.Context) error {
	s.Router.Close()
	s.Store.Close()
	if s.ShutdownFunc != nil {
		return s.ShutdownFunc(ctx)
	}
	return nil
}
