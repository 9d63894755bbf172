// Package contracts defines the collaborator interfaces the concierge engine
// consumes.
//
// Every external capability (intent classification, catalog search, weather,
// orchestration, orders) sits behind one small interface so the engine can
// run against HTTP services in production and fakes in tests. A nil
// collaborator means "not configured"; the dispatcher reports it as a tool
// error instead of panicking.
package contracts

import (
	"context"

	"github.com/agentoven/concierge/pkg/models"
)

// ── Intent & discovery ───────────────────────────────────────

// IntentResolver classifies a user message.
type IntentResolver interface {
	ResolveIntent(ctx context.Context, req models.IntentRequest) (*models.Intent, error)
}

// Discoverer searches the product catalog.
type Discoverer interface {
	DiscoverProducts(ctx context.Context, q models.DiscoveryQuery) (*models.DiscoveryResult, error)
}

// CompositeDiscoverer assembles priced multi-category bundles.
// Implementation: internal/bundle.Synthesizer
type CompositeDiscoverer interface {
	DiscoverComposite(ctx context.Context, req models.CompositeRequest, think models.CheckpointFunc) (*models.CompositeResult, error)
}

// CategoryRefiner finds alternatives for one leg of a shown bundle.
// Implementation: internal/bundle.Synthesizer
type CategoryRefiner interface {
	RefineBundleCategory(ctx context.Context, req models.RefineRequest) (*models.RefineCategoryResult, error)
}

// ── Auxiliary signals ────────────────────────────────────────

type WeatherProvider interface {
	GetWeather(ctx context.Context, location string) (*models.Weather, error)
}

type OccasionsProvider interface {
	GetUpcomingOccasions(ctx context.Context, location string, limit int) ([]models.Occasion, error)
}

type WebSearcher interface {
	WebSearch(ctx context.Context, query string, maxResults int) ([]models.SearchHit, error)
}

// LocationNormalizer canonicalises a free-text location (e.g. via geocoding).
type LocationNormalizer interface {
	NormalizeLocation(ctx context.Context, raw string) (string, error)
}

// ManifestFetcher retrieves a partner commerce manifest.
type ManifestFetcher interface {
	FetchManifest(ctx context.Context, url string) (map[string]interface{}, error)
}

// ── Workflows & orders ───────────────────────────────────────

// Orchestrator starts durable orchestrations that wait on external events.
type Orchestrator interface {
	StartOrchestration(ctx context.Context, message, waitEventName string) (*models.OrchestrationHandle, error)
}

type StandingIntentService interface {
	CreateStandingIntent(ctx context.Context, req models.StandingIntentRequest) (*models.StandingIntent, error)
}

type OrderTracker interface {
	TrackOrder(ctx context.Context, orderID string) (*models.OrderStatus, error)
}

// ── LLM backend ──────────────────────────────────────────────

// ChatCompleter is the raw chat-completion capability. It returns either a
// structured tool call or plain text.
// Implementation: internal/router.ModelRouter
type ChatCompleter interface {
	ChatComplete(ctx context.Context, messages []models.ChatMessage, tools []models.ToolSchema) (*models.Completion, error)
}

// LLMConfigSource reports whether and how the LLM backend is configured.
type LLMConfigSource interface {
	LLMConfig(ctx context.Context) (models.LLMConfig, error)
}

// ── Refinement persistence ───────────────────────────────────

// RefinementStore persists per-thread refinement context. Save merges: fields
// of the update that are not Present keep their stored value.
// Implementations: internal/refinement.{MemoryStore,PostgresStore,RedisStore}
type RefinementStore interface {
	Load(ctx context.Context, threadID string) (*models.RefinementContext, error)
	Save(ctx context.Context, threadID string, update models.RefinementUpdate) (*models.RefinementContext, error)
}

// ── Wiring ───────────────────────────────────────────────────

// Collaborators bundles every capability the engine may call. Any field may
// be nil.
type Collaborators struct {
	Intent         IntentResolver
	Discovery      Discoverer
	Composite      CompositeDiscoverer
	Refiner        CategoryRefiner
	Weather        WeatherProvider
	Occasions      OccasionsProvider
	Search         WebSearcher
	Geocoder       LocationNormalizer
	Manifests      ManifestFetcher
	Orchestrator   Orchestrator
	StandingIntent StandingIntentService
	Orders         OrderTracker
}
