// Package testutil provides in-memory fakes for every collaborator contract.
// Fakes record their calls and are safe for concurrent use.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/agentoven/concierge/pkg/models"
)

// Product builds a catalog product for tests.
func Product(id, name, partner string, price float64, tags ...string) models.Product {
	return models.Product{
		ID:        id,
		Name:      name,
		Price:     price,
		Currency:  "USD",
		PartnerID: partner,
		Tags:      tags,
	}
}

// ── Intent ───────────────────────────────────────────────────

// FakeIntent answers with Fn, or with Intent when Fn is nil.
type FakeIntent struct {
	mu     sync.Mutex
	Fn     func(req models.IntentRequest) (*models.Intent, error)
	Intent *models.Intent
	Calls  []models.IntentRequest
}

func (f *FakeIntent) ResolveIntent(_ context.Context, req models.IntentRequest) (*models.Intent, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	f.mu.Unlock()
	if f.Fn != nil {
		return f.Fn(req)
	}
	if f.Intent == nil {
		return nil, errors.New("no intent configured")
	}
	return f.Intent.Clone(), nil
}

// ── Discovery ────────────────────────────────────────────────

// FakeDiscovery serves products keyed by lower-cased query. It honours
// ExcludePartnerID, BudgetMax and Limit.
type FakeDiscovery struct {
	mu      sync.Mutex
	ByQuery map[string][]models.Product
	Err     error
	Calls   []models.DiscoveryQuery
}

func (f *FakeDiscovery) DiscoverProducts(ctx context.Context, q models.DiscoveryQuery) (*models.DiscoveryResult, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, q)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	var out []models.Product
	for _, p := range f.ByQuery[strings.ToLower(q.Query)] {
		if q.ExcludePartnerID != "" && p.PartnerID == q.ExcludePartnerID {
			continue
		}
		if q.BudgetMax > 0 && p.Price > q.BudgetMax {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return &models.DiscoveryResult{Products: out}, nil
}

// Queries returns a copy of the recorded queries.
func (f *FakeDiscovery) Queries() []models.DiscoveryQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DiscoveryQuery(nil), f.Calls...)
}

// ── Signals ──────────────────────────────────────────────────

type FakeWeather struct {
	mu      sync.Mutex
	Weather *models.Weather
	Err     error
	Calls   []string
}

func (f *FakeWeather) GetWeather(_ context.Context, location string) (*models.Weather, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, location)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Weather == nil {
		return &models.Weather{Description: "clear sky", Temp: 20}, nil
	}
	w := *f.Weather
	return &w, nil
}

type FakeOccasions struct {
	mu     sync.Mutex
	Events []models.Occasion
	Err    error
	Calls  []string
}

func (f *FakeOccasions) GetUpcomingOccasions(_ context.Context, location string, limit int) ([]models.Occasion, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, location)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if limit > 0 && len(f.Events) > limit {
		return append([]models.Occasion(nil), f.Events[:limit]...), nil
	}
	return append([]models.Occasion(nil), f.Events...), nil
}

type FakeSearch struct {
	Hits []models.SearchHit
	Err  error
}

func (f *FakeSearch) WebSearch(_ context.Context, _ string, maxResults int) ([]models.SearchHit, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if maxResults > 0 && len(f.Hits) > maxResults {
		return f.Hits[:maxResults], nil
	}
	return f.Hits, nil
}

// FakeGeocoder maps raw locations to canonical names; unknown inputs are
// returned unchanged.
type FakeGeocoder struct {
	Mapping map[string]string
	Err     error
}

func (f *FakeGeocoder) NormalizeLocation(_ context.Context, raw string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if v, ok := f.Mapping[raw]; ok {
		return v, nil
	}
	return raw, nil
}

type FakeManifests struct {
	Manifest map[string]interface{}
	Err      error
}

func (f *FakeManifests) FetchManifest(_ context.Context, _ string) (map[string]interface{}, error) {
	return f.Manifest, f.Err
}

// ── Workflows & orders ───────────────────────────────────────

type FakeOrchestrator struct {
	Handle *models.OrchestrationHandle
	Err    error
}

func (f *FakeOrchestrator) StartOrchestration(_ context.Context, _, _ string) (*models.OrchestrationHandle, error) {
	return f.Handle, f.Err
}

type FakeStandingIntents struct {
	mu     sync.Mutex
	Result *models.StandingIntent
	Err    error
	Calls  []models.StandingIntentRequest
}

func (f *FakeStandingIntents) CreateStandingIntent(_ context.Context, req models.StandingIntentRequest) (*models.StandingIntent, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	f.mu.Unlock()
	return f.Result, f.Err
}

type FakeOrders struct {
	Orders map[string]*models.OrderStatus
	Err    error
}

func (f *FakeOrders) TrackOrder(_ context.Context, orderID string) (*models.OrderStatus, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Orders[orderID], nil
}

// ── LLM ──────────────────────────────────────────────────────

// FakeChat returns Responses in order, then repeats the last one.
type FakeChat struct {
	mu        sync.Mutex
	Responses []*models.Completion
	Err       error
	Calls     int
	LastMsgs  []models.ChatMessage
	LastTools []models.ToolSchema
}

func (f *FakeChat) ChatComplete(_ context.Context, messages []models.ChatMessage, tools []models.ToolSchema) (*models.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastMsgs = messages
	f.LastTools = tools
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Responses) == 0 {
		return &models.Completion{Text: ""}, nil
	}
	idx := f.Calls - 1
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	return f.Responses[idx], nil
}

// StaticLLMConfig is an LLMConfigSource with a fixed answer.
type StaticLLMConfig struct {
	mu     sync.Mutex
	Config models.LLMConfig
	Err    error
	Calls  int
}

func (s *StaticLLMConfig) LLMConfig(_ context.Context) (models.LLMConfig, error) {
	s.mu.Lock()
	s.Calls++
	s.mu.Unlock()
	return s.Config, s.Err
}
