// Package dispatcher executes validated tool calls against the injected
// collaborators.
//
// Each models.ToolName has exactly one handler in the table below. Handlers
// return (result, error); Execute turns every error, including a missing
// collaborator, into a *models.ToolError so the loop only ever sees a
// ToolResult.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentoven/concierge/internal/telemetry"
	"github.com/agentoven/concierge/pkg/contracts"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNotConfigured is reported when a tool's collaborator was not injected.
var ErrNotConfigured = errors.New("not configured")

const (
	defaultLimit         = 10
	defaultSearchResults = 5
	defaultOccasionLimit = 5
	defaultApprovalHours = 24
	defaultPlatform      = "chat"
	defaultWaitEventName = "user_approval"
)

// Env is the per-turn context a handler may need beyond the tool arguments.
type Env struct {
	ThreadID       string
	BundleID       string
	OrderID        string
	Limit          int
	LastSuggestion string
	Messages       []models.ChatMessage
	// BundleOptions are the intent's templates for discover_composite.
	BundleOptions []models.BundleOptionSpec
	Think         models.CheckpointFunc
}

type handler func(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error)

var handlers = map[models.ToolName]handler{
	models.ToolResolveIntent:        resolveIntent,
	models.ToolDiscoverProducts:     discoverProducts,
	models.ToolDiscoverComposite:    discoverComposite,
	models.ToolRefineBundleCategory: refineBundleCategory,
	models.ToolStartOrchestration:   startOrchestration,
	models.ToolCreateStandingIntent: createStandingIntent,
	models.ToolTrackOrder:           trackOrder,
	models.ToolWebSearch:            webSearch,
	models.ToolGetWeather:           getWeather,
	models.ToolGetUpcomingOccasions: getUpcomingOccasions,
	models.ToolFetchUCPManifest:     fetchManifest,
	models.ToolComplete:             complete,
}

// Handles reports whether name has a handler.
func Handles(name models.ToolName) bool {
	_, ok := handlers[name]
	return ok
}

// Execute runs one tool call. It never returns nil and never panics.
func Execute(ctx context.Context, c contracts.Collaborators, call models.ToolCall, env Env) (result models.ToolResult) {
	ctx, span := telemetry.Tracer().Start(ctx, "tool."+string(call.Name))
	span.SetAttributes(attribute.String("concierge.tool", string(call.Name)))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = &models.ToolError{Name: call.Name, Message: fmt.Sprintf("panic: %v", r)}
		}
		status := "ok"
		if te, ok := result.(*models.ToolError); ok {
			status = "error"
			span.SetStatus(codes.Error, te.Message)
		}
		telemetry.RecordToolCall(string(call.Name), status)
		log.Debug().
			Str("tool", string(call.Name)).
			Str("status", status).
			Dur("duration", time.Since(start)).
			Msg("tool dispatched")
		span.End()
	}()

	h, ok := handlers[call.Name]
	if !ok {
		return &models.ToolError{Name: call.Name, Message: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	res, err := h(ctx, c, call.Args, env)
	if err != nil {
		return &models.ToolError{Name: call.Name, Message: err.Error()}
	}
	return res
}

func notConfigured(name string) error {
	return fmt.Errorf("%s collaborator %w", name, ErrNotConfigured)
}

func limitOr(args models.ToolArgs, key string, fallback int) int {
	if n, ok := args.Int(key); ok && n > 0 {
		return n
	}
	if fallback > 0 {
		return fallback
	}
	return defaultLimit
}

func stringOr(args models.ToolArgs, key, fallback string) string {
	if s := args.String(key); s != "" {
		return s
	}
	return fallback
}

// ── Handlers ─────────────────────────────────────────────────

func resolveIntent(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Intent == nil {
		return nil, notConfigured("intent")
	}
	probes, _ := args.Int("probe_count")
	intent, err := c.Intent.ResolveIntent(ctx, models.IntentRequest{
		Text:               args.String("text"),
		LastSuggestion:     stringOr(args, "last_suggestion", env.LastSuggestion),
		RecentConversation: env.Messages,
		ProbeCount:         probes,
		ThreadContext:      args.String("thread_context"),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve intent: %w", err)
	}
	if intent == nil {
		return nil, errors.New("resolve intent: empty response")
	}
	return &models.IntentResult{Intent: intent}, nil
}

func discoverProducts(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Discovery == nil {
		return nil, notConfigured("discovery")
	}
	budget, _ := args.Float("budget_max")
	q := models.DiscoveryQuery{
		Query:            args.String("query"),
		Limit:            limitOr(args, "limit", env.Limit),
		Location:         args.String("location"),
		PartnerID:        args.String("partner_id"),
		ExcludePartnerID: args.String("exclude_partner_id"),
		BudgetMax:        budget,
		ExperienceTag:    args.String("experience_tag"),
		ExperienceTags:   args.Strings("experience_tags"),
	}
	res, err := c.Discovery.DiscoverProducts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("discover products: %w", err)
	}
	if res == nil {
		res = &models.DiscoveryResult{}
	}
	return &models.ProductsResult{Query: q.Query, Result: res}, nil
}

func discoverComposite(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Composite == nil {
		return nil, notConfigured("composite discovery")
	}
	budget, _ := args.Float("budget_max")
	res, err := c.Composite.DiscoverComposite(ctx, models.CompositeRequest{
		ExperienceName: args.String("experience_name"),
		SearchQueries:  args.Strings("search_queries"),
		BundleOptions:  env.BundleOptions,
		Location:       args.String("location"),
		Time:           args.String("time"),
		Date:           args.String("date"),
		BudgetMax:      budget,
		Limit:          limitOr(args, "limit", env.Limit),
	}, env.Think)
	if err != nil {
		return nil, fmt.Errorf("discover composite: %w", err)
	}
	return res, nil
}

func refineBundleCategory(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Refiner == nil {
		return nil, notConfigured("bundle refiner")
	}
	budget, _ := args.Float("budget_max")
	res, err := c.Refiner.RefineBundleCategory(ctx, models.RefineRequest{
		BundleID:  stringOr(args, "bundle_id", env.BundleID),
		Category:  args.String("category"),
		Query:     args.String("query"),
		BudgetMax: budget,
		Limit:     limitOr(args, "limit", env.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("refine bundle category: %w", err)
	}
	return res, nil
}

func startOrchestration(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Orchestrator == nil {
		return nil, notConfigured("orchestration")
	}
	h, err := c.Orchestrator.StartOrchestration(ctx, args.String("message"), stringOr(args, "wait_event_name", defaultWaitEventName))
	if err != nil {
		return nil, fmt.Errorf("start orchestration: %w", err)
	}
	if h == nil || h.InstanceID == "" {
		return nil, errors.New("start orchestration: no instance id returned")
	}
	return &models.OrchestrationResult{Handle: h}, nil
}

func createStandingIntent(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.StandingIntent == nil {
		return nil, notConfigured("standing intent")
	}
	hours, ok := args.Int("approval_timeout_hours")
	if !ok {
		hours = defaultApprovalHours
	}
	si, err := c.StandingIntent.CreateStandingIntent(ctx, models.StandingIntentRequest{
		Description:          args.String("description"),
		ApprovalTimeoutHours: hours,
		Platform:             stringOr(args, "platform", defaultPlatform),
		ThreadID:             stringOr(args, "thread_id", env.ThreadID),
	})
	if err != nil {
		return nil, fmt.Errorf("create standing intent: %w", err)
	}
	if si == nil {
		return nil, errors.New("create standing intent: empty response")
	}
	return &models.StandingIntentResult{StandingIntent: si}, nil
}

func trackOrder(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Orders == nil {
		return nil, notConfigured("orders")
	}
	id := stringOr(args, "order_id", env.OrderID)
	order, err := c.Orders.TrackOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("track order %s: %w", id, err)
	}
	if order == nil {
		return nil, fmt.Errorf("track order %s: not found", id)
	}
	if order.OrderID == "" {
		order.OrderID = id
	}
	return &models.OrderResult{Order: order}, nil
}

func webSearch(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Search == nil {
		return nil, notConfigured("web search")
	}
	query := args.String("query")
	hits, err := c.Search.WebSearch(ctx, query, limitOr(args, "max_results", defaultSearchResults))
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	return &models.WebSearchResult{Query: query, Results: hits}, nil
}

func getWeather(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Weather == nil {
		return nil, notConfigured("weather")
	}
	loc := args.String("location")
	w, err := c.Weather.GetWeather(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("get weather: %w", err)
	}
	if w == nil {
		return nil, errors.New("get weather: empty response")
	}
	return &models.WeatherResult{Location: loc, Weather: w}, nil
}

func getUpcomingOccasions(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Occasions == nil {
		return nil, notConfigured("occasions")
	}
	loc := args.String("location")
	events, err := c.Occasions.GetUpcomingOccasions(ctx, loc, limitOr(args, "limit", defaultOccasionLimit))
	if err != nil {
		return nil, fmt.Errorf("get upcoming occasions: %w", err)
	}
	return &models.OccasionsResult{Location: loc, Events: events}, nil
}

func fetchManifest(ctx context.Context, c contracts.Collaborators, args models.ToolArgs, env Env) (models.ToolResult, error) {
	if c.Manifests == nil {
		return nil, notConfigured("manifest")
	}
	u := args.String("url")
	m, err := c.Manifests.FetchManifest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	return &models.ManifestResult{URL: u, Manifest: m}, nil
}

// complete is terminal and calls nothing.
func complete(_ context.Context, _ contracts.Collaborators, args models.ToolArgs, _ Env) (models.ToolResult, error) {
	return &models.CompleteResult{Summary: stringOr(args, "summary", args.String("message"))}, nil
}
