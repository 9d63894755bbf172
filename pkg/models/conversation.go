package models

import "time"

// ── Refinement (persisted per thread) ───────────────────────

// RefinementContext is the only durable per-thread entity. A nil slice or map
// means the field is unset (null).
type RefinementContext struct {
	ThreadID           string            `json:"thread_id"`
	ProposedPlan       []string          `json:"proposed_plan"`
	SearchQueries      []string          `json:"search_queries"`
	FulfillmentContext map[string]string `json:"fulfillment_context"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HasPurge reports whether a purged category list is stored.
func (r *RefinementContext) HasPurge() bool {
	return r != nil && r.SearchQueries != nil
}

// Fulfillment returns a fulfillment value or "".
func (r *RefinementContext) Fulfillment(key string) string {
	if r == nil || r.FulfillmentContext == nil {
		return ""
	}
	return r.FulfillmentContext[key]
}

// Patch is a tri-state field update: unset (zero Patch), cleared
// (Set with a nil value) or set.
type Patch[T any] struct {
	Present bool
	Value   T
}

// Set returns a present patch carrying v. Set[[]string](nil) clears.
func Set[T any](v T) Patch[T] { return Patch[T]{Present: true, Value: v} }

// RefinementUpdate is a merge request for one thread. Fields that are not
// Present are left untouched by every store implementation.
type RefinementUpdate struct {
	ProposedPlan       Patch[[]string]
	SearchQueries      Patch[[]string]
	FulfillmentContext Patch[map[string]string]
}

// IsNoop reports whether the update touches nothing.
func (u RefinementUpdate) IsNoop() bool {
	return !u.ProposedPlan.Present && !u.SearchQueries.Present && !u.FulfillmentContext.Present
}

// Apply merges the update into ctx and returns the result. ctx may be nil.
func (u RefinementUpdate) Apply(threadID string, ctx *RefinementContext, now time.Time) *RefinementContext {
	out := &RefinementContext{ThreadID: threadID}
	if ctx != nil {
		out.ProposedPlan = cloneStrings(ctx.ProposedPlan)
		out.SearchQueries = cloneStrings(ctx.SearchQueries)
		out.FulfillmentContext = cloneMap(ctx.FulfillmentContext)
	}
	if u.ProposedPlan.Present {
		out.ProposedPlan = cloneStrings(u.ProposedPlan.Value)
	}
	if u.SearchQueries.Present {
		out.SearchQueries = cloneStrings(u.SearchQueries.Value)
	}
	if u.FulfillmentContext.Present {
		out.FulfillmentContext = cloneMap(u.FulfillmentContext.Value)
	}
	out.UpdatedAt = now
	return out
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ── Conversation (in-memory, one per turn) ──────────────────

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationState is the mutable state of one turn. Iteration strictly
// increases and the loop stops when it reaches the iteration cap.
type ConversationState struct {
	Iteration           int
	Messages            []ChatMessage
	LastSuggestion      string
	ProbeCount          int
	LastToolResult      ToolResult
	AgentReasoning      []string
	BundleID            string
	OrderID             string
	PurgedSearchQueries []string
	PurgedProposedPlan  []string
	RotateTier          bool
	LastShownBundle     string
	OrchestratorState   map[string]interface{}

	Intent     *Intent
	Products   *DiscoveryResult
	Composite  *CompositeResult
	Refinement *RefinementContext
	Refined    *RefineCategoryResult
	LastError  string
}

// Reason appends a line to the reasoning trail.
func (s *ConversationState) Reason(line string) {
	s.AgentReasoning = append(s.AgentReasoning, line)
}

// HasResults reports whether discovery produced anything this turn.
func (s *ConversationState) HasResults() bool {
	if s.Products != nil && len(s.Products.Products) > 0 {
		return true
	}
	return s.Composite != nil && (len(s.Composite.Categories) > 0 || len(s.Composite.BundleOptions) > 0)
}

// ── Thinking events ──────────────────────────────────────────

type ThinkingCheckpoint string

const (
	CheckpointTurnStarted             ThinkingCheckpoint = "turn_started"
	CheckpointIntentResolved          ThinkingCheckpoint = "intent_resolved"
	CheckpointBeforeWeather           ThinkingCheckpoint = "before_weather"
	CheckpointAfterWeather            ThinkingCheckpoint = "after_weather"
	CheckpointWeatherPivot            ThinkingCheckpoint = "weather_pivot"
	CheckpointBeforeDiscoverProducts  ThinkingCheckpoint = "before_discover_products"
	CheckpointBeforeDiscoverComposite ThinkingCheckpoint = "before_discover_composite"
	CheckpointBeforeCategoryFetch     ThinkingCheckpoint = "before_category_fetch"
	CheckpointAfterDiscover           ThinkingCheckpoint = "after_discover"
	CheckpointBeforeBundle            ThinkingCheckpoint = "before_bundle"
	CheckpointBeforeResponse          ThinkingCheckpoint = "before_response"
)

// ThinkingFunc receives progress messages. It is called synchronously and
// must return promptly.
type ThinkingFunc func(message string, ctx map[string]string)

// CheckpointFunc is the engine-internal hook: components report a named
// checkpoint and the engine renders it into a ThinkingFunc message.
type CheckpointFunc func(cp ThinkingCheckpoint, vars map[string]string)

// Emit calls f when it is non-nil.
func (f CheckpointFunc) Emit(cp ThinkingCheckpoint, vars map[string]string) {
	if f != nil {
		f(cp, vars)
	}
}

// ── Turn surface ─────────────────────────────────────────────

type TurnRequest struct {
	UserMessage string        `json:"user_message"`
	UserID      string        `json:"user_id,omitempty"`
	Limit       int           `json:"limit,omitempty"`
	ThreadID    string        `json:"thread_id,omitempty"`
	BundleID    string        `json:"bundle_id,omitempty"`
	OrderID     string        `json:"order_id,omitempty"`
	Messages    []ChatMessage `json:"messages,omitempty"`
}

// ProductsData is the discovery slice of a turn result.
type ProductsData struct {
	Products      []Product          `json:"products,omitempty"`
	Categories    []CategoryProducts `json:"categories,omitempty"`
	BundleOptions []BundleOption     `json:"bundle_options,omitempty"`
	Engagement    *Engagement        `json:"engagement,omitempty"`
	Alternatives  []Product          `json:"alternatives,omitempty"`
}

type TurnResult struct {
	TurnID                 string                   `json:"turn_id"`
	Intent                 *Intent                  `json:"intent,omitempty"`
	ProductsData           ProductsData             `json:"products_data"`
	AdaptiveCard           map[string]interface{}   `json:"adaptive_card,omitempty"`
	MachineReadable        map[string]interface{}   `json:"machine_readable,omitempty"`
	AgentReasoning         []string                 `json:"agent_reasoning"`
	PlannerCompleteMessage *string                  `json:"planner_complete_message,omitempty"`
	RefinementContext      *RefinementContext       `json:"refinement_context,omitempty"`
	Upsell                 RuleDecision             `json:"upsell"`
	ToolOutputs            []map[string]interface{} `json:"tool_outputs,omitempty"`
	Iterations             int                      `json:"iterations"`
	Error                  string                   `json:"error,omitempty"`
}
