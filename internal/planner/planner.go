// Package planner decides the next step of a turn.
//
// The primary path asks the LLM backend to pick one of the fixed tools. When
// no backend is configured, or the call fails, the planner falls back to a
// deterministic state machine keyed on the loop iteration. Planner errors are
// never returned to the caller.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agentoven/concierge/internal/refinement"
	"github.com/agentoven/concierge/internal/telemetry"
	"github.com/agentoven/concierge/pkg/contracts"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// GenericCompleteMessage closes a turn that produced nothing to present.
const GenericCompleteMessage = "Processed your request."

// GiftProbe is asked when the user wants a gift but gave no details.
const GiftProbe = "I'd love to help you find the right gift. A few quick questions:\n" +
	"1. Who is it for?\n" +
	"2. What's the occasion?\n" +
	"3. Roughly what budget do you have in mind?"

const recentMessages = 6

// State is the planner's view of one turn.
type State struct {
	Iteration          int                       `json:"iteration"`
	UserMessage        string                    `json:"user_message"`
	ProbeCount         int                       `json:"probe_count"`
	LastSuggestion     string                    `json:"last_suggestion,omitempty"`
	RecentConversation []models.ChatMessage      `json:"-"`
	ThreadContext      string                    `json:"thread_context,omitempty"`
	UCPPrioritized     bool                      `json:"ucp_prioritized"`
	Intent             *models.Intent            `json:"intent,omitempty"`
	Refinement         *models.RefinementContext `json:"-"`
	BundleID           string                    `json:"bundle_id,omitempty"`
	OrderID            string                    `json:"order_id,omitempty"`
	HasResults         bool                      `json:"has_results"`
	LastToolResult     models.ToolResult         `json:"-"`
	Reasoning          []string                  `json:"reasoning,omitempty"`
}

// Planner picks the next tool call or completes the turn.
type Planner struct {
	llm   contracts.ChatCompleter
	cache *ConfigCache
	now   func() time.Time
}

// New creates a planner. llm and source may be nil, in which case every
// decision comes from the fallback path.
func New(llm contracts.ChatCompleter, source contracts.LLMConfigSource, configTTL time.Duration) *Planner {
	return &Planner{
		llm:   llm,
		cache: NewConfigCache(source, configTTL),
		now:   time.Now,
	}
}

// Decide returns the next decision for s.
func (p *Planner) Decide(ctx context.Context, s State) models.PlannerDecision {
	ctx, span := telemetry.Tracer().Start(ctx, "planner.Decide")
	defer span.End()
	span.SetAttributes(attribute.Int("concierge.iteration", s.Iteration))

	d, ok := p.primary(ctx, s)
	if !ok {
		d = Fallback(s)
	}
	span.SetAttributes(
		attribute.String("concierge.planner.path", string(d.Path)),
		attribute.String("concierge.planner.action", string(d.Action)),
	)
	telemetry.RecordPlannerDecision(string(d.Path), string(d.Action))
	return d
}

// primary asks the LLM backend. ok is false when the fallback must be used.
func (p *Planner) primary(ctx context.Context, s State) (models.PlannerDecision, bool) {
	if p.llm == nil {
		return models.PlannerDecision{}, false
	}
	if cfg := p.cache.Refresh(ctx, p.now()); !cfg.Enabled {
		return models.PlannerDecision{}, false
	}

	resp, err := p.llm.ChatComplete(ctx, BuildPrompt(s), models.ToolSchemas)
	if err != nil {
		log.Warn().Err(err).Int("iteration", s.Iteration).Msg("LLM planning failed, using fallback")
		return models.PlannerDecision{}, false
	}

	if tc := resp.ToolCall; tc != nil {
		if tc.Name == models.ToolComplete {
			return models.PlannerDecision{
				Action:    models.ActionComplete,
				ToolName:  models.ToolComplete,
				ToolArgs:  tc.Args,
				Message:   tc.Args.String("message"),
				Reasoning: fmt.Sprintf("LLM (%s) completed the turn", resp.Provider),
				Path:      models.PathLLM,
			}, true
		}
		return models.PlannerDecision{
			Action:    models.ActionTool,
			ToolName:  tc.Name,
			ToolArgs:  tc.Args,
			Reasoning: fmt.Sprintf("LLM (%s) chose %s", resp.Provider, tc.Name),
			Path:      models.PathLLM,
		}, true
	}
	return models.PlannerDecision{
		Action:    models.ActionComplete,
		Message:   strings.TrimSpace(resp.Text),
		Reasoning: fmt.Sprintf("LLM (%s) answered directly", resp.Provider),
		Path:      models.PathLLM,
	}, true
}

// ── Fallback ─────────────────────────────────────────────────

// Fallback is the deterministic planner. Identical states yield identical
// decisions.
func Fallback(s State) models.PlannerDecision {
	if s.Iteration == 0 {
		args := models.ToolArgs{
			"text":        s.UserMessage,
			"probe_count": s.ProbeCount,
		}
		if s.LastSuggestion != "" {
			args["last_suggestion"] = s.LastSuggestion
		}
		if s.ThreadContext != "" {
			args["thread_context"] = s.ThreadContext
		}
		return tool(models.ToolResolveIntent, args, "Resolve the user's intent first")
	}

	intent := s.Intent
	if s.Iteration == 1 && intent != nil {
		if d, ok := firstStep(s, intent); ok {
			return d
		}
	}

	if s.Iteration >= 2 && s.HasResults {
		return models.PlannerDecision{
			Action:    models.ActionComplete,
			Reasoning: "Results are ready for the engagement response",
			Path:      models.PathFallback,
		}
	}
	return complete(GenericCompleteMessage, "Nothing further to do")
}

func firstStep(s State, intent *models.Intent) (models.PlannerDecision, bool) {
	probing := intent.RecommendedNextAction == models.NextActionCompleteWithProbing
	if (intent.IntentType == models.IntentDiscover || probing) && needsGiftProbe(s.UserMessage, intent) {
		return probe(GiftProbe, "Gift request without details"), true
	}

	switch intent.IntentType {
	case models.IntentDiscover:
		if q := strings.TrimSpace(intent.SearchQuery); q != "" {
			args := models.ToolArgs{"query": q}
			if loc := validLocation(intent, s.Refinement); loc != "" {
				args["location"] = loc
			}
			if b, ok := budget(intent); ok {
				args["budget_max"] = b
			}
			return tool(models.ToolDiscoverProducts, args, "Search for "+strconv.Quote(q)), true
		}

	case models.IntentDiscoverComposite, models.IntentRefineComposite:
		return compositeStep(s, intent), true

	case models.IntentTrack:
		orderID := s.OrderID
		if orderID != "" {
			return tool(models.ToolTrackOrder, models.ToolArgs{"order_id": orderID}, "Look up order "+orderID), true
		}

	case models.IntentBrowse:
		return tool(models.ToolDiscoverProducts, models.ToolArgs{"query": "browse"}, "Browse the catalog"), true
	}
	return models.PlannerDecision{}, false
}

func compositeStep(s State, intent *models.Intent) models.PlannerDecision {
	loc := validLocation(intent, s.Refinement)
	tm := firstOf(intent.FirstEntity(models.EntityTime), s.Refinement.Fulfillment(string(models.EntityTime)))
	date := firstOf(intent.FirstEntity(models.EntityDate), s.Refinement.Fulfillment(string(models.EntityDate)))
	exp := firstOf(intent.ExperienceName, s.Refinement.Fulfillment(refinement.FulfillmentExperience))

	if loc == "" || (tm == "" && date == "") {
		return probe(compositeProbe(exp, loc, strings.TrimSpace(date+" "+tm)), "Need location and timing before planning")
	}

	queries := intent.SearchQueries
	if len(queries) == 0 {
		queries = intent.ProposedPlan
	}
	if len(queries) == 0 && exp != "" {
		queries = []string{exp}
	}
	args := models.ToolArgs{
		"search_queries": append([]string(nil), queries...),
		"location":       loc,
	}
	if exp != "" {
		args["experience_name"] = exp
	}
	if tm != "" {
		args["time"] = tm
	}
	if date != "" {
		args["date"] = date
	}
	if b, ok := budget(intent); ok {
		args["budget_max"] = b
	}
	return tool(models.ToolDiscoverComposite, args, fmt.Sprintf("Assemble %s in %s", orPlan(exp), loc))
}

// compositeProbe is one line that acknowledges what is known and asks only
// for what is missing.
func compositeProbe(exp, loc, when string) string {
	exp = orPlan(exp)
	switch {
	case loc != "" && when == "":
		return fmt.Sprintf("Happy to plan %s in %s. What date and time should I plan for?", exp, loc)
	case loc == "" && when != "":
		return fmt.Sprintf("Happy to plan %s for %s. Which area should it be in?", exp, when)
	default:
		return fmt.Sprintf("Happy to plan %s. When is it, and where should it happen?", exp)
	}
}

var giftWords = []string{"gift", "present"}

// needsGiftProbe reports whether the message asks for a gift without saying
// anything about it.
func needsGiftProbe(msg string, intent *models.Intent) bool {
	lower := strings.ToLower(msg)
	mentioned := false
	for _, w := range giftWords {
		if strings.Contains(lower, w) {
			mentioned = true
			break
		}
	}
	if !mentioned || len(intent.Entities) > 0 {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(intent.SearchQuery))
	q = strings.TrimPrefix(q, "a ")
	q = strings.TrimSuffix(q, "s")
	return q == "" || q == "gift" || q == "present"
}

func validLocation(intent *models.Intent, rc *models.RefinementContext) string {
	for _, v := range intent.EntityValues(models.EntityLocation) {
		if refinement.ValidLocation(v) {
			return v
		}
	}
	if v := rc.Fulfillment(string(models.EntityLocation)); refinement.ValidLocation(v) {
		return v
	}
	return ""
}

var numberRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)

func budget(intent *models.Intent) (float64, bool) {
	for _, v := range intent.EntityValues(models.EntityBudget) {
		if m := numberRegex.FindString(strings.ReplaceAll(v, ",", "")); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil && f > 0 {
				return f, true
			}
		}
	}
	return 0, false
}

func tool(name models.ToolName, args models.ToolArgs, why string) models.PlannerDecision {
	return models.PlannerDecision{
		Action:    models.ActionTool,
		ToolName:  name,
		ToolArgs:  args,
		Reasoning: why,
		Path:      models.PathFallback,
	}
}

func probe(msg, why string) models.PlannerDecision {
	return complete(msg, why)
}

func complete(msg, why string) models.PlannerDecision {
	return models.PlannerDecision{
		Action:    models.ActionComplete,
		Message:   msg,
		Reasoning: why,
		Path:      models.PathFallback,
	}
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orPlan(exp string) string {
	if exp == "" {
		return "your plan"
	}
	return exp
}

// ── Prompt ───────────────────────────────────────────────────

const systemPrompt = `You are a shopping and experience concierge. Each step, call exactly one tool.
Rules:
- Call resolve_intent first on a new message.
- Use discover_composite for multi-category experiences once location and timing are known; otherwise call complete with one short question asking only for what is missing.
- Use discover_products for single-item searches.
- Call complete with an empty message once products or bundles have been found.
- Never invent order ids, URLs or product ids.`

// BuildPrompt serializes s into chat messages for the LLM backend.
func BuildPrompt(s State) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, recentMessages+2)
	msgs = append(msgs, models.ChatMessage{Role: "system", Content: systemPrompt})

	recent := s.RecentConversation
	if len(recent) > recentMessages {
		recent = recent[len(recent)-recentMessages:]
	}
	for _, m := range recent {
		if m.Role == "user" || m.Role == "assistant" {
			msgs = append(msgs, m)
		}
	}

	snapshot := map[string]interface{}{"state": s}
	if s.LastToolResult != nil {
		snapshot["last_tool"] = string(s.LastToolResult.Tool())
		snapshot["last_tool_result"] = s.LastToolResult.Payload()
	}
	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		body = []byte("{}")
	}
	msgs = append(msgs, models.ChatMessage{
		Role:    "user",
		Content: fmt.Sprintf("User message: %s\n\nCurrent state:\n%s", s.UserMessage, body),
	})
	return msgs
}

// ThreadContext summarizes stored refinement for the intent resolver and the
// prompt. Keys are emitted in a fixed order.
func ThreadContext(rc *models.RefinementContext) string {
	if rc == nil {
		return ""
	}
	var parts []string
	for _, k := range []string{"experience_name", "location", "date", "time", "pickup_time", "pickup_address", "delivery_address"} {
		if v := rc.Fulfillment(k); v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	if rc.SearchQueries != nil {
		parts = append(parts, "categories="+strings.Join(rc.SearchQueries, ","))
	}
	if rc.ProposedPlan != nil {
		parts = append(parts, "plan="+strings.Join(rc.ProposedPlan, ","))
	}
	return strings.Join(parts, "; ")
}
