// Package executor implements the per-turn orchestration loop.
//
// One call to RunTurn drives:
//
//	load refinement → planner decision → guardrails → dispatch →
//	merge result into state → repeat until complete, a tool error, or the
//	iteration cap → rules → save refinement once → assemble the result.
//
// Nothing in the loop is fatal: collaborator, persistence and planner
// failures all degrade to a partial result.
package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentoven/concierge/internal/bundle"
	"github.com/agentoven/concierge/internal/dispatcher"
	"github.com/agentoven/concierge/internal/guardrails"
	"github.com/agentoven/concierge/internal/planner"
	"github.com/agentoven/concierge/internal/refinement"
	"github.com/agentoven/concierge/internal/rules"
	"github.com/agentoven/concierge/internal/telemetry"
	"github.com/agentoven/concierge/pkg/contracts"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultMaxIterations bounds the planner ↔ tool loop.
const DefaultMaxIterations = 5

// DefaultLimit is the per-query product limit when the request has none.
const DefaultLimit = 10

// Options tune the loop.
type Options struct {
	MaxIterations int
	DefaultLimit  int
	Rules         models.RulesConfig
}

// Engine runs turns. It holds no per-turn state and is safe for concurrent
// use.
type Engine struct {
	collab  contracts.Collaborators
	planner *planner.Planner
	store   contracts.RefinementStore
	opts    Options
}

// NewEngine wires an engine. When no composite discoverer or category
// refiner is injected, the bundle synthesizer over c.Discovery fills them.
// store may be nil, in which case turns are stateless.
func NewEngine(c contracts.Collaborators, p *planner.Planner, store contracts.RefinementStore, opts Options) *Engine {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if p == nil {
		p = planner.New(nil, nil, 0)
	}
	if c.Discovery != nil && (c.Composite == nil || c.Refiner == nil) {
		synth := bundle.NewSynthesizer(c, 0)
		if c.Composite == nil {
			c.Composite = synth
		}
		if c.Refiner == nil {
			c.Refiner = synth
		}
	}
	return &Engine{collab: c, planner: p, store: store, opts: opts}
}

// turn carries everything one RunTurn needs between steps.
type turn struct {
	id       string
	req      models.TurnRequest
	state    *models.ConversationState
	prior    *models.RefinementContext
	decision refinement.Decision
	think    models.CheckpointFunc
	result   *models.TurnResult
}

// RunTurn processes one user message. It always returns a result; failures
// are reported in TurnResult.Error and the reasoning trail.
func (e *Engine) RunTurn(ctx context.Context, req models.TurnRequest, onThinking models.ThinkingFunc) *models.TurnResult {
	t := &turn{
		id:    uuid.New().String(),
		req:   req,
		think: planner.Thinker(onThinking),
		state: &models.ConversationState{
			Messages:       req.Messages,
			LastSuggestion: lastAssistant(req.Messages),
			ProbeCount:     countProbes(req.Messages),
			BundleID:       req.BundleID,
			OrderID:        req.OrderID,
		},
	}
	t.result = &models.TurnResult{TurnID: t.id}

	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "concierge.RunTurn")
	defer span.End()
	span.SetAttributes(
		attribute.String("concierge.turn_id", t.id),
		attribute.String("concierge.thread_id", req.ThreadID),
	)

	t.think.Emit(models.CheckpointTurnStarted, map[string]string{"thread_id": req.ThreadID})

	t.prior = e.load(ctx, req.ThreadID)
	t.state.Refinement = t.prior
	if t.prior.HasPurge() {
		t.state.PurgedSearchQueries = t.prior.SearchQueries
		t.state.PurgedProposedPlan = t.prior.ProposedPlan
	}

	e.loop(ctx, t)

	t.think.Emit(models.CheckpointBeforeResponse, nil)
	e.finish(ctx, t)

	outcome := outcomeOf(t.result)
	if t.result.Error != "" {
		span.SetStatus(codes.Error, t.result.Error)
	}
	telemetry.RecordTurn(outcome, time.Since(start))
	log.Info().
		Str("turn_id", t.id).
		Str("thread_id", req.ThreadID).
		Int("iterations", t.result.Iterations).
		Str("outcome", outcome).
		Dur("duration", time.Since(start)).
		Msg("Turn complete")

	return t.result
}

func (e *Engine) loop(ctx context.Context, t *turn) {
	st := t.state
	for st.Iteration < e.opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			st.LastError = err.Error()
			st.Reason("turn cancelled: " + err.Error())
			return
		}

		d := e.planner.Decide(ctx, e.plannerState(t))
		st.Reason(fmt.Sprintf("[%d] %s", st.Iteration, d.Reasoning))

		log.Debug().
			Str("turn_id", t.id).
			Int("iteration", st.Iteration).
			Str("action", string(d.Action)).
			Str("tool", string(d.ToolName)).
			Str("path", string(d.Path)).
			Msg("Planner decision")

		if d.Action == models.ActionComplete {
			msg := d.Message
			if d.ToolName == models.ToolComplete {
				msg = e.dispatchComplete(ctx, t, d)
			}
			t.result.PlannerCompleteMessage = &msg
			st.Iteration++
			return
		}

		rawArgs := d.ToolArgs.Clone()
		if d.ToolName == models.ToolDiscoverComposite && st.Refinement.HasPurge() {
			rawArgs["search_queries"] = append([]string{}, st.Refinement.SearchQueries...)
		}
		args, err := guardrails.Validate(d.ToolName, rawArgs)
		if err != nil {
			log.Warn().Str("turn_id", t.id).Str("tool", string(d.ToolName)).Err(err).Msg("Guardrail rejected tool call")
			st.Reason("guardrail rejected " + string(d.ToolName) + ": " + err.Error())
			st.Iteration++
			continue
		}

		e.beforeDispatch(t, d.ToolName, args)
		call := models.ToolCall{ID: uuid.New().String(), Name: d.ToolName, Args: args}
		res := dispatcher.Execute(ctx, e.collab, call, e.env(t))
		st.LastToolResult = res
		st.Iteration++
		t.result.ToolOutputs = append(t.result.ToolOutputs, map[string]interface{}{
			"tool":   string(call.Name),
			"result": res.Payload(),
		})

		if te, ok := res.(*models.ToolError); ok {
			st.LastError = te.Message
			st.Reason(fmt.Sprintf("%s failed: %s", te.Name, te.Message))
			return
		}
		e.merge(t, res)
	}
	st.Reason(fmt.Sprintf("stopped after %d iterations", st.Iteration))
}

// dispatchComplete records an explicit complete tool call like any other
// dispatch and returns the sanitised closing message. A rejected call still
// ends the turn with the planner's message.
func (e *Engine) dispatchComplete(ctx context.Context, t *turn, d models.PlannerDecision) string {
	args, err := guardrails.Validate(models.ToolComplete, d.ToolArgs.Clone())
	if err != nil {
		t.state.Reason("guardrail rejected complete: " + err.Error())
		return d.Message
	}
	call := models.ToolCall{ID: uuid.New().String(), Name: models.ToolComplete, Args: args}
	res := dispatcher.Execute(ctx, e.collab, call, e.env(t))
	t.state.LastToolResult = res
	t.result.ToolOutputs = append(t.result.ToolOutputs, map[string]interface{}{
		"tool":   string(call.Name),
		"result": res.Payload(),
	})
	return args.String("message")
}

// merge folds a successful tool result into the turn state.
func (e *Engine) merge(t *turn, res models.ToolResult) {
	st := t.state
	switch r := res.(type) {
	case *models.IntentResult:
		t.decision = refinement.Plan(r.Intent, t.prior)
		st.Reason(t.decision.Reason)
		st.Refinement = t.decision.Effective(t.req.ThreadID, t.prior)
		st.Intent = refinement.ApplyPurge(r.Intent, st.Refinement)
		t.think.Emit(models.CheckpointIntentResolved, map[string]string{
			"intent_type": string(st.Intent.IntentType),
			"experience":  firstNonEmpty(st.Intent.ExperienceName, st.Intent.SearchQuery, "your request"),
		})

	case *models.ProductsResult:
		st.Products = r.Result
		t.think.Emit(models.CheckpointAfterDiscover, map[string]string{
			"count": strconv.Itoa(len(r.Result.Products)),
		})

	case *models.CompositeResult:
		st.Composite = r
		if len(r.BundleOptions) > 0 {
			st.LastShownBundle = r.BundleOptions[0].Label
		}
		t.think.Emit(models.CheckpointAfterDiscover, map[string]string{
			"count": strconv.Itoa(len(r.BundleOptions)),
		})

	case *models.RefineCategoryResult:
		st.Refined = r
		st.BundleID = firstNonEmpty(r.BundleID, st.BundleID)
		st.RotateTier = true

	case *models.OrchestrationResult:
		st.OrchestratorState = r.Payload()
	}
}

func (e *Engine) beforeDispatch(t *turn, name models.ToolName, args models.ToolArgs) {
	switch name {
	case models.ToolDiscoverProducts:
		t.think.Emit(models.CheckpointBeforeDiscoverProducts, map[string]string{"query": args.String("query")})
	case models.ToolDiscoverComposite:
		t.think.Emit(models.CheckpointBeforeDiscoverComposite, map[string]string{
			"experience": firstNonEmpty(args.String("experience_name"), "your plan"),
			"categories": strings.Join(args.Strings("search_queries"), ", "),
		})
	}
}

func (e *Engine) plannerState(t *turn) planner.State {
	st := t.state
	return planner.State{
		Iteration:          st.Iteration,
		UserMessage:        t.req.UserMessage,
		ProbeCount:         st.ProbeCount,
		LastSuggestion:     st.LastSuggestion,
		RecentConversation: st.Messages,
		ThreadContext:      planner.ThreadContext(st.Refinement),
		UCPPrioritized:     e.collab.Manifests != nil,
		Intent:             st.Intent,
		Refinement:         st.Refinement,
		BundleID:           st.BundleID,
		OrderID:            st.OrderID,
		HasResults:         st.HasResults(),
		LastToolResult:     st.LastToolResult,
		Reasoning:          st.AgentReasoning,
	}
}

func (e *Engine) env(t *turn) dispatcher.Env {
	st := t.state
	limit := t.req.Limit
	if limit <= 0 {
		limit = e.opts.DefaultLimit
	}
	env := dispatcher.Env{
		ThreadID:       t.req.ThreadID,
		BundleID:       st.BundleID,
		OrderID:        st.OrderID,
		Limit:          limit,
		LastSuggestion: st.LastSuggestion,
		Messages:       st.Messages,
		Think:          t.think,
	}
	if st.Intent != nil {
		env.BundleOptions = st.Intent.BundleOptions
	}
	return env
}

// ── Persistence ──────────────────────────────────────────────

func (e *Engine) load(ctx context.Context, threadID string) *models.RefinementContext {
	if e.store == nil || threadID == "" {
		return nil
	}
	rc, err := e.store.Load(ctx, threadID)
	telemetry.RecordRefinementOp("load", err)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", threadID).Msg("Refinement load failed, continuing without it")
		return nil
	}
	return rc
}

// save writes the turn's single refinement update.
func (e *Engine) save(ctx context.Context, t *turn) *models.RefinementContext {
	if e.store == nil || t.req.ThreadID == "" {
		return t.state.Refinement
	}
	saved, err := e.store.Save(ctx, t.req.ThreadID, t.decision.Update)
	telemetry.RecordRefinementOp("save", err)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", t.req.ThreadID).Msg("Refinement save failed")
		return t.state.Refinement
	}
	return saved
}

// ── Result assembly ──────────────────────────────────────────

func (e *Engine) finish(ctx context.Context, t *turn) {
	st := t.state
	r := t.result

	r.Intent = st.Intent
	r.Iterations = st.Iteration
	r.AgentReasoning = st.AgentReasoning
	r.Error = st.LastError
	r.RefinementContext = e.save(ctx, t)

	if st.Products != nil {
		r.ProductsData.Products = st.Products.Products
		r.AdaptiveCard = st.Products.AdaptiveCard
		r.MachineReadable = st.Products.MachineReadable
	}
	if st.Composite != nil {
		r.ProductsData.Categories = st.Composite.Categories
		r.ProductsData.BundleOptions = st.Composite.BundleOptions
		eng := st.Composite.Engagement
		r.ProductsData.Engagement = &eng
	}
	if st.Refined != nil {
		r.ProductsData.Alternatives = st.Refined.Alternatives
	}

	items := 0
	if len(r.ProductsData.BundleOptions) > 0 {
		items = len(r.ProductsData.BundleOptions[0].ProductIDs)
	}
	r.Upsell = rules.Evaluate(st.Intent, e.opts.Rules, items)
	if len(r.Upsell.MatchedRules) > 0 {
		st.Reason("rules matched: " + strings.Join(r.Upsell.MatchedRules, ", "))
		r.AgentReasoning = st.AgentReasoning
	}
	if r.AgentReasoning == nil {
		r.AgentReasoning = []string{}
	}
}

func outcomeOf(r *models.TurnResult) string {
	switch {
	case r.Error != "":
		return "error"
	case r.PlannerCompleteMessage != nil:
		return "complete"
	default:
		return "max_iterations"
	}
}

func lastAssistant(msgs []models.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "assistant" {
			return msgs[i].Content
		}
	}
	return ""
}

// countProbes counts assistant turns that asked the user a question.
func countProbes(msgs []models.ChatMessage) int {
	n := 0
	for _, m := range msgs {
		if m.Role == "assistant" && strings.HasSuffix(strings.TrimSpace(m.Content), "?") {
			n++
		}
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
