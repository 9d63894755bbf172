package planner_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agentoven/concierge/internal/planner"
	"github.com/agentoven/concierge/internal/testutil"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compositeIntent(entities ...models.Entity) *models.Intent {
	return &models.Intent{
		IntentType:     models.IntentDiscoverComposite,
		ExperienceName: "date night",
		SearchQueries:  []string{"flowers", "dinner", "limo"},
		Entities:       entities,
	}
}

func TestFallback_IterationZeroResolvesIntent(t *testing.T) {
	d := planner.Fallback(planner.State{UserMessage: "plan a date night", LastSuggestion: "how about flowers?"})

	assert.Equal(t, models.ActionTool, d.Action)
	assert.Equal(t, models.ToolResolveIntent, d.ToolName)
	assert.Equal(t, "plan a date night", d.ToolArgs.String("text"))
	assert.Equal(t, "how about flowers?", d.ToolArgs.String("last_suggestion"))
	assert.Equal(t, models.PathFallback, d.Path)
}

func TestFallback_DiscoverWithQuery(t *testing.T) {
	d := planner.Fallback(planner.State{
		Iteration:   1,
		UserMessage: "red roses under $50",
		Intent: &models.Intent{
			IntentType:  models.IntentDiscover,
			SearchQuery: "red roses",
			Entities:    []models.Entity{{Type: models.EntityBudget, Value: "$50"}},
		},
	})

	require.Equal(t, models.ToolDiscoverProducts, d.ToolName)
	assert.Equal(t, "red roses", d.ToolArgs.String("query"))
	b, _ := d.ToolArgs.Float("budget_max")
	assert.Equal(t, 50.0, b)
}

func TestFallback_GiftProbe(t *testing.T) {
	d := planner.Fallback(planner.State{
		Iteration:   1,
		UserMessage: "I need a gift",
		Intent:      &models.Intent{IntentType: models.IntentDiscover, SearchQuery: "gift"},
	})

	assert.Equal(t, models.ActionComplete, d.Action)
	assert.Equal(t, planner.GiftProbe, d.Message)
	assert.True(t, d.IsProbe())
}

func TestFallback_GiftWithDetailsSearches(t *testing.T) {
	d := planner.Fallback(planner.State{
		Iteration:   1,
		UserMessage: "a gift for my mom, she loves orchids",
		Intent:      &models.Intent{IntentType: models.IntentDiscover, SearchQuery: "orchids"},
	})

	assert.Equal(t, models.ToolDiscoverProducts, d.ToolName)
}

func TestFallback_CompositeProbesForMissingPieces(t *testing.T) {
	tests := []struct {
		name     string
		entities []models.Entity
		contains string
		absent   string
	}{
		{"nothing known", nil, "When is it, and where", ""},
		{"location known", []models.Entity{{Type: models.EntityLocation, Value: "Brooklyn"}}, "in Brooklyn. What date and time", "Which area"},
		{"time known", []models.Entity{{Type: models.EntityTime, Value: "tonight"}}, "for tonight. Which area", "What date"},
		{"negated location", []models.Entity{{Type: models.EntityLocation, Value: "not Manhattan"}, {Type: models.EntityTime, Value: "tonight"}}, "Which area", "Manhattan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := planner.Fallback(planner.State{Iteration: 1, UserMessage: "plan a date night", Intent: compositeIntent(tt.entities...)})

			require.Equal(t, models.ActionComplete, d.Action)
			assert.True(t, d.IsProbe())
			assert.Contains(t, d.Message, tt.contains)
			assert.NotContains(t, d.Message, "\n")
			if tt.absent != "" {
				assert.NotContains(t, d.Message, tt.absent)
			}
		})
	}
}

func TestFallback_CompositeDispatchesWhenKnown(t *testing.T) {
	d := planner.Fallback(planner.State{
		Iteration: 1,
		Intent: compositeIntent(
			models.Entity{Type: models.EntityLocation, Value: "Brooklyn"},
			models.Entity{Type: models.EntityTime, Value: "tonight"},
		),
	})

	require.Equal(t, models.ToolDiscoverComposite, d.ToolName)
	assert.Equal(t, []string{"flowers", "dinner", "limo"}, d.ToolArgs.Strings("search_queries"))
	assert.Equal(t, "Brooklyn", d.ToolArgs.String("location"))
	assert.Equal(t, "tonight", d.ToolArgs.String("time"))
	assert.Equal(t, "date night", d.ToolArgs.String("experience_name"))
}

func TestFallback_CompositeUsesStoredFulfillment(t *testing.T) {
	d := planner.Fallback(planner.State{
		Iteration: 1,
		Intent:    compositeIntent(),
		Refinement: &models.RefinementContext{FulfillmentContext: map[string]string{
			"location": "Brooklyn",
			"date":     "Friday",
		}},
	})

	require.Equal(t, models.ToolDiscoverComposite, d.ToolName)
	assert.Equal(t, "Friday", d.ToolArgs.String("date"))
}

func TestFallback_TrackAndBrowse(t *testing.T) {
	d := planner.Fallback(planner.State{Iteration: 1, OrderID: "ord-1", Intent: &models.Intent{IntentType: models.IntentTrack}})
	assert.Equal(t, models.ToolTrackOrder, d.ToolName)
	assert.Equal(t, "ord-1", d.ToolArgs.String("order_id"))

	d = planner.Fallback(planner.State{Iteration: 1, Intent: &models.Intent{IntentType: models.IntentBrowse}})
	assert.Equal(t, models.ToolDiscoverProducts, d.ToolName)
	assert.Equal(t, "browse", d.ToolArgs.String("query"))

	d = planner.Fallback(planner.State{Iteration: 1, Intent: &models.Intent{IntentType: models.IntentTrack}})
	assert.Equal(t, planner.GenericCompleteMessage, d.Message)
}

func TestFallback_LaterIterations(t *testing.T) {
	d := planner.Fallback(planner.State{Iteration: 2, HasResults: true})
	assert.Equal(t, models.ActionComplete, d.Action)
	assert.Empty(t, d.Message)

	d = planner.Fallback(planner.State{Iteration: 3})
	assert.Equal(t, planner.GenericCompleteMessage, d.Message)
}

func TestFallback_Deterministic(t *testing.T) {
	s := planner.State{
		Iteration:   1,
		UserMessage: "tonight in Brooklyn",
		Intent: compositeIntent(
			models.Entity{Type: models.EntityLocation, Value: "Brooklyn"},
			models.Entity{Type: models.EntityTime, Value: "tonight"},
			models.Entity{Type: models.EntityBudget, Value: "300"},
		),
	}

	a, err := json.Marshal(planner.Fallback(s))
	require.NoError(t, err)
	b, err := json.Marshal(planner.Fallback(s))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

// ── Primary path ─────────────────────────────────────────────

func enabled() *testutil.StaticLLMConfig {
	return &testutil.StaticLLMConfig{Config: models.LLMConfig{Enabled: true, Providers: []string{"fake"}}}
}

func TestDecide_UsesLLMToolCall(t *testing.T) {
	chat := &testutil.FakeChat{Responses: []*models.Completion{{
		Provider: "fake",
		ToolCall: &models.ToolCall{Name: models.ToolWebSearch, Args: models.ToolArgs{"query": "best picnic spots"}},
	}}}
	p := planner.New(chat, enabled(), time.Minute)

	d := p.Decide(context.Background(), planner.State{Iteration: 1, UserMessage: "where to picnic?"})

	assert.Equal(t, models.PathLLM, d.Path)
	assert.Equal(t, models.ToolWebSearch, d.ToolName)
	require.NotEmpty(t, chat.LastTools)
	assert.Len(t, chat.LastTools, len(models.ToolSchemas))
	assert.Equal(t, "system", chat.LastMsgs[0].Role)
	assert.Contains(t, chat.LastMsgs[len(chat.LastMsgs)-1].Content, "where to picnic?")
}

func TestDecide_CompleteToolCarriesArgs(t *testing.T) {
	chat := &testutil.FakeChat{Responses: []*models.Completion{{
		Provider: "fake",
		ToolCall: &models.ToolCall{Name: models.ToolComplete, Args: models.ToolArgs{"message": "All set.", "summary": "booked"}},
	}}}
	p := planner.New(chat, enabled(), time.Minute)

	d := p.Decide(context.Background(), planner.State{Iteration: 2})

	assert.Equal(t, models.ActionComplete, d.Action)
	assert.Equal(t, models.ToolComplete, d.ToolName)
	assert.Equal(t, "All set.", d.Message)
	assert.Equal(t, "booked", d.ToolArgs.String("summary"))
}

func TestDecide_TextBecomesComplete(t *testing.T) {
	chat := &testutil.FakeChat{Responses: []*models.Completion{{Provider: "fake", Text: "  Enjoy your evening!  "}}}
	p := planner.New(chat, enabled(), time.Minute)

	d := p.Decide(context.Background(), planner.State{Iteration: 2})

	assert.Equal(t, models.ActionComplete, d.Action)
	assert.Equal(t, "Enjoy your evening!", d.Message)
	assert.Equal(t, models.PathLLM, d.Path)
}

func TestDecide_LLMErrorFallsBack(t *testing.T) {
	chat := &testutil.FakeChat{Err: errors.New("upstream 503")}
	p := planner.New(chat, enabled(), time.Minute)

	d := p.Decide(context.Background(), planner.State{UserMessage: "hi"})

	assert.Equal(t, models.PathFallback, d.Path)
	assert.Equal(t, models.ToolResolveIntent, d.ToolName)
}

func TestDecide_DisabledConfigSkipsLLM(t *testing.T) {
	chat := &testutil.FakeChat{}
	p := planner.New(chat, &testutil.StaticLLMConfig{}, time.Minute)

	d := p.Decide(context.Background(), planner.State{UserMessage: "hi"})

	assert.Equal(t, models.PathFallback, d.Path)
	assert.Zero(t, chat.Calls)
}

func TestDecide_NoBackend(t *testing.T) {
	p := planner.New(nil, nil, 0)

	d := p.Decide(context.Background(), planner.State{UserMessage: "hi"})
	assert.Equal(t, models.PathFallback, d.Path)
}

// ── Config cache ─────────────────────────────────────────────

func TestConfigCache_Refresh(t *testing.T) {
	src := enabled()
	c := planner.NewConfigCache(src, time.Minute)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, c.Refresh(context.Background(), t0).Enabled)
	c.Refresh(context.Background(), t0.Add(30*time.Second))
	assert.Equal(t, 1, src.Calls)

	c.Refresh(context.Background(), t0.Add(61*time.Second))
	assert.Equal(t, 2, src.Calls)
	assert.Equal(t, t0.Add(61*time.Second), c.FetchedAt())
}

func TestConfigCache_KeepsValueOnError(t *testing.T) {
	src := enabled()
	c := planner.NewConfigCache(src, time.Minute)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.Refresh(context.Background(), t0)

	src.Err = errors.New("config service down")
	cfg := c.Refresh(context.Background(), t0.Add(2*time.Minute))

	assert.True(t, cfg.Enabled)
	assert.Equal(t, t0, c.FetchedAt())
}

// ── Thinking ─────────────────────────────────────────────────

func TestRender(t *testing.T) {
	assert.Equal(t, "Checking the weather in Brooklyn...",
		planner.Render(models.CheckpointBeforeWeather, map[string]string{"location": "Brooklyn"}))
	assert.Equal(t, "Got it, planning .",
		planner.Render(models.CheckpointIntentResolved, nil))
	assert.Empty(t, planner.Render("no_such_checkpoint", nil))
}

func TestThinker(t *testing.T) {
	assert.Nil(t, planner.Thinker(nil))

	var got []string
	think := planner.Thinker(func(msg string, ctx map[string]string) {
		got = append(got, ctx["checkpoint"]+": "+msg)
	})
	think.Emit(models.CheckpointBeforeCategoryFetch, map[string]string{"category": "dinner", "index": "2", "total": "3"})

	require.Len(t, got, 1)
	assert.Equal(t, "before_category_fetch: Finding dinner (2 of 3)...", got[0])
}

func TestThinker_RecoversCallbackPanic(t *testing.T) {
	think := planner.Thinker(func(string, map[string]string) { panic("boom") })
	assert.NotPanics(t, func() {
		think.Emit(models.CheckpointTurnStarted, nil)
	})
}

func TestThreadContext(t *testing.T) {
	assert.Empty(t, planner.ThreadContext(nil))

	got := planner.ThreadContext(&models.RefinementContext{
		SearchQueries:      []string{"flowers", "dinner"},
		FulfillmentContext: map[string]string{"time": "tonight", "location": "Brooklyn"},
	})
	assert.Equal(t, "location=Brooklyn; time=tonight; categories=flowers,dinner", got)
	assert.False(t, strings.Contains(got, "plan="))
}
