// Package router implements the concierge LLM backend.
//
// The ModelRouter holds one Driver per configured provider and tries them in
// preference order: the first provider that answers wins, failures fall
// through to the next. It implements contracts.ChatCompleter and
// contracts.LLMConfigSource.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentoven/concierge/internal/config"
	"github.com/agentoven/concierge/internal/telemetry"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNoProviders is returned when no driver is registered.
var ErrNoProviders = errors.New("no LLM providers configured")

// Driver is one provider's tool-calling chat completion.
type Driver interface {
	Kind() string
	Model() string
	Complete(ctx context.Context, messages []models.ChatMessage, tools []models.ToolSchema) (*models.Completion, error)
}

// ModelRouter routes chat completions to registered drivers.
type ModelRouter struct {
	mu      sync.RWMutex
	drivers map[string]Driver
	order   []string
	timeout time.Duration

	// Latency tracking: provider kind → rolling avg ms
	latencyMu sync.RWMutex
	latencies map[string]int64
}

// NewModelRouter creates an empty router. timeout bounds each provider call;
// zero disables the per-call bound.
func NewModelRouter(timeout time.Duration) *ModelRouter {
	return &ModelRouter{
		drivers:   make(map[string]Driver),
		timeout:   timeout,
		latencies: make(map[string]int64),
	}
}

// NewFromConfig registers a driver for every provider in cfg.Providers that
// has an API key. Providers without a key are skipped.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig) (*ModelRouter, error) {
	mr := NewModelRouter(cfg.Timeout)
	for _, p := range cfg.Providers {
		switch p {
		case "openai":
			if cfg.OpenAIKey != "" {
				mr.RegisterDriver(NewOpenAIDriver(cfg.OpenAIKey, cfg.OpenAIModel))
			}
		case "anthropic":
			if cfg.AnthropicKey != "" {
				mr.RegisterDriver(NewAnthropicDriver(cfg.AnthropicKey, cfg.AnthropicModel))
			}
		case "gemini":
			if cfg.GeminiKey != "" {
				d, err := NewGeminiDriver(ctx, cfg.GeminiKey, cfg.GeminiModel)
				if err != nil {
					mr.Close()
					return nil, err
				}
				mr.RegisterDriver(d)
			}
		default:
			log.Warn().Str("provider", p).Msg("unknown LLM provider ignored")
		}
	}
	log.Info().Strs("providers", mr.ListDrivers()).Msg("model router initialized")
	return mr, nil
}

// RegisterDriver adds or replaces a driver. New kinds are appended to the
// preference order.
func (mr *ModelRouter) RegisterDriver(d Driver) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if _, exists := mr.drivers[d.Kind()]; !exists {
		mr.order = append(mr.order, d.Kind())
	}
	mr.drivers[d.Kind()] = d
}

// GetDriver returns the driver for kind, or nil.
func (mr *ModelRouter) GetDriver(kind string) Driver {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.drivers[kind]
}

// ListDrivers returns the registered kinds in preference order.
func (mr *ModelRouter) ListDrivers() []string {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return append([]string(nil), mr.order...)
}

// LLMConfig reports the router's current configuration.
func (mr *ModelRouter) LLMConfig(_ context.Context) (models.LLMConfig, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	cfg := models.LLMConfig{
		Enabled:   len(mr.order) > 0,
		Providers: append([]string(nil), mr.order...),
	}
	if len(mr.order) > 0 {
		cfg.Model = mr.drivers[mr.order[0]].Model()
	}
	return cfg, nil
}

// ChatComplete tries each provider in preference order.
func (mr *ModelRouter) ChatComplete(ctx context.Context, messages []models.ChatMessage, tools []models.ToolSchema) (*models.Completion, error) {
	mr.mu.RLock()
	ordered := make([]Driver, 0, len(mr.order))
	for _, k := range mr.order {
		ordered = append(ordered, mr.drivers[k])
	}
	mr.mu.RUnlock()

	if len(ordered) == 0 {
		return nil, ErrNoProviders
	}

	ctx, span := telemetry.Tracer().Start(ctx, "llm.ChatComplete")
	defer span.End()

	var lastErr error
	for _, d := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := mr.call(ctx, d, messages, tools)
		if err != nil {
			log.Warn().
				Str("provider", d.Kind()).
				Str("model", d.Model()).
				Err(err).
				Msg("Provider call failed, trying next")
			lastErr = err
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("all providers failed, last error: %w", lastErr)
}

func (mr *ModelRouter) call(ctx context.Context, d Driver, messages []models.ChatMessage, tools []models.ToolSchema) (*models.Completion, error) {
	if mr.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mr.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := d.Complete(ctx, messages, tools)
	elapsed := time.Since(start)
	if err != nil {
		telemetry.RecordLLMCall(d.Kind(), "error", elapsed)
		return nil, err
	}
	telemetry.RecordLLMCall(d.Kind(), "success", elapsed)

	resp.Provider = d.Kind()
	if resp.Model == "" {
		resp.Model = d.Model()
	}
	resp.Latency = elapsed
	if resp.ToolCall != nil && resp.ToolCall.ID == "" {
		resp.ToolCall.ID = uuid.NewString()
	}

	latencyMs := elapsed.Milliseconds()
	mr.latencyMu.Lock()
	prev := mr.latencies[d.Kind()]
	if prev == 0 {
		mr.latencies[d.Kind()] = latencyMs
	} else {
		// Exponential moving average
		mr.latencies[d.Kind()] = (prev*7 + latencyMs*3) / 10
	}
	mr.latencyMu.Unlock()

	return resp, nil
}

// Latencies returns the rolling average latency per provider in ms.
func (mr *ModelRouter) Latencies() map[string]int64 {
	mr.latencyMu.RLock()
	defer mr.latencyMu.RUnlock()
	out := make(map[string]int64, len(mr.latencies))
	for k, v := range mr.latencies {
		out[k] = v
	}
	return out
}

// Close releases driver resources.
func (mr *ModelRouter) Close() {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	kinds := append([]string(nil), mr.order...)
	sort.Strings(kinds)
	for _, k := range kinds {
		if c, ok := mr.drivers[k].(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Str("provider", k).Msg("driver close failed")
			}
		}
	}
}

// ── Shared helpers ───────────────────────────────────────────

// splitSystem separates system messages from the conversation.
func splitSystem(messages []models.ChatMessage) (string, []models.ChatMessage) {
	var sys []string
	rest := make([]models.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(sys, "\n\n"), rest
}

// decodeArgs parses a JSON object of tool arguments. Empty input is an empty
// argument map.
func decodeArgs(raw string) (models.ToolArgs, error) {
	args := models.ToolArgs{}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	return args, nil
}
