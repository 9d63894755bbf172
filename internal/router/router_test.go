package router_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentoven/concierge/internal/config"
	"github.com/agentoven/concierge/internal/router"
	"github.com/agentoven/concierge/pkg/models"
)

// mockDriver is a test Driver.
type mockDriver struct {
	kind  string
	err   error
	resp  *models.Completion
	calls int
	block bool
}

func (d *mockDriver) Kind() string  { return d.kind }
func (d *mockDriver) Model() string { return d.kind + "-model" }
func (d *mockDriver) Complete(ctx context.Context, _ []models.ChatMessage, _ []models.ToolSchema) (*models.Completion, error) {
	d.calls++
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.err != nil {
		return nil, d.err
	}
	if d.resp != nil {
		cp := *d.resp
		return &cp, nil
	}
	return &models.Completion{Text: "mock response from " + d.kind}, nil
}

var userMsg = []models.ChatMessage{{Role: "user", Content: "hello"}}

func TestRegisterAndGetDriver(t *testing.T) {
	mr := router.NewModelRouter(0)

	mock := &mockDriver{kind: "test-provider"}
	mr.RegisterDriver(mock)

	got := mr.GetDriver("test-provider")
	if got == nil {
		t.Fatal("GetDriver() returned nil for registered driver")
	}
	if got.Kind() != "test-provider" {
		t.Errorf("GetDriver().Kind() = %q, want %q", got.Kind(), "test-provider")
	}
}

func TestGetDriver_NotFound(t *testing.T) {
	mr := router.NewModelRouter(0)

	if got := mr.GetDriver("nonexistent"); got != nil {
		t.Errorf("GetDriver(nonexistent) = %v, want nil", got)
	}
}

func TestListDrivers_PreservesOrder(t *testing.T) {
	mr := router.NewModelRouter(0)
	mr.RegisterDriver(&mockDriver{kind: "b"})
	mr.RegisterDriver(&mockDriver{kind: "a"})
	mr.RegisterDriver(&mockDriver{kind: "b"})

	got := mr.ListDrivers()
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("ListDrivers() = %v, want [b a]", got)
	}
}

func TestChatComplete_NoProviders(t *testing.T) {
	mr := router.NewModelRouter(0)

	_, err := mr.ChatComplete(context.Background(), userMsg, nil)
	if !errors.Is(err, router.ErrNoProviders) {
		t.Errorf("ChatComplete() error = %v, want ErrNoProviders", err)
	}
}

func TestChatComplete_FallsThroughToNextProvider(t *testing.T) {
	mr := router.NewModelRouter(0)
	failing := &mockDriver{kind: "first", err: errors.New("rate limited")}
	ok := &mockDriver{kind: "second"}
	mr.RegisterDriver(failing)
	mr.RegisterDriver(ok)

	resp, err := mr.ChatComplete(context.Background(), userMsg, models.ToolSchemas)
	if err != nil {
		t.Fatalf("ChatComplete() error = %v", err)
	}
	if resp.Provider != "second" {
		t.Errorf("Provider = %q, want %q", resp.Provider, "second")
	}
	if resp.Model != "second-model" {
		t.Errorf("Model = %q, want %q", resp.Model, "second-model")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.calls, ok.calls)
	}
}

func TestChatComplete_AllFail(t *testing.T) {
	mr := router.NewModelRouter(0)
	boom := errors.New("boom")
	mr.RegisterDriver(&mockDriver{kind: "only", err: boom})

	_, err := mr.ChatComplete(context.Background(), userMsg, nil)
	if !errors.Is(err, boom) {
		t.Errorf("ChatComplete() error = %v, want wrapped %v", err, boom)
	}
}

func TestChatComplete_AssignsToolCallID(t *testing.T) {
	mr := router.NewModelRouter(0)
	mr.RegisterDriver(&mockDriver{kind: "p", resp: &models.Completion{
		ToolCall: &models.ToolCall{Name: models.ToolResolveIntent, Args: models.ToolArgs{"text": "hi"}},
	}})

	resp, err := mr.ChatComplete(context.Background(), userMsg, models.ToolSchemas)
	if err != nil {
		t.Fatalf("ChatComplete() error = %v", err)
	}
	if resp.ToolCall == nil || resp.ToolCall.ID == "" {
		t.Errorf("ToolCall = %+v, want generated ID", resp.ToolCall)
	}
}

func TestChatComplete_PerCallTimeout(t *testing.T) {
	mr := router.NewModelRouter(20 * time.Millisecond)
	slow := &mockDriver{kind: "slow", block: true}
	fast := &mockDriver{kind: "fast"}
	mr.RegisterDriver(slow)
	mr.RegisterDriver(fast)

	resp, err := mr.ChatComplete(context.Background(), userMsg, nil)
	if err != nil {
		t.Fatalf("ChatComplete() error = %v", err)
	}
	if resp.Provider != "fast" {
		t.Errorf("Provider = %q, want %q", resp.Provider, "fast")
	}
}

func TestChatComplete_RecordsLatency(t *testing.T) {
	mr := router.NewModelRouter(0)
	mr.RegisterDriver(&mockDriver{kind: "p"})

	if _, err := mr.ChatComplete(context.Background(), userMsg, nil); err != nil {
		t.Fatalf("ChatComplete() error = %v", err)
	}
	if _, ok := mr.Latencies()["p"]; !ok {
		t.Errorf("Latencies() = %v, want entry for p", mr.Latencies())
	}
}

func TestLLMConfig(t *testing.T) {
	mr := router.NewModelRouter(0)

	cfg, err := mr.LLMConfig(context.Background())
	if err != nil {
		t.Fatalf("LLMConfig() error = %v", err)
	}
	if cfg.Enabled {
		t.Error("LLMConfig().Enabled = true with no drivers, want false")
	}

	mr.RegisterDriver(&mockDriver{kind: "openai"})
	cfg, _ = mr.LLMConfig(context.Background())
	if !cfg.Enabled || cfg.Model != "openai-model" {
		t.Errorf("LLMConfig() = %+v, want enabled with openai-model", cfg)
	}
}

func TestNewFromConfig_SkipsProvidersWithoutKeys(t *testing.T) {
	mr, err := router.NewFromConfig(context.Background(), config.LLMConfig{
		Providers: []string{"openai", "anthropic", "mystery"},
		OpenAIKey: "sk-test",
	})
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	defer mr.Close()

	got := mr.ListDrivers()
	if len(got) != 1 || got[0] != "openai" {
		t.Errorf("ListDrivers() = %v, want [openai]", got)
	}
}
