package guardrails_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/agentoven/concierge/internal/guardrails"
	"github.com/agentoven/concierge/pkg/models"
)

func TestValidate_UnknownTool(t *testing.T) {
	for _, name := range []models.ToolName{"", "delete_everything", "Resolve_Intent"} {
		_, err := guardrails.Validate(name, models.ToolArgs{"text": "hi"})
		if !errors.Is(err, guardrails.ErrUnknownTool) {
			t.Errorf("Validate(%q) error = %v, want ErrUnknownTool", name, err)
		}
	}
}

func TestValidate_EveryToolHasATable(t *testing.T) {
	for _, name := range models.AllTools {
		if !guardrails.Known(name) {
			t.Errorf("tool %q has no guardrail table", name)
		}
	}
}

func TestValidate_EmptyQueryBecomesBrowse(t *testing.T) {
	for _, args := range []models.ToolArgs{{}, {"query": ""}, {"query": "   "}} {
		out, err := guardrails.Validate(models.ToolDiscoverProducts, args)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if got := out.String("query"); got != "browse" {
			t.Errorf("query = %q, want %q", got, "browse")
		}
	}
}

func TestValidate_LimitClamped(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int
	}{
		{500.0, 100},
		{0.0, 1},
		{-3.0, 1},
		{42.0, 42},
		{"7", 7},
		{12, 12},
	}
	for _, c := range cases {
		out, err := guardrails.Validate(models.ToolDiscoverProducts, models.ToolArgs{"query": "roses", "limit": c.in})
		if err != nil {
			t.Fatalf("Validate(limit=%v) error = %v", c.in, err)
		}
		got, ok := out.Int("limit")
		if !ok || got != c.want {
			t.Errorf("Validate(limit=%v).limit = %v, want %d", c.in, out["limit"], c.want)
		}
	}
}

func TestValidate_NonNumericLimitRejected(t *testing.T) {
	_, err := guardrails.Validate(models.ToolDiscoverProducts, models.ToolArgs{"limit": "lots"})
	if !errors.Is(err, guardrails.ErrInvalidField) {
		t.Errorf("error = %v, want ErrInvalidField", err)
	}
}

func TestValidate_ApprovalTimeoutClamped(t *testing.T) {
	out, err := guardrails.Validate(models.ToolCreateStandingIntent, models.ToolArgs{
		"description":            "reorder coffee monthly",
		"approval_timeout_hours": 1000.0,
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got, _ := out.Int("approval_timeout_hours"); got != 168 {
		t.Errorf("approval_timeout_hours = %d, want 168", got)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	cases := []struct {
		tool models.ToolName
		args models.ToolArgs
	}{
		{models.ToolResolveIntent, models.ToolArgs{"text": "  "}},
		{models.ToolStartOrchestration, models.ToolArgs{}},
		{models.ToolDiscoverComposite, models.ToolArgs{"search_queries": []interface{}{"", " "}}},
		{models.ToolTrackOrder, models.ToolArgs{"order_id": ""}},
		{models.ToolWebSearch, models.ToolArgs{}},
	}
	for _, c := range cases {
		_, err := guardrails.Validate(c.tool, c.args)
		if !errors.Is(err, guardrails.ErrMissingField) {
			t.Errorf("Validate(%s, %v) error = %v, want ErrMissingField", c.tool, c.args, err)
		}
	}
}

func TestValidate_StringsTrimmedAndCapped(t *testing.T) {
	long := strings.Repeat("é", 2500)
	out, err := guardrails.Validate(models.ToolResolveIntent, models.ToolArgs{"text": "  " + long})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if n := len([]rune(out.String("text"))); n != 2000 {
		t.Errorf("text rune length = %d, want 2000", n)
	}
}

func TestValidate_ListsCleaned(t *testing.T) {
	in := []interface{}{" flowers ", "", "dinner", strings.Repeat("x", 300)}
	for i := 0; i < 12; i++ {
		in = append(in, "extra")
	}
	out, err := guardrails.Validate(models.ToolDiscoverComposite, models.ToolArgs{"search_queries": in})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	got := out.Strings("search_queries")
	if len(got) != 10 {
		t.Fatalf("len(search_queries) = %d, want 10", len(got))
	}
	if got[0] != "flowers" || got[1] != "dinner" {
		t.Errorf("search_queries[:2] = %v, want [flowers dinner]", got[:2])
	}
	if len(got[2]) != 200 {
		t.Errorf("len(search_queries[2]) = %d, want 200", len(got[2]))
	}
}

func TestValidate_CommaSeparatedList(t *testing.T) {
	out, err := guardrails.Validate(models.ToolDiscoverComposite, models.ToolArgs{"search_queries": "flowers, dinner,limo"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	got := out.Strings("search_queries")
	want := []string{"flowers", "dinner", "limo"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("search_queries = %v, want %v", got, want)
	}
}

func TestValidate_ManifestURL(t *testing.T) {
	if _, err := guardrails.Validate(models.ToolFetchUCPManifest, models.ToolArgs{"url": "https://shop.example.com/.well-known/ucp"}); err != nil {
		t.Errorf("https URL rejected: %v", err)
	}
	for _, bad := range []string{"file:///etc/passwd", "ftp://x", "not a url"} {
		_, err := guardrails.Validate(models.ToolFetchUCPManifest, models.ToolArgs{"url": bad})
		if !errors.Is(err, guardrails.ErrInvalidField) {
			t.Errorf("Validate(url=%q) error = %v, want ErrInvalidField", bad, err)
		}
	}
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	in := models.ToolArgs{"query": "", "limit": 500.0}
	if _, err := guardrails.Validate(models.ToolDiscoverProducts, in); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if in["query"] != "" || in["limit"] != 500.0 {
		t.Errorf("input mutated: %v", in)
	}
}
