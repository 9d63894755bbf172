// Package guardrails sanitizes tool-call arguments before dispatch.
//
// Every tool has a fixed argument table:
//   - string fields are trimmed and capped at a rune length
//   - numeric fields are clamped into a closed range
//   - list fields are trimmed, de-emptied and capped in element length and count
//   - required fields must be present and non-empty
//
// Validate never calls out and never mutates its input.
package guardrails

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/agentoven/concierge/pkg/models"
)

var (
	ErrUnknownTool  = errors.New("unknown tool")
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
)

// BrowseQuery replaces an empty discover_products query.
const BrowseQuery = "browse"

const (
	maxListItems = 10
	maxListElem  = 200
	maxBudget    = 1e6
)

type stringRule struct {
	max      int
	required bool
}

type numberRule struct {
	min, max float64
	integer  bool
}

type listRule struct {
	required bool
}

type toolRule struct {
	strings map[string]stringRule
	numbers map[string]numberRule
	lists   map[string]listRule
	urls    map[string]bool
}

var (
	limitRule  = numberRule{min: 1, max: 100, integer: true}
	budgetRule = numberRule{min: 0, max: maxBudget}
)

var table = map[models.ToolName]toolRule{
	models.ToolResolveIntent: {
		strings: map[string]stringRule{
			"text":            {max: 2000, required: true},
			"last_suggestion": {max: 2000},
			"thread_context":  {max: 4000},
		},
		numbers: map[string]numberRule{"probe_count": {min: 0, max: 10, integer: true}},
	},
	models.ToolDiscoverProducts: {
		strings: map[string]stringRule{
			"query":              {max: 500},
			"location":           {max: 200},
			"partner_id":         {max: 100},
			"exclude_partner_id": {max: 100},
			"experience_tag":     {max: 100},
		},
		numbers: map[string]numberRule{"limit": limitRule, "budget_max": budgetRule},
		lists:   map[string]listRule{"experience_tags": {}},
	},
	models.ToolDiscoverComposite: {
		strings: map[string]stringRule{
			"experience_name": {max: 200},
			"location":        {max: 200},
			"time":            {max: 100},
			"date":            {max: 100},
		},
		numbers: map[string]numberRule{"limit": limitRule, "budget_max": budgetRule},
		lists:   map[string]listRule{"search_queries": {required: true}},
	},
	models.ToolRefineBundleCategory: {
		strings: map[string]stringRule{
			"category":  {max: 200, required: true},
			"query":     {max: 500},
			"bundle_id": {max: 100},
		},
		numbers: map[string]numberRule{"limit": limitRule, "budget_max": budgetRule},
	},
	models.ToolStartOrchestration: {
		strings: map[string]stringRule{
			"message":         {max: 2000, required: true},
			"wait_event_name": {max: 100},
		},
	},
	models.ToolCreateStandingIntent: {
		strings: map[string]stringRule{
			"description": {max: 2000, required: true},
			"platform":    {max: 50},
			"thread_id":   {max: 100},
		},
		numbers: map[string]numberRule{"approval_timeout_hours": {min: 1, max: 168, integer: true}},
	},
	models.ToolTrackOrder: {
		strings: map[string]stringRule{"order_id": {max: 100, required: true}},
	},
	models.ToolWebSearch: {
		strings: map[string]stringRule{"query": {max: 500, required: true}},
		numbers: map[string]numberRule{"max_results": {min: 1, max: 20, integer: true}},
	},
	models.ToolGetWeather: {
		strings: map[string]stringRule{"location": {max: 200, required: true}},
	},
	models.ToolGetUpcomingOccasions: {
		strings: map[string]stringRule{"location": {max: 200, required: true}},
		numbers: map[string]numberRule{"limit": {min: 1, max: 50, integer: true}},
	},
	models.ToolFetchUCPManifest: {
		strings: map[string]stringRule{"url": {max: 2000, required: true}},
		urls:    map[string]bool{"url": true},
	},
	models.ToolComplete: {
		strings: map[string]stringRule{
			"summary": {max: 4000},
			"message": {max: 4000},
		},
	},
}

// Validate returns a sanitized copy of args for the named tool. Fields the
// table does not mention pass through untouched.
func Validate(name models.ToolName, args models.ToolArgs) (models.ToolArgs, error) {
	rule, ok := table[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, string(name))
	}

	out := args.Clone()

	for field, r := range rule.strings {
		s, present, err := stringArg(out, field)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidField, name, field, err)
		}
		s = truncate(strings.TrimSpace(s), r.max)
		if s == "" {
			if r.required {
				return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, name, field)
			}
			if present {
				delete(out, field)
			}
			continue
		}
		out[field] = s
	}

	for field, r := range rule.numbers {
		if _, present := out[field]; !present || out[field] == nil {
			delete(out, field)
			continue
		}
		f, ok := out.Float(field)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is not a number", ErrInvalidField, name, field)
		}
		f = clamp(f, r.min, r.max)
		if r.integer {
			out[field] = clampInt(int(math.Round(f)), int(r.min), int(r.max))
		} else {
			out[field] = f
		}
	}

	for field, r := range rule.lists {
		list := cleanList(out, field)
		if len(list) == 0 {
			if r.required {
				return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, name, field)
			}
			delete(out, field)
			continue
		}
		out[field] = list
	}

	for field := range rule.urls {
		raw := out.String(field)
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: %s.%s must be an http(s) URL", ErrInvalidField, name, field)
		}
	}

	if name == models.ToolDiscoverProducts && out.String("query") == "" {
		out["query"] = BrowseQuery
	}

	return out, nil
}

// Known reports whether the tool has a guardrail table.
func Known(name models.ToolName) bool {
	_, ok := table[name]
	return ok
}

// stringArg accepts strings and scalar JSON values.
func stringArg(args models.ToolArgs, field string) (string, bool, error) {
	v, ok := args[field]
	if !ok || v == nil {
		return "", ok, nil
	}
	switch t := v.(type) {
	case string:
		return t, true, nil
	case float64, float32, int, int64, int32, bool:
		return fmt.Sprint(t), true, nil
	default:
		return "", true, fmt.Errorf("expected string, got %T", v)
	}
}

// cleanList accepts a list or a comma-separated string.
func cleanList(args models.ToolArgs, field string) []string {
	raw := args.Strings(field)
	if raw == nil {
		if s := args.String(field); s != "" {
			raw = strings.Split(s, ",")
		}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = truncate(strings.TrimSpace(item), maxListElem)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == maxListItems {
			break
		}
	}
	return out
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
