package models

import (
	"fmt"
	"math"
	"strings"
)

// ── Tools ────────────────────────────────────────────────────

// ToolName is the closed set of tools the planner may invoke.
type ToolName string

const (
	ToolResolveIntent        ToolName = "resolve_intent"
	ToolDiscoverProducts     ToolName = "discover_products"
	ToolDiscoverComposite    ToolName = "discover_composite"
	ToolRefineBundleCategory ToolName = "refine_bundle_category"
	ToolStartOrchestration   ToolName = "start_orchestration"
	ToolCreateStandingIntent ToolName = "create_standing_intent"
	ToolTrackOrder           ToolName = "track_order"
	ToolWebSearch            ToolName = "web_search"
	ToolGetWeather           ToolName = "get_weather"
	ToolGetUpcomingOccasions ToolName = "get_upcoming_occasions"
	ToolFetchUCPManifest     ToolName = "fetch_ucp_manifest"
	ToolComplete             ToolName = "complete"
)

// AllTools lists every tool in declaration order.
var AllTools = []ToolName{
	ToolResolveIntent,
	ToolDiscoverProducts,
	ToolDiscoverComposite,
	ToolRefineBundleCategory,
	ToolStartOrchestration,
	ToolCreateStandingIntent,
	ToolTrackOrder,
	ToolWebSearch,
	ToolGetWeather,
	ToolGetUpcomingOccasions,
	ToolFetchUCPManifest,
	ToolComplete,
}

// ParseToolName maps a raw name onto the closed set.
func ParseToolName(raw string) (ToolName, error) {
	name := ToolName(strings.TrimSpace(raw))
	for _, t := range AllTools {
		if t == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tool %q", raw)
}

// ToolArgs are the raw arguments of a tool call. Values follow JSON decoding
// conventions (numbers arrive as float64, lists as []interface{}).
type ToolArgs map[string]interface{}

// String returns the string value for key, or "".
func (a ToolArgs) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value for key. Accepts any numeric type or a
// numeric string; ok is false when absent or not numeric.
func (a ToolArgs) Int(key string) (int, bool) {
	f, ok := a.Float(key)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// Float returns the float value for key.
func (a ToolArgs) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Strings returns the string list for key, accepting []string or
// []interface{} holding strings.
func (a ToolArgs) Strings(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy of the argument map.
func (a ToolArgs) Clone() ToolArgs {
	out := make(ToolArgs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ToolCall is created by the planner, validated, executed once, then discarded.
type ToolCall struct {
	ID   string   `json:"id"`
	Name ToolName `json:"name"`
	Args ToolArgs `json:"args"`
}
