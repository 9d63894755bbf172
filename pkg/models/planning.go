package models

import "time"

// ── Planner decisions ────────────────────────────────────────

type PlannerAction string

const (
	ActionTool     PlannerAction = "tool"
	ActionComplete PlannerAction = "complete"
)

// PlannerPath records which branch produced a decision.
type PlannerPath string

const (
	PathLLM      PlannerPath = "llm"
	PathFallback PlannerPath = "fallback"
)

type PlannerDecision struct {
	Action    PlannerAction `json:"action"`
	ToolName  ToolName      `json:"tool_name,omitempty"`
	ToolArgs  ToolArgs      `json:"tool_args,omitempty"`
	Message   string        `json:"message"`
	Reasoning string        `json:"reasoning"`
	Path      PlannerPath   `json:"path"`
}

// IsProbe reports whether a complete decision asks the user a question.
func (d PlannerDecision) IsProbe() bool {
	return d.Action == ActionComplete && d.Message != "" && d.Path == PathFallback && d.ToolName == ""
}

// ── LLM backend ──────────────────────────────────────────────

// Completion is the result of one chat completion: either a structured tool
// call or plain text.
type Completion struct {
	ToolCall *ToolCall     `json:"tool_call,omitempty"`
	Text     string        `json:"text,omitempty"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Latency  time.Duration `json:"latency"`
}

// LLMConfig is the planner's view of the LLM backend configuration.
type LLMConfig struct {
	Enabled   bool     `json:"enabled"`
	Providers []string `json:"providers"`
	Model     string   `json:"model,omitempty"`
}

// ── Tool schemas ─────────────────────────────────────────────

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
)

type ToolParam struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

type ToolSchema struct {
	Name        ToolName
	Description string
	Params      []ToolParam
}

// JSONSchema renders the parameters as a JSON Schema object. Array
// parameters are arrays of strings.
func (s ToolSchema) JSONSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(s.Params))
	required := make([]string, 0)
	for _, p := range s.Params {
		prop := map[string]interface{}{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Type == ParamArray {
			prop["items"] = map[string]interface{}{"type": "string"}
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// ToolSchemas is the fixed tool list offered to the LLM planner.
var ToolSchemas = []ToolSchema{
	{Name: ToolResolveIntent, Description: "Classify the user's message into an intent with entities and bundle templates.", Params: []ToolParam{
		{Name: "text", Type: ParamString, Description: "The user's message", Required: true},
	}},
	{Name: ToolDiscoverProducts, Description: "Search the catalog for products matching a query.", Params: []ToolParam{
		{Name: "query", Type: ParamString, Description: "Search query"},
		{Name: "limit", Type: ParamInteger, Description: "Maximum results (1-100)"},
		{Name: "location", Type: ParamString, Description: "Location filter"},
		{Name: "budget_max", Type: ParamNumber, Description: "Maximum price"},
		{Name: "experience_tag", Type: ParamString, Description: "Experience tag filter"},
	}},
	{Name: ToolDiscoverComposite, Description: "Assemble multi-category bundle options for an experience such as a date night.", Params: []ToolParam{
		{Name: "search_queries", Type: ParamArray, Description: "One query per category, in order", Required: true},
		{Name: "experience_name", Type: ParamString, Description: "Name of the experience"},
		{Name: "location", Type: ParamString, Description: "Where the experience happens"},
		{Name: "time", Type: ParamString, Description: "When the experience happens"},
		{Name: "date", Type: ParamString, Description: "Date of the experience"},
		{Name: "budget_max", Type: ParamNumber, Description: "Maximum total budget"},
		{Name: "limit", Type: ParamInteger, Description: "Products per category (1-100)"},
	}},
	{Name: ToolRefineBundleCategory, Description: "Find alternatives for one category of an existing bundle.", Params: []ToolParam{
		{Name: "category", Type: ParamString, Description: "Category to replace", Required: true},
		{Name: "query", Type: ParamString, Description: "Refined search query"},
		{Name: "bundle_id", Type: ParamString, Description: "Bundle being refined"},
		{Name: "budget_max", Type: ParamNumber, Description: "Maximum price"},
	}},
	{Name: ToolStartOrchestration, Description: "Start a durable orchestration that waits for an external event.", Params: []ToolParam{
		{Name: "message", Type: ParamString, Description: "Instruction for the orchestration", Required: true},
		{Name: "wait_event_name", Type: ParamString, Description: "Event to wait for"},
	}},
	{Name: ToolCreateStandingIntent, Description: "Create a long-lived, approval-gated standing intent.", Params: []ToolParam{
		{Name: "description", Type: ParamString, Description: "What the standing intent should do", Required: true},
		{Name: "approval_timeout_hours", Type: ParamInteger, Description: "Hours to wait for approval (1-168)"},
		{Name: "platform", Type: ParamString, Description: "Originating platform"},
	}},
	{Name: ToolTrackOrder, Description: "Look up the status of an order.", Params: []ToolParam{
		{Name: "order_id", Type: ParamString, Description: "Order identifier", Required: true},
	}},
	{Name: ToolWebSearch, Description: "Search the web for supporting information.", Params: []ToolParam{
		{Name: "query", Type: ParamString, Description: "Search query", Required: true},
		{Name: "max_results", Type: ParamInteger, Description: "Maximum results (1-20)"},
	}},
	{Name: ToolGetWeather, Description: "Get the current weather for a location.", Params: []ToolParam{
		{Name: "location", Type: ParamString, Description: "Location", Required: true},
	}},
	{Name: ToolGetUpcomingOccasions, Description: "List upcoming events and occasions near a location.", Params: []ToolParam{
		{Name: "location", Type: ParamString, Description: "Location", Required: true},
		{Name: "limit", Type: ParamInteger, Description: "Maximum events (1-50)"},
	}},
	{Name: ToolFetchUCPManifest, Description: "Fetch a partner's commerce manifest.", Params: []ToolParam{
		{Name: "url", Type: ParamString, Description: "Manifest URL", Required: true},
	}},
	{Name: ToolComplete, Description: "Finish the turn with a message to the user.", Params: []ToolParam{
		{Name: "message", Type: ParamString, Description: "Message to the user"},
		{Name: "summary", Type: ParamString, Description: "Internal summary"},
	}},
}
