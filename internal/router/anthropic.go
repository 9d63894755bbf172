package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentoven/concierge/pkg/models"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

const (
	defaultAnthropicModel     = anthropic.ModelClaude3_5Sonnet20241022
	defaultAnthropicMaxTokens = 1024
)

// AnthropicDriver calls the Anthropic messages API with tool definitions.
type AnthropicDriver struct {
	client *anthropic.Client
	model  anthropic.Model
}

func NewAnthropicDriver(apiKey, model string, opts ...option.RequestOption) *AnthropicDriver {
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	m := anthropic.Model(model)
	if m == "" {
		m = defaultAnthropicModel
	}
	return &AnthropicDriver{client: &client, model: m}
}

func (d *AnthropicDriver) Kind() string  { return "anthropic" }
func (d *AnthropicDriver) Model() string { return string(d.model) }

func (d *AnthropicDriver) Complete(ctx context.Context, messages []models.ChatMessage, tools []models.ToolSchema) (*models.Completion, error) {
	system, rest := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:     d.model,
		Messages:  anthropicMessages(rest),
		MaxTokens: defaultAnthropicMaxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = anthropicTools(tools)
	}

	resp, err := d.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	out := &models.Completion{Model: string(resp.Model)}
	var text []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if t := block.AsText().Text; t != "" {
				text = append(text, t)
			}
		case "tool_use":
			if out.ToolCall != nil {
				continue
			}
			tu := block.AsToolUse()
			raw, err := json.Marshal(tu.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic: encode tool input: %w", err)
			}
			args, err := decodeArgs(string(raw))
			if err != nil {
				return nil, fmt.Errorf("anthropic: %w", err)
			}
			out.ToolCall = &models.ToolCall{ID: tu.ID, Name: models.ToolName(tu.Name), Args: args}
		}
	}
	out.Text = strings.Join(text, "\n")
	return out, nil
}

// anthropicMessages maps the conversation onto user/assistant turns. The API
// requires the first message to come from the user.
func anthropicMessages(messages []models.ChatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages)+1)
	for i, m := range messages {
		if m.Role == "assistant" {
			if i == 0 {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock("(conversation resumed)")))
			}
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	return out
}

func anthropicTools(tools []models.ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		schema := t.JSONSchema()
		input := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: schema["properties"],
		}
		if req, ok := schema["required"].([]string); ok {
			input.Required = req
		}
		u := anthropic.ToolUnionParamOfTool(input, string(t.Name))
		if u.OfTool != nil {
			u.OfTool.Description = anthropic.String(t.Description)
		}
		out[i] = u
	}
	return out
}
