package router

import (
	"context"
	"fmt"

	"github.com/agentoven/concierge/pkg/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = openai.ChatModelGPT4oMini

// OpenAIDriver calls the OpenAI chat completions API with function tools.
type OpenAIDriver struct {
	client *openai.Client
	model  openai.ChatModel
}

func NewOpenAIDriver(apiKey, model string, opts ...option.RequestOption) *OpenAIDriver {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	m := openai.ChatModel(model)
	if m == "" {
		m = defaultOpenAIModel
	}
	return &OpenAIDriver{client: &client, model: m}
}

func (d *OpenAIDriver) Kind() string  { return "openai" }
func (d *OpenAIDriver) Model() string { return string(d.model) }

func (d *OpenAIDriver) Complete(ctx context.Context, messages []models.ChatMessage, tools []models.ToolSchema) (*models.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    d.model,
		Messages: openAIMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = openAITools(tools)
	}

	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}

	msg := resp.Choices[0].Message
	out := &models.Completion{Text: msg.Content, Model: resp.Model}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		args, err := decodeArgs(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		out.ToolCall = &models.ToolCall{
			ID:   tc.ID,
			Name: models.ToolName(tc.Function.Name),
			Args: args,
		}
	}
	return out, nil
}

func openAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func openAITools(tools []models.ToolSchema) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        string(t.Name),
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.JSONSchema()),
			},
		}
	}
	return out
}
