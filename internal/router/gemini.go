package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentoven/concierge/pkg/models"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiDriver calls the Gemini API with function declarations.
type GeminiDriver struct {
	client *genai.Client
	model  string
}

func NewGeminiDriver(ctx context.Context, apiKey, model string) (*GeminiDriver, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiDriver{client: client, model: model}, nil
}

func (d *GeminiDriver) Kind() string  { return "gemini" }
func (d *GeminiDriver) Model() string { return d.model }
func (d *GeminiDriver) Close() error  { return d.client.Close() }

func (d *GeminiDriver) Complete(ctx context.Context, messages []models.ChatMessage, tools []models.ToolSchema) (*models.Completion, error) {
	system, rest := splitSystem(messages)
	if len(rest) == 0 {
		return nil, fmt.Errorf("gemini: no user message")
	}

	gm := d.client.GenerativeModel(d.model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(tools) > 0 {
		gm.Tools = []*genai.Tool{{FunctionDeclarations: geminiFunctions(tools)}}
	}

	cs := gm.StartChat()
	for _, m := range rest[:len(rest)-1] {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(rest[len(rest)-1].Content))
	if err != nil {
		return nil, fmt.Errorf("gemini api error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: no candidates returned")
	}

	out := &models.Completion{Model: d.model}
	var text []string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if s := string(p); s != "" {
				text = append(text, s)
			}
		case genai.FunctionCall:
			if out.ToolCall == nil {
				args := models.ToolArgs{}
				for k, v := range p.Args {
					args[k] = v
				}
				out.ToolCall = &models.ToolCall{Name: models.ToolName(p.Name), Args: args}
			}
		}
	}
	out.Text = strings.Join(text, "\n")
	return out, nil
}

func geminiFunctions(tools []models.ToolSchema) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(t.Params)),
		}
		for _, p := range t.Params {
			prop := &genai.Schema{Type: geminiType(p.Type), Description: p.Description}
			if p.Type == models.ParamArray {
				prop.Items = &genai.Schema{Type: genai.TypeString}
			}
			schema.Properties[p.Name] = prop
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		out[i] = &genai.FunctionDeclaration{
			Name:        string(t.Name),
			Description: t.Description,
			Parameters:  schema,
		}
	}
	return out
}

func geminiType(t models.ParamType) genai.Type {
	switch t {
	case models.ParamInteger:
		return genai.TypeInteger
	case models.ParamNumber:
		return genai.TypeNumber
	case models.ParamBoolean:
		return genai.TypeBoolean
	case models.ParamArray:
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}
