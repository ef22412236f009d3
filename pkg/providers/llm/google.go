package llm

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
)

// GoogleLLM streams generations through google.golang.org/genai, mapping
// function-call responses back onto the LLMProvider tool-call contract the
// same way the OpenAI and Anthropic providers do.
type GoogleLLM struct {
	client *genai.Client
	model  string
}

func NewGoogleLLM(ctx context.Context, apiKey string, model string) (*GoogleLLM, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GoogleLLM{client: client, model: model}, nil
}

func (l *GoogleLLM) Stream(ctx context.Context, history []orchestrator.Message, tools []orchestrator.ToolSpec, onToken func(string) error, onToolCall func(orchestrator.ToolCall) (string, error)) error {
	contents := toGenaiContents(history)
	config := toGenaiConfig(tools)

	for {
		iter := l.client.Models.GenerateContentStream(ctx, l.model, contents, config)

		var functionCalls []*genai.FunctionCall
		var sawText bool

		for resp, err := range iter {
			if err != nil {
				return err
			}
			if resp == nil || len(resp.Candidates) == 0 {
				continue
			}
			cand := resp.Candidates[0]
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					sawText = true
					if err := onToken(part.Text); err != nil {
						return err
					}
				}
				if part.FunctionCall != nil {
					functionCalls = append(functionCalls, part.FunctionCall)
				}
			}
		}

		if len(functionCalls) == 0 {
			return nil
		}
		_ = sawText

		var modelParts []*genai.Part
		for _, fc := range functionCalls {
			modelParts = append(modelParts, &genai.Part{FunctionCall: fc})
		}
		contents = append(contents, &genai.Content{Role: "model", Parts: modelParts})

		var responseParts []*genai.Part
		for _, fc := range functionCalls {
			args, _ := json.Marshal(fc.Args)
			result, err := onToolCall(orchestrator.ToolCall{ID: fc.ID, Name: fc.Name, Args: args})
			if err != nil {
				result = "error: " + err.Error()
			}
			responseParts = append(responseParts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       fc.ID,
					Name:     fc.Name,
					Response: map[string]any{"result": result},
				},
			})
		}
		contents = append(contents, &genai.Content{Role: "user", Parts: responseParts})
	}
}

func toGenaiContents(history []orchestrator.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == "agent" {
			role = "model"
		}
		if m.Role == "system" {
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return out
}

func toGenaiConfig(tools []orchestrator.ToolSpec) *genai.GenerateContentConfig {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGenaiSchema(t.Schema),
		})
	}
	return &genai.GenerateContentConfig{Tools: []*genai.Tool{{FunctionDeclarations: decls}}}
}

func toGenaiSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out genai.Schema
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return &out
}

func (l *GoogleLLM) Name() string {
	return "google-llm"
}
