package llm

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
)

// AnthropicLLM streams completions via anthropic-sdk-go's message stream
// helper, accumulating tool_use blocks and feeding their results back as
// tool_result content blocks until the model stops without requesting one.
type AnthropicLLM struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropicLLM(apiKey string, model string) *AnthropicLLM {
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaude3_5SonnetLatest
	}
	return &AnthropicLLM{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}
}

func (l *AnthropicLLM) Stream(ctx context.Context, history []orchestrator.Message, tools []orchestrator.ToolSpec, onToken func(string) error, onToolCall func(orchestrator.ToolCall) (string, error)) error {
	var system string
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		if m.Role == "agent" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	toolParams := toAnthropicTools(tools)

	for {
		params := anthropic.MessageNewParams{
			Model:     l.model,
			MaxTokens: 1024,
			Messages:  messages,
			Tools:     toolParams,
		}
		if system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}

		stream := l.client.Messages.NewStreaming(ctx, params)

		var assembled anthropic.Message
		for stream.Next() {
			event := stream.Current()
			if err := assembled.Accumulate(event); err != nil {
				return err
			}
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text := delta.Delta.Text; text != "" {
					if err := onToken(text); err != nil {
						stream.Close()
						return err
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			return err
		}

		var toolUses []anthropic.ContentBlockUnion
		for _, block := range assembled.Content {
			if block.Type == "tool_use" {
				toolUses = append(toolUses, block)
			}
		}
		if assembled.StopReason != anthropic.StopReasonToolUse || len(toolUses) == 0 {
			return nil
		}

		messages = append(messages, assembled.ToParam())

		var results []anthropic.ContentBlockParamUnion
		for _, tu := range toolUses {
			result, err := onToolCall(orchestrator.ToolCall{ID: tu.ID, Name: tu.Name, Args: tu.Input})
			if err != nil {
				result = "error: " + err.Error()
			}
			results = append(results, anthropic.NewToolResultBlock(tu.ID, result, false))
		}
		messages = append(messages, anthropic.NewUserMessage(results...))
	}
}

func toAnthropicTools(tools []orchestrator.ToolSpec) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema, _ := json.Marshal(t.Schema)
		var inputSchema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(schema, &inputSchema)
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return out
}

func (l *AnthropicLLM) Name() string {
	return "anthropic-llm"
}
