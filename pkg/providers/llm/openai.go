package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
)

// OpenAILLM streams chat completions through go-openai, interleaving tool
// calls transparently per the LLMProvider contract: a tool_calls finish
// reason triggers onToolCall for every accumulated call, the results are
// appended as tool messages, and the request loop continues until the model
// produces a plain stop.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{client: openai.NewClient(apiKey), model: model}
}

func (l *OpenAILLM) Stream(ctx context.Context, history []orchestrator.Message, tools []orchestrator.ToolSpec, onToken func(string) error, onToolCall func(orchestrator.ToolCall) (string, error)) error {
	messages := toOpenAIMessages(history)
	oaiTools := toOpenAITools(tools)

	for {
		req := openai.ChatCompletionRequest{
			Model:    l.model,
			Messages: messages,
			Stream:   true,
			Tools:    oaiTools,
		}

		stream, err := l.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return err
		}

		var pending []openai.ToolCall
		finishReason := openai.FinishReasonNull

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				stream.Close()
				return err
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}

			if choice.Delta.Content != "" {
				if err := onToken(choice.Delta.Content); err != nil {
					stream.Close()
					return err
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				pending = accumulateToolCall(pending, tc)
			}
		}
		stream.Close()

		if finishReason != openai.FinishReasonToolCalls || len(pending) == 0 {
			return nil
		}

		assistantMsg := openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			ToolCalls: pending,
		}
		messages = append(messages, assistantMsg)

		for _, tc := range pending {
			result, err := onToolCall(orchestrator.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: []byte(tc.Function.Arguments)})
			if err != nil {
				result = "error: " + err.Error()
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
	}
}

func accumulateToolCall(pending []openai.ToolCall, delta openai.ToolCall) []openai.ToolCall {
	idx := 0
	if delta.Index != nil {
		idx = *delta.Index
	}
	for len(pending) <= idx {
		pending = append(pending, openai.ToolCall{Type: openai.ToolTypeFunction})
	}
	if delta.ID != "" {
		pending[idx].ID = delta.ID
	}
	if delta.Function.Name != "" {
		pending[idx].Function.Name += delta.Function.Name
	}
	pending[idx].Function.Arguments += delta.Function.Arguments
	return pending
}

func toOpenAIMessages(history []orchestrator.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		role := m.Role
		if role == "agent" {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func toOpenAITools(tools []orchestrator.ToolSpec) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		schema, _ := json.Marshal(t.Schema)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(schema),
			},
		})
	}
	return out
}

func (l *OpenAILLM) Name() string {
	return "openai-llm"
}
