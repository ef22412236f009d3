package llm

import (
	"context"
	"strings"
	"testing"

	openaiapi "github.com/sashabaranov/go-openai"
)

func TestOpenAILLMAccumulateToolCall(t *testing.T) {
	zero := 0
	deltas := []openaiapi.ToolCall{
		{Index: &zero, ID: "call_1", Type: openaiapi.ToolTypeFunction, Function: openaiapi.FunctionCall{Name: "get_weather"}},
		{Index: &zero, Function: openaiapi.FunctionCall{Arguments: `{"city":`}},
		{Index: &zero, Function: openaiapi.FunctionCall{Arguments: `"nyc"}`}},
	}

	var pending []openaiapi.ToolCall
	for _, d := range deltas {
		pending = accumulateToolCall(pending, d)
	}

	if len(pending) != 1 {
		t.Fatalf("expected 1 accumulated tool call, got %d", len(pending))
	}
	if pending[0].ID != "call_1" {
		t.Errorf("expected call_1, got %s", pending[0].ID)
	}
	if pending[0].Function.Name != "get_weather" {
		t.Errorf("expected get_weather, got %s", pending[0].Function.Name)
	}
	if pending[0].Function.Arguments != `{"city":"nyc"}` {
		t.Errorf("unexpected assembled arguments: %s", pending[0].Function.Arguments)
	}
}

func TestOpenAILLMName(t *testing.T) {
	l := NewOpenAILLM("test-key", "")
	if l.Name() != "openai-llm" {
		t.Errorf("expected openai-llm, got %s", l.Name())
	}
	if !strings.Contains(l.model, "gpt-4o") {
		t.Errorf("expected default model to fall back to gpt-4o, got %s", l.model)
	}
}

func TestOpenAILLMStreamRejectsCancelledContext(t *testing.T) {
	l := NewOpenAILLM("test-key", "gpt-4o")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Stream(ctx, nil, nil, func(string) error { return nil }, nil)
	if err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
}
