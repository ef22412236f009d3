package llm

import (
	"testing"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
)

func TestAnthropicLLMName(t *testing.T) {
	l := NewAnthropicLLM("test-key", "")
	if l.Name() != "anthropic-llm" {
		t.Errorf("expected anthropic-llm, got %s", l.Name())
	}
}

func TestToAnthropicToolsEmpty(t *testing.T) {
	if tools := toAnthropicTools(nil); tools != nil {
		t.Errorf("expected nil for no tools, got %v", tools)
	}
}

func TestToAnthropicToolsMapsNameAndDescription(t *testing.T) {
	specs := []orchestrator.ToolSpec{
		{Name: "get_weather", Description: "fetch current weather", Schema: map[string]interface{}{"type": "object"}},
	}
	tools := toAnthropicTools(specs)
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].OfTool.Name != "get_weather" {
		t.Errorf("expected get_weather, got %s", tools[0].OfTool.Name)
	}
}
