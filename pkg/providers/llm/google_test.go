package llm

import (
	"testing"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
)

func TestToGenaiContentsMapsAgentToModel(t *testing.T) {
	history := []orchestrator.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
		{Role: "agent", Content: "hello"},
	}
	contents := toGenaiContents(history)

	if len(contents) != 2 {
		t.Fatalf("expected system message dropped, got %d contents", len(contents))
	}
	if contents[0].Role != "user" {
		t.Errorf("expected user role, got %s", contents[0].Role)
	}
	if contents[1].Role != "model" {
		t.Errorf("expected agent mapped to model, got %s", contents[1].Role)
	}
}

func TestToGenaiConfigEmptyTools(t *testing.T) {
	if cfg := toGenaiConfig(nil); cfg != nil {
		t.Errorf("expected nil config for no tools, got %v", cfg)
	}
}

func TestToGenaiConfigBuildsFunctionDeclarations(t *testing.T) {
	cfg := toGenaiConfig([]orchestrator.ToolSpec{{Name: "lookup", Description: "look something up"}})
	if cfg == nil || len(cfg.Tools) != 1 {
		t.Fatalf("expected one tool group, got %v", cfg)
	}
	if len(cfg.Tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("expected one function declaration")
	}
	if cfg.Tools[0].FunctionDeclarations[0].Name != "lookup" {
		t.Errorf("expected lookup, got %s", cfg.Tools[0].FunctionDeclarations[0].Name)
	}
}
