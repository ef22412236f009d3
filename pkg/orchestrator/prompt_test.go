package orchestrator

import (
	"reflect"
	"testing"
)

func defaultTestPrompt() *PromptGenerator {
	set := make(map[string]bool, len(defaultBackchannels))
	for _, b := range defaultBackchannels {
		set[b] = true
	}
	return NewPromptGenerator(set)
}

func TestPromptMergeCollapsesWhitespace(t *testing.T) {
	p := defaultTestPrompt()
	got := p.Merge([]string{"what  is", " the weather  "})
	want := "what is the weather"
	if got != want {
		t.Errorf("Merge() = %q, want %q", got, want)
	}
}

func TestPromptIsBackchannel(t *testing.T) {
	p := defaultTestPrompt()
	cases := []struct {
		utterance string
		want      bool
	}{
		{"uh-huh", true},
		{"Mm-Hmm", true},
		{"  okay  ", true},
		{"yeah right", true}, // <=2 tokens, contains a backchannel substring
		{"actually tell me a joke", false},
		{"", false},
		{"sure thing boss", false}, // 3 tokens, not an exact member
	}
	for _, c := range cases {
		if got := p.IsBackchannel(c.utterance); got != c.want {
			t.Errorf("IsBackchannel(%q) = %v, want %v", c.utterance, got, c.want)
		}
	}
}

func TestPromptReconcileNotUnderInterruption(t *testing.T) {
	p := defaultTestPrompt()
	history := []Message{{Role: "agent", Content: "hello"}}
	got := p.Reconcile(history, "what is the weather", false)
	want := []Message{
		{Role: "agent", Content: "hello"},
		{Role: "user", Content: "what is the weather"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reconcile() = %+v, want %+v", got, want)
	}
}

func TestPromptReconcileDropsInFlightAgentTurn(t *testing.T) {
	// Scenario B: the cancelled agent run never appended its turn, so the
	// history tail here is the user's original question; reconciliation
	// under interruption amends it in place.
	p := defaultTestPrompt()
	history := []Message{{Role: "user", Content: "what is the weather"}}
	got := p.Reconcile(history, "actually tell me a joke", true)
	want := []Message{{Role: "user", Content: "what is the weather actually tell me a joke"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reconcile() = %+v, want %+v", got, want)
	}
}

func TestPromptReconcileDropsStaleAgentTurnWhenPresent(t *testing.T) {
	p := defaultTestPrompt()
	history := []Message{
		{Role: "user", Content: "what is the weather"},
		{Role: "agent", Content: "it is"},
	}
	got := p.Reconcile(history, "actually tell me a joke", true)
	want := []Message{{Role: "user", Content: "what is the weather actually tell me a joke"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reconcile() = %+v, want %+v", got, want)
	}
}

func TestPromptReconcileAppendsNewUserTurnWhenNoneAtTail(t *testing.T) {
	p := defaultTestPrompt()
	history := []Message{{Role: "agent", Content: "it is sunny"}}
	got := p.Reconcile(history, "tell me a joke", true)
	want := []Message{{Role: "user", Content: "tell me a joke"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reconcile() = %+v, want %+v", got, want)
	}
}
