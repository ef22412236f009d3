package tts

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
)

func TestOpenAITTSName(t *testing.T) {
	tts := NewOpenAITTS("test-key")
	if tts.Name() != "openai-tts" {
		t.Errorf("expected openai-tts, got %s", tts.Name())
	}
}

func TestOpenAITTSAbortIsNoOp(t *testing.T) {
	tts := NewOpenAITTS("test-key")
	if err := tts.Abort(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMapVoice(t *testing.T) {
	if mapVoice(orchestrator.VoiceM2) != openai.VoiceOnyx {
		t.Error("expected male voices to map to onyx")
	}
	if mapVoice(orchestrator.VoiceF3) != openai.VoiceNova {
		t.Error("expected female voices to map to nova")
	}
}
