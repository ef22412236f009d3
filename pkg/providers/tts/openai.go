package tts

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
)

// OpenAITTS synthesizes speech via go-openai's audio speech endpoint. The
// API returns the whole clip in one response rather than streaming chunks,
// so StreamSynthesize delivers it as a single onChunk call.
type OpenAITTS struct {
	client *openai.Client
	model  openai.SpeechModel
}

func NewOpenAITTS(apiKey string) *OpenAITTS {
	return &OpenAITTS{
		client: openai.NewClient(apiKey),
		model:  openai.TTSModel1,
	}
}

func (t *OpenAITTS) Synthesize(ctx context.Context, text string, voice orchestrator.Voice, lang orchestrator.Language) ([]byte, error) {
	resp, err := t.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: t.model,
		Input: text,
		Voice: mapVoice(voice),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	return io.ReadAll(resp)
}

func (t *OpenAITTS) StreamSynthesize(ctx context.Context, text string, voice orchestrator.Voice, lang orchestrator.Language, onChunk func([]byte) error) error {
	audio, err := t.Synthesize(ctx, text, voice, lang)
	if err != nil {
		return err
	}
	return onChunk(audio)
}

// Abort is a no-op: CreateSpeech is a single blocking HTTP round trip with
// no server-side session to tear down, unlike Lokutor's long-lived socket.
func (t *OpenAITTS) Abort() error { return nil }

func (t *OpenAITTS) Name() string { return "openai-tts" }

// mapVoice maps the shared Voice enum onto one of OpenAI's fixed voice
// names; the catalogs don't line up one-to-one, so this picks a reasonable
// representative per gender pairing rather than failing closed.
func mapVoice(v orchestrator.Voice) openai.SpeechVoice {
	switch v {
	case orchestrator.VoiceM1, orchestrator.VoiceM2, orchestrator.VoiceM3, orchestrator.VoiceM4, orchestrator.VoiceM5:
		return openai.VoiceOnyx
	default:
		return openai.VoiceNova
	}
}
