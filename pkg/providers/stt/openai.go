package stt

import (
	"bytes"
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/audio"
	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
)

// OpenAISTT wraps go-openai's audio transcription endpoint instead of a
// hand-rolled HTTP request; the rest of this package's providers still build
// their requests by hand (no SDK exists for Groq/Deepgram/AssemblyAI in the
// pack).
type OpenAISTT struct {
	client     *openai.Client
	model      string
	sampleRate int
}

func NewOpenAISTT(apiKey string, model string) *OpenAISTT {
	if model == "" {
		model = string(openai.Whisper1)
	}
	return &OpenAISTT{
		client:     openai.NewClient(apiKey),
		model:      model,
		sampleRate: 44100,
	}
}

func (s *OpenAISTT) SetSampleRate(rate int) {
	s.sampleRate = rate
}

func (s *OpenAISTT) Name() string {
	return "openai-stt"
}

func (s *OpenAISTT) Transcribe(ctx context.Context, audioPCM []byte, lang orchestrator.Language) (string, error) {
	wavData := audio.NewWavBuffer(audioPCM, s.sampleRate)

	req := openai.AudioRequest{
		Model:    s.model,
		Reader:   bytes.NewReader(wavData),
		FilePath: "audio.wav",
	}
	if lang != "" {
		req.Language = string(lang)
	}

	resp, err := s.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
