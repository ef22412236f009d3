// Command agent is a local full-duplex demo carrier: it owns the
// microphone/speaker via malgo, runs its own VAD and echo suppression, and
// drives a single orchestrator Session exactly as a networked client would
// drive one over the wire protocol — just without the wire.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/echosuppress"
	"github.com/lokutor-ai/conversation-orchestrator/pkg/localvad"
	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
	llmProvider "github.com/lokutor-ai/conversation-orchestrator/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/conversation-orchestrator/pkg/providers/stt"
	ttsProvider "github.com/lokutor-ai/conversation-orchestrator/pkg/providers/tts"
)

const sampleRate = 44100

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using system environment variables")
	}

	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	googleKey := os.Getenv("GOOGLE_API_KEY")
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	assemblyKey := os.Getenv("ASSEMBLYAI_API_KEY")
	lokutorKey := os.Getenv("LOKUTOR_API_KEY")

	sttProviderName := envOr("STT_PROVIDER", "groq")
	llmProviderName := envOr("LLM_PROVIDER", "groq")

	lang := orchestrator.Language(envOr("AGENT_LANGUAGE", string(orchestrator.LanguageEn)))

	if lokutorKey == "" {
		log.Fatal("error: LOKUTOR_API_KEY must be set")
	}

	var stt orchestrator.STTProvider
	switch sttProviderName {
	case "openai":
		requireKey("OPENAI_API_KEY", openaiKey)
		stt = sttProvider.NewOpenAISTT(openaiKey, "whisper-1")
	case "deepgram":
		requireKey("DEEPGRAM_API_KEY", deepgramKey)
		stt = sttProvider.NewDeepgramSTT(deepgramKey)
	case "assemblyai":
		requireKey("ASSEMBLYAI_API_KEY", assemblyKey)
		stt = sttProvider.NewAssemblyAISTT(assemblyKey)
	default:
		requireKey("GROQ_API_KEY", groqKey)
		stt = sttProvider.NewGroqSTT(groqKey, envOr("GROQ_STT_MODEL", ""))
	}
	if s, ok := stt.(interface{ SetSampleRate(int) }); ok {
		s.SetSampleRate(sampleRate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var llm orchestrator.LLMProvider
	switch llmProviderName {
	case "openai":
		requireKey("OPENAI_API_KEY", openaiKey)
		llm = llmProvider.NewOpenAILLM(openaiKey, "gpt-4o")
	case "anthropic":
		requireKey("ANTHROPIC_API_KEY", anthropicKey)
		llm = llmProvider.NewAnthropicLLM(anthropicKey, "claude-3-5-sonnet-20241022")
	case "google":
		requireKey("GOOGLE_API_KEY", googleKey)
		g, err := llmProvider.NewGoogleLLM(ctx, googleKey, "gemini-1.5-flash")
		if err != nil {
			log.Fatalf("failed to initialize google llm: %v", err)
		}
		llm = g
	default:
		requireKey("GROQ_API_KEY", groqKey)
		llm = llmProvider.NewGroqLLM(groqKey, "llama-3.3-70b-versatile")
	}

	tts := ttsProvider.NewLokutorTTS(lokutorKey)

	fmt.Printf("Configured: STT=%s | LLM=%s | TTS=lokutor | Language=%s\n", sttProviderName, llmProviderName, lang)
	fmt.Println("Voice agent started, listening to the microphone. Press Ctrl+C to exit.")

	config := orchestrator.DefaultConfig()
	config.Language = lang
	config.SampleRate = sampleRate

	session := orchestrator.NewSession(ctx, stt, llm, tts, config, nil, nil)
	defer session.Close()

	vad := localvad.NewRMSVAD(0.02, 500*time.Millisecond)
	suppressor := echosuppress.New()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	var playbackMu sync.Mutex
	var playbackBytes []byte

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			cleaned := suppressor.RemoveEchoRealtime(pInput)
			ev, err := vad.Process(cleaned)
			if err == nil && ev != nil {
				switch ev.Type {
				case localvad.SpeechStart:
					session.OnUserStartsSpeaking()
				case localvad.SpeechEnd:
					blob := make([]byte, len(cleaned))
					copy(blob, cleaned)
					_ = session.OnUserEndsSpeaking(blob)
				}
			}
		}
		if pOutput != nil {
			playbackMu.Lock()
			n := copy(pOutput, playbackBytes)
			playbackBytes = playbackBytes[n:]
			playbackMu.Unlock()
			if n > 0 {
				suppressor.RecordPlayedAudio(pOutput[:n])
			}
			for i := n; i < len(pOutput); i++ {
				pOutput[i] = 0
			}
		}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	go func() {
		for event := range session.Events() {
			switch event.Type {
			case orchestrator.EvTranscript:
				fmt.Printf("\r\033[K[transcript] %s\n", event.Data)
			case orchestrator.EvAgentResponse:
				fmt.Printf("\r\033[K[agent] %s\n", event.Data)
			case orchestrator.EvPlayAudio:
				chunk := event.Data.([]byte)
				playbackMu.Lock()
				playbackBytes = append(playbackBytes, chunk...)
				playbackMu.Unlock()
			case orchestrator.EvStopPlayback:
				fmt.Printf("\r\033[K[interrupted] pausing playback\n")
				playbackMu.Lock()
				playbackBytes = nil
				playbackMu.Unlock()
			case orchestrator.EvError:
				fmt.Printf("\r\033[K[error] %v\n", event.Data)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("\nShutting down...")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireKey(name, value string) {
	if value == "" {
		log.Fatalf("error: %s must be set", name)
	}
}
