// Command server exposes the orchestrator over the §6.1 websocket wire
// protocol: one Session per connection, client frames routed in via
// Session.RouteInbound, server events serialized out via
// orchestrator.EncodeOutbound.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/config"
	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
	llmProvider "github.com/lokutor-ai/conversation-orchestrator/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/conversation-orchestrator/pkg/providers/stt"
	ttsProvider "github.com/lokutor-ai/conversation-orchestrator/pkg/providers/tts"
	"github.com/lokutor-ai/conversation-orchestrator/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	rec, err := telemetry.New()
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	stt, llm, tts, err := buildProviders(cfg)
	if err != nil {
		log.Fatalf("providers: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleConn(w, r, stt, llm, tts, cfg, rec)
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streaming connections
	}

	go func() {
		log.Printf("conversation-orchestrator listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildProviders(cfg config.Config) (orchestrator.STTProvider, orchestrator.LLMProvider, orchestrator.TTSProvider, error) {
	var stt orchestrator.STTProvider
	switch cfg.STTProvider {
	case "openai":
		stt = sttProvider.NewOpenAISTT(cfg.OpenAIAPIKey, "whisper-1")
	case "deepgram":
		stt = sttProvider.NewDeepgramSTT(cfg.DeepgramAPIKey)
	case "assemblyai":
		stt = sttProvider.NewAssemblyAISTT(cfg.AssemblyAIAPIKey)
	default:
		stt = sttProvider.NewGroqSTT(cfg.GroqAPIKey, "")
	}

	var llm orchestrator.LLMProvider
	switch cfg.LLMProvider {
	case "openai":
		llm = llmProvider.NewOpenAILLM(cfg.OpenAIAPIKey, "gpt-4o")
	case "anthropic":
		llm = llmProvider.NewAnthropicLLM(cfg.AnthropicAPIKey, "claude-3-5-sonnet-20241022")
	case "google":
		g, err := llmProvider.NewGoogleLLM(context.Background(), cfg.GoogleAPIKey, "gemini-1.5-flash")
		if err != nil {
			return nil, nil, nil, err
		}
		llm = g
	default:
		llm = llmProvider.NewGroqLLM(cfg.GroqAPIKey, "llama-3.3-70b-versatile")
	}

	var tts orchestrator.TTSProvider
	switch cfg.TTSProvider {
	case "openai":
		tts = ttsProvider.NewOpenAITTS(cfg.OpenAIAPIKey)
	default:
		tts = ttsProvider.NewLokutorTTS(cfg.LokutorAPIKey)
	}

	return stt, llm, tts, nil
}

func handleConn(w http.ResponseWriter, r *http.Request, stt orchestrator.STTProvider, llm orchestrator.LLMProvider, tts orchestrator.TTSProvider, cfg config.Config, rec *telemetry.Recorder) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: cfg.AllowInsecureOrigins})
	if err != nil {
		log.Printf("websocket accept: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := orchestrator.NewSession(ctx, stt, llm, tts, cfg.Orchestrator, nil, rec)
	defer session.Close()

	go pumpOutbound(ctx, conn, session)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			cancel()
			conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		}
		if err := session.RouteInbound(data); err != nil {
			log.Printf("session %s: inbound frame error: %v", session.ID, err)
		}
	}
}

func pumpOutbound(ctx context.Context, conn *websocket.Conn, session *orchestrator.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-session.Events():
			if !ok {
				return
			}
			payload, err := orchestrator.EncodeOutbound(ev)
			if err != nil {
				log.Printf("session %s: encode outbound: %v", session.ID, err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
		}
	}
}
