package orchestrator

import "context"

// Logger is the minimal structured-logging surface the orchestrator depends
// on. No example repo in the retrieval pack imports a structured logging
// library directly from its own source, so this interface (plus NoOpLogger)
// is the grounded default; callers wire in whatever logger they already use.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// STTProvider transcribes a complete post-utterance audio blob. No streaming
// is required by the core (§6.2); StreamingSTTProvider is an optional
// capability a provider may additionally implement.
type STTProvider interface {
	Transcribe(ctx context.Context, audio []byte, lang Language) (string, error)
	Name() string
}

type StreamingSTTProvider interface {
	STTProvider
	StreamTranscribe(ctx context.Context, lang Language, onTranscript func(transcript string, isFinal bool) error) (chan<- []byte, error)
}

// ToolSpec describes one callable tool as advertised to the LLM.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{} // JSON schema for arguments

	// NewArgs, if set, returns a fresh pointer to a struct with
	// validator/v10 tags. invokeTool decodes the tool call's raw JSON args
	// into it and runs ToolRegistry.ValidateArgs before the handler sees
	// them; a tool with no NewArgs gets its raw args unvalidated, same as
	// before this field existed.
	NewArgs func() interface{}
}

// ToolCall is one invocation the LLM requested mid-stream.
type ToolCall struct {
	ID   string
	Name string
	Args []byte // raw JSON
}

// LLMProvider streams tokens for a chat history, interleaving tool calls
// transparently: whenever the model requests a tool, the provider invokes
// onToolCall and feeds the returned result back into its own request loop
// before resuming token emission. The Agent Runner only ever sees linear
// text tokens (§4.5).
type LLMProvider interface {
	Stream(ctx context.Context, history []Message, tools []ToolSpec, onToken func(token string) error, onToolCall func(ToolCall) (string, error)) error
	Name() string
}

// TTSProvider synthesizes one sentence at a time; no streaming within a
// sentence is guaranteed by the contract, but StreamSynthesize allows a
// provider to push chunks as they become available. Abort cooperatively
// cancels any in-flight synthesis so the Interruption Handler can cut audio
// generation short without waiting for a context timeout.
type TTSProvider interface {
	Synthesize(ctx context.Context, text string, voice Voice, lang Language) ([]byte, error)
	StreamSynthesize(ctx context.Context, text string, voice Voice, lang Language, onChunk func([]byte) error) error
	Abort() error
	Name() string
}

// Voice and Language are opaque provider-facing selectors, kept from the
// teacher's catalog of Lokutor voices/languages.
type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceF2 Voice = "F2"
	VoiceF3 Voice = "F3"
	VoiceF4 Voice = "F4"
	VoiceF5 Voice = "F5"
	VoiceM1 Voice = "M1"
	VoiceM2 Voice = "M2"
	VoiceM3 Voice = "M3"
	VoiceM4 Voice = "M4"
	VoiceM5 Voice = "M5"
)

type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
)

// Message is one chat-history turn.
type Message struct {
	Role    string `json:"role"` // "user", "agent", or "system"
	Content string `json:"content"`
}
