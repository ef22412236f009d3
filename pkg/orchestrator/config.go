package orchestrator

import "time"

// Config bundles the enumerated options from spec §6.4 plus the teacher's
// original provider-facing defaults (sample rate, voice, language, context
// size). Loaded and defaulted via pkg/config's viper-backed loader in
// real deployments; DefaultConfig is what every test and demo uses directly.
type Config struct {
	SampleRate   int
	Channels     int
	BytesPerSamp int

	// STT
	MinBlobBytes int // stt.min_blob_bytes

	// Decision Task
	DebounceWindow time.Duration // decision.debounce_ms

	// Queues
	TextStreamCap int // queue.text_stream_cap
	AudioOutputCap int // queue.audio_output_cap
	STTJobCap     int // queue.stt_job_cap

	// Prompt Generator
	BackchannelSet map[string]bool // backchannel.set

	// External call timeouts
	LLMRequestTimeout time.Duration // llm.request_timeout_ms
	STTTimeout        time.Duration
	TTSTimeout        time.Duration

	// Tool Registry
	ToolCancelGrace time.Duration // tool.cancel_grace_ms

	// Provider defaults
	VoiceStyle Voice
	Language   Language

	// History management (§9 open design note — implemented here).
	MaxHistoryTurns int

	// Secondary streaming-STT interrupt threshold (teacher's
	// MinWordsToInterrupt). Nothing in this module reads it: neither the
	// Interruption Handler nor any provider consults it.
	MinWordsToInterrupt int
}

var defaultBackchannels = []string{
	"uh-huh", "uhuh", "uh huh", "mm-hmm", "mmhmm", "mm hmm",
	"yeah", "yep", "yup", "okay", "ok", "k", "right", "sure",
	"got it", "i see", "go ahead",
}

// DefaultConfig returns sensible defaults matching spec §6.4 and the
// teacher's original audio defaults.
func DefaultConfig() Config {
	set := make(map[string]bool, len(defaultBackchannels))
	for _, b := range defaultBackchannels {
		set[b] = true
	}
	return Config{
		SampleRate:   44100,
		Channels:     1,
		BytesPerSamp: 2,

		MinBlobBytes: 5000,

		DebounceWindow: 50 * time.Millisecond,

		TextStreamCap:  50,
		AudioOutputCap: 20,
		STTJobCap:      8,

		BackchannelSet: set,

		LLMRequestTimeout: 60 * time.Second,
		STTTimeout:        30 * time.Second,
		TTSTimeout:        30 * time.Second,

		ToolCancelGrace: 2 * time.Second,

		VoiceStyle: VoiceF1,
		Language:   LanguageEn,

		MaxHistoryTurns: 40,

		MinWordsToInterrupt: 1,
	}
}
