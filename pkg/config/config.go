// Package config loads process-level configuration for cmd/server using
// Viper, following the env-prefixed pattern in
// lookatitude-beluga-ai/config/config.go: defaults set first, then a
// best-effort config file, then environment variables override everything.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lokutor-ai/conversation-orchestrator/pkg/orchestrator"
)

// Config bundles the carrier-facing settings (listen address, provider
// selection, credentials) with the orchestrator's own §6.4 options.
type Config struct {
	ListenAddr           string `mapstructure:"listen_addr"`
	AllowInsecureOrigins bool   `mapstructure:"allow_insecure_origins"`

	STTProvider string `mapstructure:"stt_provider"`
	LLMProvider string `mapstructure:"llm_provider"`
	TTSProvider string `mapstructure:"tts_provider"`

	GroqAPIKey       string `mapstructure:"groq_api_key"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key"`
	GoogleAPIKey     string `mapstructure:"google_api_key"`
	DeepgramAPIKey   string `mapstructure:"deepgram_api_key"`
	AssemblyAIAPIKey string `mapstructure:"assemblyai_api_key"`
	LokutorAPIKey    string `mapstructure:"lokutor_api_key"`

	Orchestrator orchestrator.Config `mapstructure:"-"`
}

// Load reads configuration from environment variables (prefixed ORCH_),
// optional ./config.yaml, and falls back to DefaultConfig()'s values for
// anything unset. It never fails on a missing config file — only a
// malformed one.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("allow_insecure_origins", false)
	v.SetDefault("stt_provider", "groq")
	v.SetDefault("llm_provider", "groq")
	v.SetDefault("tts_provider", "lokutor")

	v.SetDefault("stt.min_blob_bytes", 5000)
	v.SetDefault("decision.debounce_ms", 50)
	v.SetDefault("queue.text_stream_cap", 50)
	v.SetDefault("queue.audio_output_cap", 20)
	v.SetDefault("queue.stt_job_cap", 8)
	v.SetDefault("llm.request_timeout_ms", 60000)
	v.SetDefault("tool.cancel_grace_ms", 2000)
	v.SetDefault("history.max_turns", 40)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/conversation-orchestrator/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindProviderKeyEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Orchestrator = orchestratorConfigFromViper(v)
	return cfg, nil
}

// bindProviderKeyEnvVars wires the provider API key fields to their
// conventional unprefixed environment variable names (GROQ_API_KEY, not
// ORCH_GROQ_API_KEY) since that is how every provider's own SDK/docs name
// them and how cmd/agent already reads them directly.
func bindProviderKeyEnvVars(v *viper.Viper) {
	_ = v.BindEnv("groq_api_key", "GROQ_API_KEY")
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("google_api_key", "GOOGLE_API_KEY")
	_ = v.BindEnv("deepgram_api_key", "DEEPGRAM_API_KEY")
	_ = v.BindEnv("assemblyai_api_key", "ASSEMBLYAI_API_KEY")
	_ = v.BindEnv("lokutor_api_key", "LOKUTOR_API_KEY")
}

// orchestratorConfigFromViper fills in the §6.4 enumerated options on top of
// orchestrator.DefaultConfig(), so unset keys keep the orchestrator
// package's own defaults rather than zero values.
func orchestratorConfigFromViper(v *viper.Viper) orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	cfg.MinBlobBytes = v.GetInt("stt.min_blob_bytes")
	cfg.DebounceWindow = time.Duration(v.GetInt("decision.debounce_ms")) * time.Millisecond
	cfg.TextStreamCap = v.GetInt("queue.text_stream_cap")
	cfg.AudioOutputCap = v.GetInt("queue.audio_output_cap")
	cfg.STTJobCap = v.GetInt("queue.stt_job_cap")
	cfg.LLMRequestTimeout = time.Duration(v.GetInt("llm.request_timeout_ms")) * time.Millisecond
	cfg.ToolCancelGrace = time.Duration(v.GetInt("tool.cancel_grace_ms")) * time.Millisecond
	cfg.MaxHistoryTurns = v.GetInt("history.max_turns")
	return cfg
}
