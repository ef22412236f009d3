package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lokutor-ai/conversation-orchestrator/pkg/telemetry"
)

// EventType names one server-emitted, or internally observable, event.
type EventType string

const (
	EvConnected         EventType = "connected"
	EvPlayAudio         EventType = "play_audio"
	EvStopPlayback      EventType = "stop_playback"
	EvPlaybackResume    EventType = "playback_resume"
	EvPlaybackReset     EventType = "playback_reset"
	EvTranscript        EventType = "transcript"
	EvAgentResponse     EventType = "agent_response"
	EvError             EventType = "error"
	EvInterrupted       EventType = "interrupted" // internal, surfaced to carriers that want it
)

// Event is one item pushed onto a Session's outbound event channel; the
// Event Router serializes it into the §6.1 wire frame for whichever carrier
// is attached.
type Event struct {
	Type      EventType
	SessionID string
	Data      interface{}
}

// Session is one per-connection Orchestrator instance (§2–§3). All mutable
// state it owns is guarded by mu; components never reach into another
// component's state except where the spec explicitly allows it (the
// Interruption Handler forcing agentStatus back to Idle; the Decision Task
// resetting all statuses before a new run).
type Session struct {
	ID string

	mu sync.Mutex

	// Status Model (§4.1)
	sttStatus      SttStatus
	agentStatus    AgentStatus
	ttsStatus      TtsStatus
	playbackStatus PlaybackStatus
	interruption   InterruptionStatus

	clientPlaybackActive                      bool
	clientPlaybackWasActiveBeforeInterruption bool
	responseInProgress                        bool
	generationID                              int
	currentAudioGenerationTag                  int

	sttOutputList []string
	chatHistory   []Message

	agentCancelSignal bool

	decisionTaskLive bool
	agentRunnerLive  bool

	// Bounded Queues (§4.2)
	sttJobQueue      *Queue
	textStreamQueue  *Queue
	audioOutputQueue *Queue

	toolRegistry *ToolRegistry
	prompt       *PromptGenerator

	// Collaborators
	stt      STTProvider
	llm      LLMProvider
	tts      TTSProvider
	tools    []ToolSpec
	toolFn   map[string]ToolHandler
	toolArgs map[string]func() interface{}

	config Config
	logger Logger
	rec    *telemetry.Recorder

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once

	// per-turn instrumentation, mirrors the teacher's LatencyBreakdown
	userSpeechEndTime time.Time
	sttStartTime      time.Time
	sttEndTime        time.Time
	llmStartTime      time.Time
	llmEndTime        time.Time
	ttsStartTime      time.Time
	ttsFirstChunk     time.Time
	botSpeakStartTime time.Time
}

// ToolHandler is one registered tool body. It must poll cancelled
// periodically and return promptly once it observes true (§4.9); it is the
// caller's responsibility to register/unregister it with the Tool Registry,
// which the Agent Runner does on the handler's behalf (§4.5).
type ToolHandler func(ctx context.Context, args []byte, cancelled func() bool) (string, error)

// NewSession creates a Session and starts its STT/TTS/Egress workers, per
// the Session Lifecycle (§4.11). The caller owns ctx's lifetime; cancelling
// it (or calling Close) tears the session down.
func NewSession(ctx context.Context, stt STTProvider, llm LLMProvider, tts TTSProvider, cfg Config, logger Logger, rec *telemetry.Recorder) *Session {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if rec == nil {
		rec = telemetry.NoOp()
	}
	sctx, cancel := context.WithCancel(ctx)

	s := &Session{
		ID:             uuid.NewString(),
		sttStatus:      StatusIdle,
		agentStatus:    StatusIdle,
		ttsStatus:      StatusIdle,
		playbackStatus: StatusIdle,
		interruption:   InterruptionIdle,

		sttJobQueue:      NewQueue(cfg.STTJobCap),
		textStreamQueue:  NewQueue(cfg.TextStreamCap),
		audioOutputQueue: NewQueue(cfg.AudioOutputCap),

		toolRegistry: NewToolRegistry(),
		prompt:       NewPromptGenerator(cfg.BackchannelSet),

		stt:      stt,
		llm:      llm,
		tts:      tts,
		toolFn:   make(map[string]ToolHandler),
		toolArgs: make(map[string]func() interface{}),

		config: cfg,
		logger: logger,
		rec:    rec,

		events: make(chan Event, 1024),

		ctx:    sctx,
		cancel: cancel,
	}

	s.startWorkers()
	s.emit(EvConnected, map[string]string{"message": "session established", "session_id": s.ID})
	return s
}

// RegisterTool adds a callable tool to this session's catalog, advertised to
// the LLM on every subsequent Agent Runner invocation.
func (s *Session) RegisterTool(spec ToolSpec, fn ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, spec)
	s.toolFn[spec.Name] = fn
	if spec.NewArgs != nil {
		s.toolArgs[spec.Name] = spec.NewArgs
	}
}

// Events exposes the outbound event stream for a carrier to drain and
// serialize.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) emit(t EventType, data interface{}) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	select {
	case s.events <- Event{Type: t, SessionID: s.ID, Data: data}:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("event channel full, dropping event", "type", t)
	}
}

func (s *Session) startWorkers() {
	s.wg.Add(3)
	go func() { defer s.wg.Done(); s.runSTTWorker() }()
	go func() { defer s.wg.Done(); s.runTTSWorker() }()
	go func() { defer s.wg.Done(); s.runEgressPump() }()
}

// Close implements the Session Lifecycle teardown (§4.11): stop workers,
// cancel any live Agent Runner/Decision Task, cancel all tools, drain
// queues, release collaborators. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.agentCancelSignal = true
		s.mu.Unlock()

		s.toolRegistry.CancelAll()
		s.cancel()

		s.sttJobQueue.Clear()
		s.textStreamQueue.Clear()
		s.audioOutputQueue.Clear()

		s.wg.Wait()

		if closer, ok := s.tts.(interface{ Close() error }); ok {
			_ = closer.Close()
		}

		close(s.events)
	})
}
