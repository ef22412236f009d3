package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockSTT returns a scripted transcript (or error) on every call. Tests that
// need different transcripts across calls swap mockSTT.transcript under
// mu between stages.
type mockSTT struct {
	mu         sync.Mutex
	transcript string
	err        error
}

func (m *mockSTT) Transcribe(ctx context.Context, audio []byte, lang Language) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcript, m.err
}

func (m *mockSTT) Name() string { return "mock-stt" }

func (m *mockSTT) setTranscript(s string) {
	m.mu.Lock()
	m.transcript = s
	m.mu.Unlock()
}

// scriptedLLM emits one token script per call to Stream, advancing through
// scripts in call order; calls beyond len(scripts) repeat the last one. An
// optional perTokenDelay lets a test observe an in-progress Streaming status
// before the run completes.
type scriptedLLM struct {
	mu            sync.Mutex
	scripts       [][]string
	calls         int
	perTokenDelay time.Duration
}

func (m *scriptedLLM) Stream(ctx context.Context, history []Message, tools []ToolSpec, onToken func(string) error, onToolCall func(ToolCall) (string, error)) error {
	m.mu.Lock()
	idx := m.calls
	if idx >= len(m.scripts) {
		idx = len(m.scripts) - 1
	}
	m.calls++
	script := m.scripts[idx]
	m.mu.Unlock()

	for _, tok := range script {
		if m.perTokenDelay > 0 {
			select {
			case <-time.After(m.perTokenDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func (m *scriptedLLM) Name() string { return "mock-llm" }

// mockTTS "synthesizes" a sentence by handing its own bytes back as the
// single audio chunk, and records every sentence it was asked to speak so
// tests can assert on what reached the TTS worker.
type mockTTS struct {
	mu          sync.Mutex
	synthesized []string
	aborts      int
}

func (m *mockTTS) Synthesize(ctx context.Context, text string, voice Voice, lang Language) ([]byte, error) {
	m.record(text)
	return []byte(text), nil
}

func (m *mockTTS) StreamSynthesize(ctx context.Context, text string, voice Voice, lang Language, onChunk func([]byte) error) error {
	m.record(text)
	return onChunk([]byte(text))
}

func (m *mockTTS) record(text string) {
	m.mu.Lock()
	m.synthesized = append(m.synthesized, text)
	m.mu.Unlock()
}

func (m *mockTTS) Abort() error {
	m.mu.Lock()
	m.aborts++
	m.mu.Unlock()
	return nil
}

func (m *mockTTS) Name() string { return "mock-tts" }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DebounceWindow = 10 * time.Millisecond
	cfg.MinBlobBytes = 4
	return cfg
}

func newTestSession(t *testing.T, stt STTProvider, llm LLMProvider, tts TTSProvider) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(ctx, stt, llm, tts, testConfig(), nil, nil)
	t.Cleanup(func() {
		s.Close()
		cancel()
	})
	return s
}

// waitForEvent drains s.Events() until it sees one of type t, or fails the
// test after timeout. Events of other types are discarded (most scenarios
// below only assert on one or two signals out of the full stream).
func waitForEvent(t *testing.T, s *Session, want EventType, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatalf("event channel closed before seeing %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", want)
		}
	}
}

func waitForAgentStatus(t *testing.T, s *Session, want AgentStatus, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		got := s.agentStatus
		s.mu.Unlock()
		if got == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for agentStatus=%s", want)
}

func waitForIdle(t *testing.T, s *Session, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.IsSystemIdle() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for system-idle")
}

// --- Scenario A: clean turn -------------------------------------------------

func TestScenarioA_CleanTurn(t *testing.T) {
	stt := &mockSTT{transcript: "what is the weather"}
	llm := &scriptedLLM{scripts: [][]string{{"It is", " sunny."}}}
	tts := &mockTTS{}

	s := newTestSession(t, stt, llm, tts)

	waitForEvent(t, s, EvConnected, time.Second)

	if err := s.OnUserEndsSpeaking([]byte("fake-audio-blob")); err != nil {
		t.Fatalf("OnUserEndsSpeaking: %v", err)
	}

	waitForEvent(t, s, EvTranscript, time.Second)
	waitForEvent(t, s, EvPlayAudio, time.Second)

	// The client acknowledges playback finishing; until it does,
	// responseInProgress and playbackStatus must keep the session non-idle.
	if err := s.RouteInbound([]byte(`{"type":"client_playback_complete"}`)); err != nil {
		t.Fatalf("RouteInbound client_playback_complete: %v", err)
	}
	waitForIdle(t, s, time.Second)

	s.mu.Lock()
	history := append([]Message{}, s.chatHistory...)
	s.mu.Unlock()

	if len(history) != 2 {
		t.Fatalf("expected 2 history turns, got %d: %+v", len(history), history)
	}
	if history[0].Role != "user" || history[0].Content != "what is the weather" {
		t.Errorf("unexpected user turn: %+v", history[0])
	}
	if history[1].Role != "agent" || history[1].Content != "It is sunny." {
		t.Errorf("unexpected agent turn: %+v", history[1])
	}
}

// --- Scenario B: real barge-in mid-streaming --------------------------------

func TestScenarioB_BargeInMidStreaming(t *testing.T) {
	stt := &mockSTT{transcript: "what is the weather"}
	llm := &scriptedLLM{
		perTokenDelay: 40 * time.Millisecond,
		scripts: [][]string{
			{"It ", "is ", "sunny."},
			{"Here's ", "a joke."},
		},
	}
	tts := &mockTTS{}

	s := newTestSession(t, stt, llm, tts)
	waitForEvent(t, s, EvConnected, time.Second)

	if err := s.OnUserEndsSpeaking([]byte("fake-audio-blob")); err != nil {
		t.Fatalf("OnUserEndsSpeaking: %v", err)
	}

	waitForAgentStatus(t, s, StatusStreaming, time.Second)

	s.OnUserStartsSpeaking()
	waitForEvent(t, s, EvStopPlayback, time.Second)

	stt.setTranscript("actually tell me a joke")
	if err := s.OnUserEndsSpeaking([]byte("fake-audio-blob-2")); err != nil {
		t.Fatalf("OnUserEndsSpeaking (2): %v", err)
	}

	waitForEvent(t, s, EvAgentResponse, 2*time.Second)
	waitForEvent(t, s, EvPlayAudio, time.Second)
	if err := s.RouteInbound([]byte(`{"type":"client_playback_complete"}`)); err != nil {
		t.Fatalf("RouteInbound client_playback_complete: %v", err)
	}
	waitForIdle(t, s, time.Second)

	s.mu.Lock()
	history := append([]Message{}, s.chatHistory...)
	s.mu.Unlock()

	if len(history) != 2 {
		t.Fatalf("expected 2 history turns (amended user + new agent), got %d: %+v", len(history), history)
	}
	wantUser := "what is the weather actually tell me a joke"
	if history[0].Role != "user" || history[0].Content != wantUser {
		t.Errorf("expected reconciled user turn %q, got %+v", wantUser, history[0])
	}
	if history[1].Role != "agent" || history[1].Content != "Here's a joke." {
		t.Errorf("expected the cancelled run's output absent and the new run's joke present, got %+v", history[1])
	}
}

// --- Table 1 (§4.4 step 6): false-alarm resolution --------------------------
//
// resolveFalseAlarmLocked is exercised directly against crafted state rather
// than through the full OnUserStartsSpeaking → OnUserEndsSpeaking path,
// because the Interruption Handler unconditionally clears the audio-output
// queue (§4.8 step 5) before any false alarm is classified; the only way the
// queue is non-empty by decision time is a TTS Worker chunk landing after
// that clear, which is a timing race, not something a table-driven test
// should depend on winning.
//
// newSession drains the connected event and returns with s.mu held, ready
// for resolveFalseAlarmLocked. For queued audio it pushes two chunks under
// the lock: the egress pump can take at most one before it blocks on s.mu,
// so the queue is still non-empty when the decision runs.
func TestResolveFalseAlarmTable1(t *testing.T) {
	newSession := func(playback PlaybackStatus, wasActive bool, queuedAudio bool) *Session {
		s := newTestSession(t, &mockSTT{}, &scriptedLLM{scripts: [][]string{{"unused"}}}, &mockTTS{})
		waitForEvent(t, s, EvConnected, time.Second)
		s.mu.Lock()
		s.playbackStatus = playback
		s.clientPlaybackWasActiveBeforeInterruption = wasActive
		if queuedAudio {
			_ = s.audioOutputQueue.Put(context.Background(), []byte("chunk"))
			_ = s.audioOutputQueue.Put(context.Background(), []byte("chunk"))
		}
		return s
	}

	t.Run("Paused, non-empty queue -> resume to Active", func(t *testing.T) {
		s := newSession(StatusPaused, false, true)
		s.resolveFalseAlarmLocked()
		waitForEvent(t, s, EvPlaybackResume, time.Second)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.playbackStatus != StatusActive || !s.clientPlaybackActive {
			t.Errorf("got playbackStatus=%s clientPlaybackActive=%v, want Active/true", s.playbackStatus, s.clientPlaybackActive)
		}
	})

	t.Run("Paused, empty queue -> resume to Idle, await client complete", func(t *testing.T) {
		s := newSession(StatusPaused, false, false)
		s.resolveFalseAlarmLocked()
		waitForEvent(t, s, EvPlaybackResume, time.Second)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.playbackStatus != StatusIdle || !s.clientPlaybackActive {
			t.Errorf("got playbackStatus=%s clientPlaybackActive=%v, want Idle/true", s.playbackStatus, s.clientPlaybackActive)
		}
	})

	t.Run("Idle, was active before -> resume, let client decide", func(t *testing.T) {
		s := newSession(StatusIdle, true, false)
		s.resolveFalseAlarmLocked()
		waitForEvent(t, s, EvPlaybackResume, time.Second)
	})

	t.Run("Idle, was not active, no pending user tail -> no egress", func(t *testing.T) {
		s := newSession(StatusIdle, false, false)
		s.resolveFalseAlarmLocked()
		select {
		case ev := <-s.Events():
			t.Fatalf("expected no egress, got %s", ev.Type)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("Active -> no egress, already resumed elsewhere", func(t *testing.T) {
		s := newSession(StatusActive, false, false)
		s.resolveFalseAlarmLocked()
		select {
		case ev := <-s.Events():
			t.Fatalf("expected no egress, got %s", ev.Type)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

// --- Scenario C/D: false alarm (backchannel) during playback, end-to-end ---

func TestScenarioC_BackchannelDuringPlaybackResumesWithoutNewTurn(t *testing.T) {
	stt := &mockSTT{transcript: "uh-huh"}
	llm := &scriptedLLM{scripts: [][]string{{"should not run"}}}
	tts := &mockTTS{}

	s := newTestSession(t, stt, llm, tts)
	waitForEvent(t, s, EvConnected, time.Second)

	s.mu.Lock()
	s.playbackStatus = StatusActive
	s.clientPlaybackActive = true
	s.mu.Unlock()

	s.OnUserStartsSpeaking()
	waitForEvent(t, s, EvStopPlayback, time.Second)

	s.mu.Lock()
	if s.playbackStatus != StatusPaused {
		t.Fatalf("expected playbackStatus=Paused after speech_start interrupts active playback, got %s", s.playbackStatus)
	}
	s.mu.Unlock()

	if err := s.OnUserEndsSpeaking([]byte("fake-audio-blob")); err != nil {
		t.Fatalf("OnUserEndsSpeaking: %v", err)
	}

	waitForEvent(t, s, EvPlaybackResume, time.Second)

	s.mu.Lock()
	playback := s.playbackStatus
	interruption := s.interruption
	historyLen := len(s.chatHistory)
	calls := llm.calls
	s.mu.Unlock()

	if playback == StatusPaused {
		t.Errorf("expected playback to resume out of Paused, still got %s", playback)
	}
	if interruption != InterruptionIdle {
		t.Errorf("expected interruption reset to Idle after false-alarm resolution, got %s", interruption)
	}
	if historyLen != 0 {
		t.Errorf("backchannel false alarm must not mutate chat history, got %d turns", historyLen)
	}
	if calls != 0 {
		t.Errorf("backchannel false alarm must not spawn a new agent run, got %d LLM calls", calls)
	}
}

// --- Scenario F: backchannel-shaped utterance while system idle ------------

func TestScenarioF_BackchannelWhileIdleIsARealTurn(t *testing.T) {
	stt := &mockSTT{transcript: "okay"}
	llm := &scriptedLLM{scripts: [][]string{{"Sounds good."}}}
	tts := &mockTTS{}

	s := newTestSession(t, stt, llm, tts)
	waitForEvent(t, s, EvConnected, time.Second)

	// is_system_idle() == true, so speech_start is a no-op (§4.8 step 2).
	s.OnUserStartsSpeaking()

	if err := s.OnUserEndsSpeaking([]byte("fake-audio-blob")); err != nil {
		t.Fatalf("OnUserEndsSpeaking: %v", err)
	}

	waitForEvent(t, s, EvAgentResponse, time.Second)
	waitForEvent(t, s, EvPlayAudio, time.Second)
	if err := s.RouteInbound([]byte(`{"type":"client_playback_complete"}`)); err != nil {
		t.Fatalf("RouteInbound client_playback_complete: %v", err)
	}
	waitForIdle(t, s, time.Second)

	s.mu.Lock()
	history := append([]Message{}, s.chatHistory...)
	s.mu.Unlock()

	if len(history) != 2 || history[0].Content != "okay" {
		t.Fatalf("backchannel-shaped utterance while idle must be treated as a real turn, got %+v", history)
	}
}

// --- Boundary: sub-threshold blob is silently dropped -----------------------

func TestSubThresholdBlobDropsWithoutHistoryMutation(t *testing.T) {
	stt := &mockSTT{transcript: "should never be reached"}
	llm := &scriptedLLM{scripts: [][]string{{"unused"}}}
	tts := &mockTTS{}

	s := newTestSession(t, stt, llm, tts)
	waitForEvent(t, s, EvConnected, time.Second)

	if err := s.OnUserEndsSpeaking([]byte("ab")); err != nil { // below MinBlobBytes=4
		t.Fatalf("OnUserEndsSpeaking: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	s.mu.Lock()
	historyLen := len(s.chatHistory)
	sttStatus := s.sttStatus
	s.mu.Unlock()

	if historyLen != 0 {
		t.Errorf("expected no history mutation for a sub-threshold blob, got %d turns", historyLen)
	}
	if sttStatus != StatusIdle {
		t.Errorf("expected sttStatus=Idle after dropping a sub-threshold blob, got %s", sttStatus)
	}
}

// --- Boundary: a second speech_start with no speech_end in between is a no-op

func TestDoubleSpeechStartIsNoOpWhenAlreadyInterrupted(t *testing.T) {
	stt := &mockSTT{transcript: "hello"}
	llm := &scriptedLLM{perTokenDelay: 40 * time.Millisecond, scripts: [][]string{{"hi ", "there"}}}
	tts := &mockTTS{}

	s := newTestSession(t, stt, llm, tts)
	waitForEvent(t, s, EvConnected, time.Second)

	if err := s.OnUserEndsSpeaking([]byte("fake-audio-blob")); err != nil {
		t.Fatalf("OnUserEndsSpeaking: %v", err)
	}
	waitForAgentStatus(t, s, StatusStreaming, time.Second)

	s.OnUserStartsSpeaking()
	waitForEvent(t, s, EvStopPlayback, time.Second)

	s.mu.Lock()
	wasActiveBefore := s.clientPlaybackWasActiveBeforeInterruption
	s.clientPlaybackWasActiveBeforeInterruption = true // sentinel value to detect a second overwrite
	s.mu.Unlock()

	s.OnUserStartsSpeaking() // already InterruptionActive: must be a no-op

	s.mu.Lock()
	stillSentinel := s.clientPlaybackWasActiveBeforeInterruption
	interruption := s.interruption
	s.mu.Unlock()

	if !stillSentinel {
		t.Error("a second speech_start while already interrupted must not re-run the handler's side effects")
	}
	if interruption != InterruptionActive {
		t.Errorf("expected interruption to remain Active, got %s", interruption)
	}
	_ = wasActiveBefore
}

// --- Tool cancellation (Scenario E) ------------------------------------------

func TestToolCancellationOnInterruption(t *testing.T) {
	stt := &mockSTT{transcript: "what's the weather in paris"}
	registered := make(chan struct{})
	released := make(chan struct{})

	llm := &toolCallingLLM{
		onRun: func(ctx context.Context, invoke func(ToolCall) (string, error)) []string {
			_, _ = invoke(ToolCall{ID: "T1", Name: "lookup_weather", Args: []byte(`{}`)})
			return []string{"done"}
		},
	}
	tts := &mockTTS{}

	s := newTestSession(t, stt, llm, tts)
	waitForEvent(t, s, EvConnected, time.Second)

	var signalOnce sync.Once
	s.RegisterTool(ToolSpec{Name: "lookup_weather"}, func(ctx context.Context, args []byte, cancelled func() bool) (string, error) {
		signalOnce.Do(func() { close(registered) })
		for !cancelled() {
			select {
			case <-ctx.Done():
				close(released)
				return "", ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
		}
		close(released)
		return "", ErrCancelled
	})

	if err := s.OnUserEndsSpeaking([]byte("fake-audio-blob")); err != nil {
		t.Fatalf("OnUserEndsSpeaking: %v", err)
	}

	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("tool never registered")
	}

	active := s.toolRegistry.Active()
	if len(active) != 1 || active[0].ToolName != "lookup_weather" {
		t.Fatalf("expected lookup_weather registered, got %+v", active)
	}

	s.OnUserStartsSpeaking()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("tool was not released within the grace window after cancel_all")
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for !s.toolRegistry.Empty() && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if !s.toolRegistry.Empty() {
		t.Fatalf("expected tool registry empty after cancellation, got %+v", s.toolRegistry.Active())
	}
}

// weatherArgs is a validated tool-args struct exercising the
// ToolSpec.NewArgs → invokeTool → ToolRegistry.ValidateArgs path.
type weatherArgs struct {
	City string `validate:"required"`
}

func TestInvokeToolRejectsInvalidArgs(t *testing.T) {
	var invokeResult string
	var invokeErr error

	llm := &toolCallingLLM{
		onRun: func(ctx context.Context, invoke func(ToolCall) (string, error)) []string {
			invokeResult, invokeErr = invoke(ToolCall{ID: "T1", Name: "lookup_weather", Args: []byte(`{}`)})
			return []string{"done"}
		},
	}
	stt := &mockSTT{transcript: "what's the weather"}
	tts := &mockTTS{}

	s := newTestSession(t, stt, llm, tts)
	waitForEvent(t, s, EvConnected, time.Second)

	var handlerCalled bool
	s.RegisterTool(ToolSpec{
		Name:    "lookup_weather",
		NewArgs: func() interface{} { return &weatherArgs{} },
	}, func(ctx context.Context, args []byte, cancelled func() bool) (string, error) {
		handlerCalled = true
		return "sunny", nil
	})

	if err := s.OnUserEndsSpeaking([]byte("fake-audio-blob")); err != nil {
		t.Fatalf("OnUserEndsSpeaking: %v", err)
	}
	waitForEvent(t, s, EvPlayAudio, time.Second)
	if err := s.RouteInbound([]byte(`{"type":"client_playback_complete"}`)); err != nil {
		t.Fatalf("RouteInbound client_playback_complete: %v", err)
	}
	waitForIdle(t, s, time.Second)

	if handlerCalled {
		t.Fatal("tool handler ran despite missing required arg")
	}
	if invokeErr == nil || !errors.Is(invokeErr, ErrInvalidToolArgs) {
		t.Fatalf("expected ErrInvalidToolArgs, got result=%q err=%v", invokeResult, invokeErr)
	}
}

func TestInvokeToolAcceptsValidArgs(t *testing.T) {
	var invokeResult string
	var invokeErr error

	llm := &toolCallingLLM{
		onRun: func(ctx context.Context, invoke func(ToolCall) (string, error)) []string {
			invokeResult, invokeErr = invoke(ToolCall{ID: "T1", Name: "lookup_weather", Args: []byte(`{"City":"Paris"}`)})
			return []string{"done"}
		},
	}
	stt := &mockSTT{transcript: "what's the weather in paris"}
	tts := &mockTTS{}

	s := newTestSession(t, stt, llm, tts)
	waitForEvent(t, s, EvConnected, time.Second)

	s.RegisterTool(ToolSpec{
		Name:    "lookup_weather",
		NewArgs: func() interface{} { return &weatherArgs{} },
	}, func(ctx context.Context, args []byte, cancelled func() bool) (string, error) {
		return "sunny", nil
	})

	if err := s.OnUserEndsSpeaking([]byte("fake-audio-blob")); err != nil {
		t.Fatalf("OnUserEndsSpeaking: %v", err)
	}
	waitForEvent(t, s, EvPlayAudio, time.Second)
	if err := s.RouteInbound([]byte(`{"type":"client_playback_complete"}`)); err != nil {
		t.Fatalf("RouteInbound client_playback_complete: %v", err)
	}
	waitForIdle(t, s, time.Second)

	if invokeErr != nil || invokeResult != "sunny" {
		t.Fatalf("expected sunny/nil, got result=%q err=%v", invokeResult, invokeErr)
	}
}

// toolCallingLLM invokes exactly one tool call via onRun, then finishes with
// whatever tokens onRun returns.
type toolCallingLLM struct {
	onRun func(ctx context.Context, invoke func(ToolCall) (string, error)) []string
}

func (m *toolCallingLLM) Stream(ctx context.Context, history []Message, tools []ToolSpec, onToken func(string) error, onToolCall func(ToolCall) (string, error)) error {
	for _, tok := range m.onRun(ctx, onToolCall) {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func (m *toolCallingLLM) Name() string { return "tool-calling-mock-llm" }
