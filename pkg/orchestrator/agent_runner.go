package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// sentenceTerminators are the characters that close a sentence batch for TTS
// handoff (§4.5).
const sentenceTerminators = ".!?\n"

// runAgentRunner drives one LLM turn: streams tokens, batches them into
// sentences for the TTS worker, and interleaves tool calls through the Tool
// Registry. gen is the generation this run was spawned under; every
// side-effecting step re-checks it against the session's current
// generationID so a stale runner (superseded by a barge-in) discards its
// own output instead of racing a newer one (§4.5 staleness rule).
func (s *Session) runAgentRunner(history []Message, gen int) {
	defer func() {
		s.mu.Lock()
		s.agentRunnerLive = false
		// responseInProgress persists past the LLM stream finishing — it
		// only clears once the client reports playback_complete for this
		// generation (§3), or the Decision Task abandons the response
		// outright with nothing left to play (decision_task.go). Clearing
		// it here, before TTS has even synthesized the tail sentences,
		// would let is_system_idle() go true while audio is still in
		// flight to the client.
		if s.generationID == gen && s.agentStatus != StatusIdle {
			s.agentStatus = StatusIdle
		}
		s.mu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.mu.Lock()
	s.llmStartTime = time.Now()
	s.agentStatus = StatusStreaming
	tools := append([]ToolSpec{}, s.tools...)
	s.mu.Unlock()

	var sentence strings.Builder
	var full strings.Builder
	sawAnyText := false
	cancelledMidStream := false

	onToken := func(token string) error {
		if s.isStaleOrCancelled(gen) {
			cancelledMidStream = true
			cancel()
			return ErrCancelled
		}
		sentence.WriteString(token)
		full.WriteString(token)
		sawAnyText = true

		if strings.ContainsAny(token, sentenceTerminators) {
			chunk := strings.TrimSpace(sentence.String())
			sentence.Reset()
			if chunk != "" {
				if err := s.textStreamQueue.Put(runCtx, chunk); err != nil {
					return err
				}
			}
		}
		return nil
	}

	onToolCall := func(tc ToolCall) (string, error) {
		return s.invokeTool(runCtx, tc, gen)
	}

	err := s.llm.Stream(runCtx, history, tools, onToken, onToolCall)

	s.mu.Lock()
	s.llmEndTime = time.Now()
	s.rec.RecordLLM(s.llmEndTime.Sub(s.llmStartTime))
	stale := s.generationID != gen
	s.mu.Unlock()

	// §4.5: cooperative cancellation stops everything short — no sentinel
	// push, no history append — independent of whether generationID has
	// advanced yet. This is stricter than (and takes priority over) the
	// staleness check below, which only governs a run that completed
	// naturally but was superseded before it got to append.
	if cancelledMidStream || err == ErrCancelled {
		return
	}

	if stale {
		return
	}

	if err != nil {
		s.logger.Warn("llm stream failed", "sessionID", s.ID, "error", err)
		s.emit(EvError, map[string]string{"kind": "llm_failed", "message": err.Error()})
	}

	if trailing := strings.TrimSpace(sentence.String()); trailing != "" {
		_ = s.textStreamQueue.Put(runCtx, trailing)
	}
	_ = s.textStreamQueue.Put(s.ctx, Sentinel)

	if sawAnyText {
		response := strings.TrimSpace(full.String())
		if response != "" {
			s.mu.Lock()
			if s.generationID == gen {
				s.chatHistory = append(s.chatHistory, Message{Role: "agent", Content: response})
				s.emitLocked(EvAgentResponse, response)
			}
			s.mu.Unlock()
		}
	}
}

// isStaleOrCancelled reports whether this run should stop producing output:
// either a newer generation has started, or the cooperative cancel signal
// has been raised for this one.
func (s *Session) isStaleOrCancelled(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generationID != gen || s.agentCancelSignal
}

// invokeTool looks up a registered tool handler, validates arguments,
// registers the execution with the Tool Registry for cooperative
// cancellation, and runs it synchronously — the LLMProvider contract calls
// onToolCall and blocks its own request loop on the result (§4.5, §4.9).
func (s *Session) invokeTool(ctx context.Context, tc ToolCall, gen int) (string, error) {
	s.mu.Lock()
	fn, ok := s.toolFn[tc.Name]
	newArgs := s.toolArgs[tc.Name]
	s.mu.Unlock()
	if !ok {
		return "", ErrNilProvider
	}

	// Validate before any side effect, including registration, if the tool
	// advertised a validated args struct (§4.9's "before any observable
	// side effect" applies to the tool body, not to schema rejection).
	if newArgs != nil {
		decoded := newArgs()
		if err := json.Unmarshal(tc.Args, decoded); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToolArgs, err)
		}
		if err := s.toolRegistry.ValidateArgs(decoded); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToolArgs, err)
		}
	}

	var cancelled bool
	toolCtx, toolCancel := context.WithCancel(ctx)
	defer toolCancel()

	id := s.toolRegistry.Register(tc.Name, func() {
		cancelled = true
		toolCancel()
	}, map[string]interface{}{"call_id": tc.ID})
	defer s.toolRegistry.Unregister(id)

	isCancelled := func() bool {
		return cancelled || s.isStaleOrCancelled(gen)
	}

	result, err := fn(toolCtx, tc.Args, isCancelled)
	if err != nil {
		return "", err
	}
	return result, nil
}

// marshalToolResult is a small convenience for tool handlers that want to
// return a structured result; the Agent Runner itself only ever sees the
// raw string the handler produces.
func marshalToolResult(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
