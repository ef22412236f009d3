package orchestrator

import "time"

// runDecisionTask is the single-shot, debounced classifier of §4.4. At most
// one Decision Task is live per session (invariant 5); the STT worker only
// spawns one when decisionTaskLive is false, and this function clears the
// flag on every exit path.
func (s *Session) runDecisionTask() {
	defer func() {
		s.mu.Lock()
		s.decisionTaskLive = false
		s.mu.Unlock()
	}()

	select {
	case <-time.After(s.config.DebounceWindow):
	case <-s.ctx.Done():
		return
	}

	s.mu.Lock()

	// 1. Busy guard.
	if (s.agentStatus == StatusProcessing || s.agentStatus == StatusStreaming) && s.interruption != InterruptionActive {
		s.mu.Unlock()
		return
	}

	// 2. Merge transcripts.
	fragments := make([]string, len(s.sttOutputList))
	copy(fragments, s.sttOutputList)
	underInterruption := s.interruption == InterruptionProcessing || s.interruption == InterruptionActive
	utterance := s.prompt.Merge(fragments)

	// 3. Classify.
	isBackchannel := utterance != "" && underInterruption && s.prompt.IsBackchannel(utterance)
	isFalseAlarm := (utterance == "" && underInterruption) || isBackchannel

	if isFalseAlarm {
		s.resolveFalseAlarmLocked()
		return
	}

	// 4. History reconciliation + 5. new-input execution.
	s.chatHistory = s.prompt.Reconcile(s.chatHistory, utterance, underInterruption)
	s.chatHistory = truncateHistory(s.chatHistory, s.config.MaxHistoryTurns)

	s.sttOutputList = nil
	s.agentCancelSignal = true // safety: cancel anything still running
	s.audioOutputQueue.Clear()
	s.generationID++
	gen := s.generationID
	s.currentAudioGenerationTag = gen
	s.agentCancelSignal = false // the run about to start is not itself cancelled
	s.playbackStatus = StatusIdle
	s.agentStatus = StatusProcessing
	s.interruption = InterruptionIdle
	s.responseInProgress = true

	s.toolRegistry.ResetForNewTurn()

	historySnapshot := make([]Message, len(s.chatHistory))
	copy(historySnapshot, s.chatHistory)

	s.agentRunnerLive = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runAgentRunner(historySnapshot, gen)
	}()
}

// resolveFalseAlarmLocked implements §4.4 step 6 (Table 1). Caller holds
// s.mu and this returns with it released.
func (s *Session) resolveFalseAlarmLocked() {
	defer func() {
		s.interruption = InterruptionIdle
		s.clientPlaybackWasActiveBeforeInterruption = false
		s.sttOutputList = nil
		s.mu.Unlock()
	}()

	wasActive := s.clientPlaybackWasActiveBeforeInterruption
	hasQueuedAudio := s.audioOutputQueue.HasItems()

	switch s.playbackStatus {
	case StatusPaused:
		s.emitLocked(EvPlaybackResume, nil)
		if hasQueuedAudio {
			s.playbackStatus = StatusActive
			s.clientPlaybackActive = true
		} else {
			s.playbackStatus = StatusIdle
			s.clientPlaybackActive = true
		}
	case StatusIdle:
		if wasActive {
			s.emitLocked(EvPlaybackResume, nil)
			return
		}
		// Idle, was not active: if a pending user turn already sits at the
		// history tail (left there by a prior partial reconciliation),
		// proceed as if new-input with that tail.
		if len(s.chatHistory) > 0 && s.chatHistory[len(s.chatHistory)-1].Role == "user" {
			s.startNewInputRunLocked()
			return
		}
		// Otherwise the interrupted response is abandoned outright: no
		// audio was ever queued for it (playbackStatus never left Idle)
		// and none ever will be, so no client_playback_complete is coming
		// to clear responseInProgress — clear it here instead.
		s.responseInProgress = false
	case StatusActive:
		// Already resumed elsewhere; no egress.
	}
}

// startNewInputRunLocked repeats the tail of the new-input path (§4.4 step
// 5) for the "Idle, not active, pending user tail" false-alarm branch, so it
// can start a run without re-running classification; runDecisionTask keeps
// its own inline copy of that tail. Caller holds s.mu.
// This path emits playback_reset: the client may still be holding a paused
// queue from the interruption that just resolved, and the ordering
// guarantee in §5 requires playback_reset to precede the next play_audio
// whenever a fresh response starts this way.
func (s *Session) startNewInputRunLocked() {
	s.emitLocked(EvPlaybackReset, nil)
	s.agentCancelSignal = true
	s.audioOutputQueue.Clear()
	s.generationID++
	gen := s.generationID
	s.currentAudioGenerationTag = gen
	s.agentCancelSignal = false // the run about to start is not itself cancelled
	s.playbackStatus = StatusIdle
	s.agentStatus = StatusProcessing
	s.responseInProgress = true
	s.toolRegistry.ResetForNewTurn()

	historySnapshot := make([]Message, len(s.chatHistory))
	copy(historySnapshot, s.chatHistory)
	s.agentRunnerLive = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runAgentRunner(historySnapshot, gen)
	}()
}

// truncateHistory applies the oldest-first eviction noted in §9: when the
// cap is reached, drop from the front, but never split a role pair in a way
// that would violate invariant 6 (it won't, since entries are dropped
// wholesale from the oldest end).
func truncateHistory(history []Message, maxTurns int) []Message {
	if maxTurns <= 0 || len(history) <= maxTurns {
		return history
	}
	return append([]Message{}, history[len(history)-maxTurns:]...)
}
