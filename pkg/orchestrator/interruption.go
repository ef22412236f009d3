package orchestrator

// OnUserStartsSpeaking implements the Interruption Handler's forward path
// (§4.8): on a speech_start event from the carrier, tear down whatever the
// bot is currently doing so the new utterance is not talked over.
func (s *Session) OnUserStartsSpeaking() {
	s.mu.Lock()

	s.logger.Debug("speech_start",
		"sttStatus", s.sttStatus, "agentStatus", s.agentStatus,
		"ttsStatus", s.ttsStatus, "playbackStatus", s.playbackStatus,
		"interruption", s.interruption)

	if s.isSystemIdleLocked() {
		s.mu.Unlock()
		return
	}

	// A second speech_start before the pending speech_end is resolved is a
	// no-op: the interruption it would start is already in effect.
	if s.interruption == InterruptionActive {
		s.mu.Unlock()
		return
	}

	s.clientPlaybackWasActiveBeforeInterruption = s.clientPlaybackActive
	s.emitLocked(EvStopPlayback, nil)

	s.audioOutputQueue.Clear()
	s.textStreamQueue.Clear()

	if s.agentStatus == StatusProcessing || s.agentStatus == StatusStreaming {
		s.agentCancelSignal = true
	}

	s.mu.Unlock()

	if err := s.tts.Abort(); err != nil {
		s.logger.Warn("tts abort failed", "sessionID", s.ID, "error", err)
	}
	s.toolRegistry.CancelAll()

	s.mu.Lock()
	s.sttOutputList = nil
	s.sttJobQueue.Clear()

	s.playbackStatus = StatusPaused
	s.clientPlaybackActive = false
	s.interruption = InterruptionActive
	s.mu.Unlock()
}

// OnUserEndsSpeaking implements §4.8's trailing half: hand the finished
// utterance blob to the STT worker. The STT worker → Decision Task path
// takes it from there.
func (s *Session) OnUserEndsSpeaking(audioBlob []byte) error {
	return s.sttJobQueue.Put(s.ctx, audioBlob)
}
