package orchestrator

// runEgressPump drains the audio-output queue and emits play_audio frames to
// whatever carrier is attached (§4.7), tracking server-side playbackStatus
// as it does (§2's component table: Egress Pump "tracks server-side
// playback status"). It never sets clientPlaybackActive itself — that flag
// only transitions on the carrier's own client_playback_started/complete
// acknowledgements (§4.1, §6.1). On the end-of-utterance sentinel it stops
// changing playback state entirely: no frame is emitted and playbackStatus
// is left alone, since stop_playback carries pause-and-retain semantics
// (§6.1) that don't apply to a turn finishing normally — the client will
// report client_playback_complete on its own once its local queue drains.
func (s *Session) runEgressPump() {
	for {
		v, err := s.audioOutputQueue.Get(s.ctx)
		if err != nil {
			return
		}

		if IsSentinel(v) {
			continue
		}

		chunk, ok := v.([]byte)
		if !ok {
			continue
		}

		s.mu.Lock()
		s.playbackStatus = StatusActive
		s.mu.Unlock()

		s.emit(EvPlayAudio, chunk)
	}
}
