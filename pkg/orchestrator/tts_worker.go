package orchestrator

import "time"

// runTTSWorker drains the text-stream queue and synthesizes each sentence in
// turn (§4.6). A synthesis failure is logged and skipped — it never aborts
// the worker loop, since later sentences in the same turn are independent.
func (s *Session) runTTSWorker() {
	for {
		v, err := s.textStreamQueue.Get(s.ctx)
		if err != nil {
			return
		}

		if IsSentinel(v) {
			_ = s.audioOutputQueue.Put(s.ctx, Sentinel)
			continue
		}

		sentence, ok := v.(string)
		if !ok || sentence == "" {
			continue
		}
		s.synthesizeSentence(sentence)
	}
}

func (s *Session) synthesizeSentence(sentence string) {
	s.mu.Lock()
	s.ttsStatus = StatusProcessing
	s.ttsStartTime = time.Now()
	voice := s.config.VoiceStyle
	lang := s.config.Language
	s.mu.Unlock()

	ctx, cancel := withTimeout(s.ctx, s.config.TTSTimeout)
	defer cancel()

	err := s.tts.StreamSynthesize(ctx, sentence, voice, lang, func(chunk []byte) error {
		s.mu.Lock()
		if s.ttsFirstChunk.IsZero() {
			s.ttsFirstChunk = time.Now()
		}
		s.mu.Unlock()
		return s.audioOutputQueue.Put(s.ctx, chunk)
	})

	s.mu.Lock()
	s.ttsStatus = StatusIdle
	s.rec.RecordTTS(time.Since(s.ttsStartTime))
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("tts synthesis failed", "sessionID", s.ID, "error", err)
	}
}
