package orchestrator

import (
	"strings"
	"time"
)

// runSTTWorker drains the STT-job queue (§4.3). It never cancels peer
// components; on failure it logs and restores Idle, leaving recovery to the
// next blob.
func (s *Session) runSTTWorker() {
	for {
		v, err := s.sttJobQueue.Get(s.ctx)
		if err != nil {
			return // context done: lifecycle teardown
		}
		blob, ok := v.([]byte)
		if !ok {
			continue
		}
		s.processSTTBlob(blob)
	}
}

func (s *Session) processSTTBlob(blob []byte) {
	if len(blob) < s.config.MinBlobBytes {
		// Likely silence: dropped, not appended (§4.3).
		return
	}

	s.mu.Lock()
	s.sttStatus = StatusProcessing
	s.sttStartTime = time.Now()
	lang := s.config.Language
	s.mu.Unlock()

	ctx, cancel := withTimeout(s.ctx, s.config.STTTimeout)
	defer cancel()

	transcript, err := s.stt.Transcribe(ctx, blob, lang)
	if err != nil {
		s.logger.Warn("stt transcription failed", "sessionID", s.ID, "error", err)
		s.mu.Lock()
		s.sttStatus = StatusIdle
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.sttStatus = StatusIdle
	s.sttEndTime = time.Now()
	s.rec.RecordSTT(s.sttEndTime.Sub(s.sttStartTime))

	trimmed := strings.TrimSpace(transcript)
	if trimmed != "" {
		s.sttOutputList = append(s.sttOutputList, trimmed)
		s.emitLocked(EvTranscript, trimmed)
	}

	shouldSpawn := !s.decisionTaskLive && trimmed != ""
	if shouldSpawn {
		s.decisionTaskLive = true
	}
	s.mu.Unlock()

	if shouldSpawn {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runDecisionTask()
		}()
	}
}

// emitLocked is emit() for call sites that already hold s.mu. It must not
// block or re-lock.
func (s *Session) emitLocked(t EventType, data interface{}) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	select {
	case s.events <- Event{Type: t, SessionID: s.ID, Data: data}:
	default:
	}
}
