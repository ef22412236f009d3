package orchestrator

// StageStatus is the shared enum backing all four stage statuses. Not every
// value is legal for every stage; the per-stage names below are aliases of
// this one type, so the legal set noted on each is not enforced by the
// compiler.
type StageStatus string

const (
	StatusIdle       StageStatus = "idle"
	StatusProcessing StageStatus = "processing"
	StatusStreaming  StageStatus = "streaming"
	StatusActive     StageStatus = "active"
	StatusPaused     StageStatus = "paused"
)

// SttStatus legal values: Idle, Processing.
type SttStatus = StageStatus

// AgentStatus legal values: Idle, Processing, Streaming.
type AgentStatus = StageStatus

// TtsStatus legal values: Idle, Processing, Streaming.
type TtsStatus = StageStatus

// PlaybackStatus legal values: Idle, Active, Paused.
type PlaybackStatus = StageStatus

// InterruptionStatus is its own enum (Idle/Processing/Active); it acts as a
// soft lock coordinating the Decision Task (§3).
type InterruptionStatus string

const (
	InterruptionIdle       InterruptionStatus = "idle"
	InterruptionProcessing InterruptionStatus = "processing"
	InterruptionActive     InterruptionStatus = "active"
)

// isSystemIdleLocked implements §4.1's pure predicate. Callers MUST already
// hold s.mu — this never takes the lock itself so it can be composed inside
// larger locked sections without double-locking.
func (s *Session) isSystemIdleLocked() bool {
	return s.sttStatus == StatusIdle &&
		s.agentStatus == StatusIdle &&
		s.ttsStatus == StatusIdle &&
		s.playbackStatus == StatusIdle &&
		!s.clientPlaybackActive &&
		!s.responseInProgress
}

// IsSystemIdle is the lock-guarded public form of the §4.1 predicate.
func (s *Session) IsSystemIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSystemIdleLocked()
}
