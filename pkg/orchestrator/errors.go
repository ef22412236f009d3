package orchestrator

import "errors"

// Sentinel errors, one per §7 logical error kind that needs a concrete Go
// value. TransientExternal, StateViolation, and Cancelled are represented
// this way; ProtocolViolation and Fatal are handled structurally (logged and
// dropped, or routed to Session.Close) rather than via a sentinel.
var (
	ErrEmptyTranscription  = errors.New("transcription returned empty text")
	ErrTranscriptionFailed = errors.New("speech-to-text transcription failed")
	ErrLLMFailed           = errors.New("language model generation failed")
	ErrTTSFailed           = errors.New("text-to-speech synthesis failed")
	ErrNilProvider         = errors.New("required provider is nil")
	ErrInvalidToolArgs     = errors.New("tool call arguments failed validation")
	ErrCancelled           = errors.New("operation cancelled cooperatively")
	ErrStateViolation      = errors.New("orchestrator invariant violated")
	ErrSessionClosed       = errors.New("session is closed")
)
