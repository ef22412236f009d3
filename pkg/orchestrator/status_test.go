package orchestrator

import "testing"

func TestIsSystemIdle(t *testing.T) {
	s := &Session{
		sttStatus:      StatusIdle,
		agentStatus:    StatusIdle,
		ttsStatus:      StatusIdle,
		playbackStatus: StatusIdle,
	}
	if !s.IsSystemIdle() {
		t.Fatal("expected idle session to report system-idle")
	}

	s.agentStatus = StatusProcessing
	if s.IsSystemIdle() {
		t.Fatal("agentStatus=Processing must not be system-idle")
	}
	s.agentStatus = StatusIdle

	s.clientPlaybackActive = true
	if s.IsSystemIdle() {
		t.Fatal("clientPlaybackActive=true must not be system-idle")
	}
	s.clientPlaybackActive = false

	s.responseInProgress = true
	if s.IsSystemIdle() {
		t.Fatal("responseInProgress=true must not be system-idle")
	}
}
