package orchestrator

import (
	"encoding/base64"
	"encoding/json"
)

// InboundFrame is one client→server wire frame (§6.1). Payload fields are
// optional depending on type; unknown fields are ignored by json.Unmarshal.
type InboundFrame struct {
	Type      string `json:"type"`
	Audio     string `json:"audio,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// OutboundFrame is one server→client wire frame (§6.1).
type OutboundFrame struct {
	Event     string `json:"event"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Audio     string `json:"audio,omitempty"`
}

// RouteInbound decodes one client frame and dispatches it to the matching
// Session method (§4.11). Unknown types are logged and dropped, never
// fatal.
func (s *Session) RouteInbound(raw []byte) error {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return err
	}

	switch f.Type {
	case "speech_start":
		s.OnUserStartsSpeaking()
	case "speech_end":
		blob, err := base64.StdEncoding.DecodeString(f.Audio)
		if err != nil {
			s.logger.Warn("speech_end: invalid audio payload", "sessionID", s.ID, "error", err)
			return nil
		}
		return s.OnUserEndsSpeaking(blob)
	case "client_playback_started":
		s.mu.Lock()
		s.clientPlaybackActive = true
		s.mu.Unlock()
	case "client_playback_complete":
		s.mu.Lock()
		s.clientPlaybackActive = false
		s.playbackStatus = StatusIdle
		// This is the event responseInProgress (§3) is defined against:
		// the client's local audio queue has fully drained, so nothing more
		// is coming for the generation that was playing.
		s.responseInProgress = false
		s.mu.Unlock()
	default:
		s.logger.Warn("unknown inbound frame type", "sessionID", s.ID, "type", f.Type)
	}
	return nil
}

// EncodeOutbound serializes a session Event into its §6.1 wire frame.
func EncodeOutbound(ev Event) ([]byte, error) {
	out := OutboundFrame{Event: string(ev.Type), SessionID: ev.SessionID}

	switch ev.Type {
	case EvConnected:
		if m, ok := ev.Data.(map[string]string); ok {
			out.Message = m["message"]
			out.SessionID = m["session_id"]
		}
	case EvPlayAudio:
		if b, ok := ev.Data.([]byte); ok {
			out.Audio = base64.StdEncoding.EncodeToString(b)
		}
	case EvTranscript:
		if t, ok := ev.Data.(string); ok {
			out.Text = t
		}
	case EvAgentResponse:
		if t, ok := ev.Data.(string); ok {
			out.Text = t
		}
	case EvError:
		if m, ok := ev.Data.(map[string]string); ok {
			out.Message = m["message"]
		}
	case EvStopPlayback, EvPlaybackResume, EvPlaybackReset, EvInterrupted:
		// no payload beyond the event name
	}

	return json.Marshal(out)
}
