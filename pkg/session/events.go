package session

import "fmt"

// Phase is the externally visible session state.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseTranscribing
	PhaseReasoning
	PhaseSpeaking
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListening:
		return "listening"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseReasoning:
		return "reasoning"
	case PhaseSpeaking:
		return "speaking"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int32(p))
	}
}

// Status is a phase change with its user-facing label.
type Status struct {
	Phase Phase
	Label string
}

// Listener receives session events for rendering: status changes, appended
// turns, and per-persona active highlights. Callbacks fire from the session
// goroutine and should return quickly.
type Listener interface {
	OnStatus(s Status)
	OnTurn(t Turn)
	OnSpeaking(personaID string, active bool)
}

// NopListener discards all events.
type NopListener struct{}

func (NopListener) OnStatus(Status)         {}
func (NopListener) OnTurn(Turn)             {}
func (NopListener) OnSpeaking(string, bool) {}
