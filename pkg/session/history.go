// Package session implements voice conversation orchestration: a state
// machine that sequences capture, transcription, reply generation, speech
// synthesis, and playback, for a single agent or a roster of personas taking
// turns in a meeting.
package session

import "sync"

// Speaker identifies who produced a turn.
type Speaker int

const (
	SpeakerUser Speaker = iota
	SpeakerPersona
)

func (s Speaker) String() string {
	switch s {
	case SpeakerUser:
		return "user"
	case SpeakerPersona:
		return "persona"
	default:
		return "unknown"
	}
}

// Turn is one exchange unit in the conversation. Immutable once recorded.
type Turn struct {
	Speaker     Speaker
	Participant string // display name of who spoke ("You" for the user)
	Text        string
}

// History is the bounded, append-only conversation record. Once the cap is
// exceeded the oldest turns are evicted; the retained tail keeps its
// original order. Safe for concurrent use.
type History struct {
	mu    sync.Mutex
	max   int
	turns []Turn
}

// NewHistory creates a history bounded to max turns.
func NewHistory(max int) *History {
	return &History{max: max}
}

// Append records a turn, evicting the oldest entries past the cap.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
	if len(h.turns) > h.max {
		h.turns = append(h.turns[:0:0], h.turns[len(h.turns)-h.max:]...)
	}
}

// Len returns the number of retained turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Recent returns the most recent n turns in order, fewer if the history is
// shorter.
func (h *History) Recent(n int) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > len(h.turns) {
		n = len(h.turns)
	}
	out := make([]Turn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

// All returns a copy of the retained turns in order.
func (h *History) All() []Turn {
	h.mu.Lock()
	n := len(h.turns)
	h.mu.Unlock()
	return h.Recent(n)
}
