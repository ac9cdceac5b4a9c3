package session

import (
	"math/rand"
	"time"

	"github.com/parleyvoice/parley/pkg/ai/llm"
)

// ContextWindow is how many recent turns are sent as reply context.
const ContextWindow = 10

// meetingDirective is appended to every persona's instructions in meeting
// mode so later speakers engage with earlier ones instead of restating them.
const meetingDirective = "\n\nIMPORTANT: You are in a meeting with other participants. " +
	"Previous responses from your colleagues are shown above. Build on what they said, " +
	"reference their points, agree or politely disagree, and add your own perspective. " +
	"Don't just repeat what others said - contribute something new from your unique " +
	"role perspective."

// Policy decides which personas reply to a transcript and what context each
// one receives. A solo policy has one implicit persona that always replies; a
// meeting policy either has the whole roster reply in order or picks one seat
// uniformly at random.
type Policy struct {
	roster     []Persona
	meeting    bool
	allRespond bool
	rng        *rand.Rand
}

// NewSoloPolicy creates the single-agent policy.
func NewSoloPolicy(p Persona) *Policy {
	return &Policy{roster: []Persona{p}}
}

// NewMeetingPolicy creates a multi-participant policy over the roster. When
// allRespond is false a random seat replies each turn; pass a seeded rng to
// make the choice deterministic, or nil for a time-seeded source.
func NewMeetingPolicy(roster []Persona, allRespond bool, rng *rand.Rand) *Policy {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Policy{roster: roster, meeting: true, allRespond: allRespond, rng: rng}
}

// Roster returns the personas the policy selects from.
func (p *Policy) Roster() []Persona {
	out := make([]Persona, len(p.roster))
	copy(out, p.roster)
	return out
}

// Respondents returns the ordered personas that must reply this turn.
func (p *Policy) Respondents() []Persona {
	if !p.meeting || p.allRespond {
		return p.Roster()
	}
	return []Persona{p.roster[p.rng.Intn(len(p.roster))]}
}

// ThinkingLabel is the status label shown while a reply is generated.
func (p *Policy) ThinkingLabel(persona Persona) string {
	if p.meeting {
		return persona.Name + " is thinking..."
	}
	return "Thinking..."
}

// SpeakingLabel is the status label shown during playback.
func (p *Policy) SpeakingLabel(persona Persona) string {
	if p.meeting {
		return persona.Name + " is speaking..."
	}
	return "Speaking..."
}

// Instructions returns the system instructions for one persona's reply,
// including the standing meeting directive when applicable.
func (p *Policy) Instructions(persona Persona) string {
	if p.meeting {
		return persona.Instructions + meetingDirective
	}
	return persona.Instructions
}

// Context maps the recent history to role-tagged messages and appends the
// current transcript as the final user message if it is not already the tail
// entry.
func (p *Policy) Context(h *History, transcript string) []llm.Message {
	recent := h.Recent(ContextWindow)
	msgs := make([]llm.Message, 0, len(recent)+1)
	for _, t := range recent {
		switch t.Speaker {
		case SpeakerUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Text})
		case SpeakerPersona:
			content := t.Text
			if p.meeting {
				// Tag replies with the speaking participant so later
				// personas can reference earlier ones by name.
				content = t.Participant + ": " + t.Text
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: content})
		}
	}

	// Duplicate guard: skip appending when the transcript already sits at
	// the tail. The comparison is plain string equality, so a tail entry
	// carrying a participant prefix will not match and the transcript is
	// appended again; this mirrors the long-standing behavior and is kept
	// deliberately.
	if len(msgs) == 0 || msgs[len(msgs)-1].Content != transcript {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: transcript})
	}

	return msgs
}
