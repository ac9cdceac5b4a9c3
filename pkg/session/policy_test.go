package session_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/parleyvoice/parley/pkg/session"
)

func TestSoloPolicySingleRespondent(t *testing.T) {
	is := is.New(t)

	persona := session.SoloPersona("aura-asteria-en", "You are a helpful assistant.")
	policy := session.NewSoloPolicy(persona)

	got := policy.Respondents()
	is.Equal(len(got), 1)
	is.Equal(got[0].ID, "agent")

	// Solo instructions carry no meeting directive.
	is.Equal(policy.Instructions(persona), "You are a helpful assistant.")
	is.Equal(policy.ThinkingLabel(persona), "Thinking...")
	is.Equal(policy.SpeakingLabel(persona), "Speaking...")
}

func TestMeetingPolicyAllRespondInRosterOrder(t *testing.T) {
	is := is.New(t)

	roster := session.DefaultRoster()
	policy := session.NewMeetingPolicy(roster, true, nil)

	got := policy.Respondents()
	is.Equal(len(got), len(roster))
	for i := range roster {
		is.Equal(got[i].ID, roster[i].ID)
	}
	is.Equal(policy.ThinkingLabel(roster[0]), "Alex is thinking...")
	is.Equal(policy.SpeakingLabel(roster[1]), "Sarah is speaking...")
}

func TestMeetingPolicyRandomSeat(t *testing.T) {
	is := is.New(t)

	roster := session.DefaultRoster()
	policy := session.NewMeetingPolicy(roster, false, rand.New(rand.NewSource(7)))

	ids := make(map[string]bool)
	for id := range map[string]bool{"alex": true, "sarah": true, "jordan": true} {
		ids[id] = true
	}
	for i := 0; i < 20; i++ {
		got := policy.Respondents()
		is.Equal(len(got), 1)
		is.True(ids[got[0].ID])
	}

	// Same seed yields the same seat order.
	a := session.NewMeetingPolicy(roster, false, rand.New(rand.NewSource(42)))
	b := session.NewMeetingPolicy(roster, false, rand.New(rand.NewSource(42)))
	for i := 0; i < 10; i++ {
		is.Equal(a.Respondents()[0].ID, b.Respondents()[0].ID)
	}
}

func TestMeetingInstructionsCarryDirective(t *testing.T) {
	is := is.New(t)

	roster := session.DefaultRoster()
	policy := session.NewMeetingPolicy(roster, true, nil)

	instr := policy.Instructions(roster[1])
	is.True(strings.HasPrefix(instr, roster[1].Instructions))
	is.True(strings.Contains(instr, "You are in a meeting with other participants"))
}

func TestContextPrefixesPersonaTurnsInMeetings(t *testing.T) {
	is := is.New(t)

	roster := session.DefaultRoster()
	policy := session.NewMeetingPolicy(roster, true, nil)

	h := session.NewHistory(30)
	h.Append(session.Turn{Speaker: session.SpeakerUser, Participant: "You", Text: "What should we build?"})
	h.Append(session.Turn{Speaker: session.SpeakerPersona, Participant: roster[0].Label(), Text: "A dashboard."})

	msgs := policy.Context(h, "What should we build?")
	is.Equal(len(msgs), 3)
	is.Equal(msgs[0].Content, "What should we build?")
	is.Equal(string(msgs[1].Role), "assistant")
	is.Equal(msgs[1].Content, roster[0].Label()+": A dashboard.")
	// The tail is a persona reply, so the transcript is appended again.
	is.Equal(msgs[2].Content, "What should we build?")
}

func TestContextSkipsDuplicateTailTranscript(t *testing.T) {
	is := is.New(t)

	persona := session.SoloPersona("aura-asteria-en", "prompt")
	policy := session.NewSoloPolicy(persona)

	h := session.NewHistory(20)
	h.Append(session.Turn{Speaker: session.SpeakerUser, Participant: "You", Text: "Hello"})

	msgs := policy.Context(h, "Hello")
	is.Equal(len(msgs), 1)
	is.Equal(string(msgs[0].Role), "user")
	is.Equal(msgs[0].Content, "Hello")
}

func TestContextWindowBoundsHistory(t *testing.T) {
	is := is.New(t)

	persona := session.SoloPersona("aura-asteria-en", "prompt")
	policy := session.NewSoloPolicy(persona)

	h := session.NewHistory(30)
	for i := 0; i < 25; i++ {
		h.Append(session.Turn{Speaker: session.SpeakerUser, Participant: "You", Text: "old"})
	}

	msgs := policy.Context(h, "current")
	// Ten recent turns plus the appended transcript.
	is.Equal(len(msgs), session.ContextWindow+1)
	is.Equal(msgs[len(msgs)-1].Content, "current")
}

func TestContextEmptyHistory(t *testing.T) {
	is := is.New(t)

	policy := session.NewSoloPolicy(session.SoloPersona("v", "p"))
	msgs := policy.Context(session.NewHistory(20), "First words")
	is.Equal(len(msgs), 1)
	is.Equal(msgs[0].Content, "First words")
}
