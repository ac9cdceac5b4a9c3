package session

// Persona is the static configuration of one conversational agent: identity
// shown in the transcript, provider voice, and system instructions. Personas
// never change during a session.
type Persona struct {
	ID           string
	Name         string
	Title        string
	Emoji        string
	Voice        string
	Instructions string
}

// Label returns the transcript label for the persona.
func (p Persona) Label() string {
	if p.Emoji != "" {
		return p.Emoji + " " + p.Name
	}
	return p.Name
}

// SoloPersona builds the single implicit persona for a one-on-one session
// from the user's chosen voice and system prompt.
func SoloPersona(voice, systemPrompt string) Persona {
	return Persona{
		ID:           "agent",
		Name:         "Agent",
		Voice:        voice,
		Instructions: systemPrompt,
	}
}

// DefaultRoster returns the fixed meeting room seats.
func DefaultRoster() []Persona {
	return []Persona{
		{
			ID:    "alex",
			Name:  "Alex",
			Title: "Manager",
			Emoji: "\U0001F468‍\U0001F4BC",
			Voice: "aura-orion-en",
			Instructions: "You are Alex, a team manager. Focus on timelines and strategy. " +
				"ALWAYS keep responses to 1-2 sentences maximum. Be brief and direct. " +
				"Always end with a follow-up question to keep the conversation going.",
		},
		{
			ID:    "sarah",
			Name:  "Sarah",
			Title: "Engineer",
			Emoji: "\U0001F469‍\U0001F4BB",
			Voice: "aura-athena-en",
			Instructions: "You are Sarah, a senior software engineer. Focus on technical points. " +
				"ALWAYS keep responses to 1-2 sentences maximum. Be concise and technical. " +
				"Always end with a follow-up question to keep the conversation going.",
		},
		{
			ID:    "jordan",
			Name:  "Jordan",
			Title: "Designer",
			Emoji: "\U0001F468‍\U0001F3A8",
			Voice: "aura-arcas-en",
			Instructions: "You are Jordan, a UX designer. Focus on user experience. " +
				"ALWAYS keep responses to 1-2 sentences maximum. Be brief and design-focused. " +
				"Always end with a follow-up question to keep the conversation going.",
		},
	}
}
