// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// DefaultVoice is the synthesis voice used when none is configured.
const DefaultVoice = "aura-asteria-en"

// DefaultSystemPrompt drives the solo assistant persona.
const DefaultSystemPrompt = "You are a helpful voice assistant. Keep your responses concise and conversational."

// Config holds everything the relay server and the client commands read from
// the environment.
type Config struct {
	// Server
	Port     string
	LogLevel string

	// Provider credentials, held server-side only.
	DeepgramAPIKey string
	OpenAIAPIKey   string

	// Conversation defaults
	Voice        string
	SystemPrompt string
	AllRespond   bool

	// Client
	RelayURL string

	// Gateway capture tuning: MaxUtterance caps a solo capture,
	// SilenceTimeout ends a meeting capture after sustained quiet.
	MaxUtterance   time.Duration
	SilenceTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() Config {
	return Config{
		Port:           envOr("PORT", "3000"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		DeepgramAPIKey: os.Getenv("DEEPGRAM_API_KEY"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		Voice:          envOr("PARLEY_VOICE", DefaultVoice),
		SystemPrompt:   envOr("PARLEY_SYSTEM_PROMPT", DefaultSystemPrompt),
		AllRespond:     envBool("PARLEY_ALL_RESPOND", true),
		RelayURL:       envOr("PARLEY_RELAY_URL", "http://localhost:3000"),
		MaxUtterance:   envDuration("PARLEY_MAX_UTTERANCE", 5*time.Second),
		SilenceTimeout: envDuration("PARLEY_SILENCE_TIMEOUT", 10*time.Second),
	}
}

// ValidateServer checks that the relay has the provider credentials it needs.
func (c Config) ValidateServer() error {
	if c.DeepgramAPIKey == "" {
		return errors.New("DEEPGRAM_API_KEY is required")
	}
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
