// Package llm defines the chat-completion port used by the session loop.
// Messages carry the role-tagged conversation context; system instructions
// travel separately so each persona can supply its own.
package llm

import "context"

// MessageRole tags who authored a context message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single role-tagged entry in the outbound context.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ChatRequest contains the ordered context and system instructions for one
// completion.
type ChatRequest struct {
	Messages     []Message
	SystemPrompt string
}

// ChatResponse contains the generated reply.
type ChatResponse struct {
	ReplyText string
}

// Responder produces a reply for the given context. Failures carry an
// ai.RequestError with OpRespond; a provider reply without recognizable
// content yields a fixed fallback string instead of an error.
type Responder interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
