// Package fake provides a scripted Responder for testing.
package fake

import (
	"context"
	"sync"

	"github.com/parleyvoice/parley/pkg/ai/llm"
)

// FakeResponder returns scripted replies in order, cycling once the script
// runs out, and records every request so tests can inspect the context each
// call received.
type FakeResponder struct {
	responses []string
	err       error

	mu       sync.Mutex
	requests []llm.ChatRequest
}

// NewFakeResponder creates a fake with the given reply script.
func NewFakeResponder(responses ...string) *FakeResponder {
	if len(responses) == 0 {
		responses = []string{"This is a fake reply."}
	}
	return &FakeResponder{responses: responses}
}

// FailWith makes every Chat call return err.
func (f *FakeResponder) FailWith(err error) *FakeResponder {
	f.err = err
	return f
}

// Chat records the request and returns the next scripted reply.
func (f *FakeResponder) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.ChatResponse{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.requests) % len(f.responses)
	f.requests = append(f.requests, req)

	if f.err != nil {
		return llm.ChatResponse{}, f.err
	}
	return llm.ChatResponse{ReplyText: f.responses[idx]}, nil
}

// Requests returns the chat requests received so far.
func (f *FakeResponder) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Calls returns how many times Chat was invoked.
func (f *FakeResponder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
