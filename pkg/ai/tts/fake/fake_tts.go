// Package fake provides a scripted Synthesizer for testing.
package fake

import (
	"context"
	"sync"

	"github.com/parleyvoice/parley/pkg/ai/tts"
)

// FakeSynthesizer returns deterministic audio bytes derived from the request
// text and records every request.
type FakeSynthesizer struct {
	err error

	mu       sync.Mutex
	requests []tts.SynthesizeRequest
}

// NewFakeSynthesizer creates a fake synthesizer.
func NewFakeSynthesizer() *FakeSynthesizer {
	return &FakeSynthesizer{}
}

// FailWith makes every Synthesize call return err.
func (f *FakeSynthesizer) FailWith(err error) *FakeSynthesizer {
	f.err = err
	return f
}

// Synthesize records the request and returns the text prefixed with "audio:"
// so tests can match played buffers back to replies.
func (f *FakeSynthesizer) Synthesize(ctx context.Context, req tts.SynthesizeRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return []byte("audio:" + req.Text), nil
}

// Requests returns the synthesize requests received so far.
func (f *FakeSynthesizer) Requests() []tts.SynthesizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tts.SynthesizeRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Calls returns how many times Synthesize was invoked.
func (f *FakeSynthesizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
