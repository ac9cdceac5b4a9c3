// Package fake provides a scripted Transcriber for testing.
package fake

import (
	"context"
	"sync"

	"github.com/parleyvoice/parley/pkg/audio"
)

// DefaultTranscript is used when no transcripts are provided.
const DefaultTranscript = "This is a fake transcript."

// FakeTranscriber returns scripted transcripts in order, repeating the last
// one once the script runs out. Optionally fails every call with a fixed
// error.
type FakeTranscriber struct {
	transcripts []string
	err         error

	mu       sync.Mutex
	calls    int
	segments []audio.Segment
}

// NewFakeTranscriber creates a fake with the given transcript script.
func NewFakeTranscriber(transcripts ...string) *FakeTranscriber {
	if len(transcripts) == 0 {
		transcripts = []string{DefaultTranscript}
	}
	return &FakeTranscriber{transcripts: transcripts}
}

// FailWith makes every Transcribe call return err.
func (f *FakeTranscriber) FailWith(err error) *FakeTranscriber {
	f.err = err
	return f
}

// Transcribe returns the next scripted transcript.
func (f *FakeTranscriber) Transcribe(ctx context.Context, seg audio.Segment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = append(f.segments, seg)
	idx := f.calls
	f.calls++

	if f.err != nil {
		return "", f.err
	}
	if idx >= len(f.transcripts) {
		idx = len(f.transcripts) - 1
	}
	return f.transcripts[idx], nil
}

// Calls returns how many times Transcribe was invoked.
func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Segments returns the segments submitted so far.
func (f *FakeTranscriber) Segments() []audio.Segment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]audio.Segment, len(f.segments))
	copy(out, f.segments)
	return out
}
