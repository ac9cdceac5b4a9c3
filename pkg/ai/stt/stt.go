// Package stt defines the speech-to-text port used by the session loop.
package stt

import (
	"context"

	"github.com/parleyvoice/parley/pkg/audio"
)

// Transcriber converts one recorded audio segment to text. An empty string
// with a nil error means the provider heard no recognizable speech; it is
// not an error. Failures carry an ai.RequestError with OpTranscribe.
type Transcriber interface {
	Transcribe(ctx context.Context, seg audio.Segment) (string, error)
}
