// Package tts defines the speech-synthesis port used by the session loop.
package tts

import "context"

// SynthesizeRequest contains the text to speak and the provider voice to
// speak it with.
type SynthesizeRequest struct {
	Text  string
	Voice string
}

// Synthesizer converts reply text to playable audio bytes. Failures carry an
// ai.RequestError with OpSynthesize.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error)
}
