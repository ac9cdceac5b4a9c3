// Package ai provides types shared by the speech and language provider ports.
// It defines the error taxonomy used across transcription, response, and
// synthesis clients, and the recoverable/fatal classification the session
// loop relies on when deciding whether to retry a turn.
package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrCaptureUnavailable indicates the capture device could not be
	// acquired (permission denied, no device). Session start aborts; the
	// error is never retried automatically.
	ErrCaptureUnavailable = errors.New("audio capture unavailable")

	// ErrPlaybackFailed indicates synthesized audio could not be played.
	// The session retries the pipeline from listening after a backoff.
	ErrPlaybackFailed = errors.New("audio playback failed")
)

// Op identifies the provider operation that produced a RequestError.
type Op string

const (
	OpTranscribe Op = "transcribe"
	OpRespond    Op = "respond"
	OpSynthesize Op = "synthesize"
)

// RequestError reports a non-success response from a relay endpoint.
type RequestError struct {
	Op         Op
	StatusCode int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failed: status %d", e.Op, e.StatusCode)
}

// NewRequestError creates a RequestError for the given operation and status.
func NewRequestError(op Op, statusCode int) error {
	return &RequestError{Op: op, StatusCode: statusCode}
}

// IsRecoverable reports whether the session should retry from listening
// after a backoff. Every provider failure is recoverable except capture
// acquisition, which requires user intervention.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCaptureUnavailable) {
		return false
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	return errors.Is(err, ErrPlaybackFailed)
}
