package ai

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"capture unavailable", ErrCaptureUnavailable, false},
		{"wrapped capture unavailable", fmt.Errorf("mic: %w", ErrCaptureUnavailable), false},
		{"transcribe status error", NewRequestError(OpTranscribe, 500), true},
		{"respond status error", NewRequestError(OpRespond, 429), true},
		{"synthesize status error", NewRequestError(OpSynthesize, 503), true},
		{"wrapped request error", fmt.Errorf("relay: %w", NewRequestError(OpRespond, 500)), true},
		{"playback", ErrPlaybackFailed, true},
		{"unrelated", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRequestErrorMessage(t *testing.T) {
	err := NewRequestError(OpTranscribe, 502)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if reqErr.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want 502", reqErr.StatusCode)
	}
	if got, want := err.Error(), "transcribe failed: status 502"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
