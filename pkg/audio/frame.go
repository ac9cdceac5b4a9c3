// Package audio implements the capture and playback halves of a voice
// session: a Recorder that buffers microphone frames into a segment with
// timeout and silence-based termination, and a Player that plays synthesized
// audio with interruption support. Devices are abstracted behind the Source
// and Sink ports so sessions can run against a microphone, a websocket, or a
// test fixture without changes.
package audio

import (
	"time"
)

// Frame holds a chunk of 16-bit little-endian PCM captured from a source.
type Frame struct {
	Data        []byte // 16-bit PCM, little-endian
	SampleRate  int
	NumChannels int
}

// Duration returns the playback duration represented by the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 || f.NumChannels == 0 || len(f.Data) < 2 {
		return 0
	}
	samples := len(f.Data) / 2 / f.NumChannels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Energy returns the mean absolute amplitude of the frame scaled to the
// 0-255 range, matching the byte-scale readings silence detection
// thresholds are expressed in.
func (f Frame) Energy() float64 {
	n := len(f.Data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(f.Data[i*2]) | int16(f.Data[i*2+1])<<8)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return sum / float64(n) / 128.0
}

// Segment is one recorded capture: encoded audio bytes plus the encoding tag
// sent alongside them to the transcription endpoint. Segments are consumed
// once and never persisted.
type Segment struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether no audio was captured.
func (s Segment) Empty() bool {
	return len(s.Data) == 0
}
