// Package fake provides scripted audio devices for testing capture and
// playback without hardware.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/parleyvoice/parley/pkg/audio"
)

// NewFrame builds a mono 16kHz PCM frame of constant amplitude. The frame's
// byte-scale energy is roughly amplitude/128, so amplitudes above ~4000 read
// as speech against the default silence threshold.
func NewFrame(amplitude int16, samples int) audio.Frame {
	data := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		data[i*2] = byte(amplitude & 0xFF)
		data[i*2+1] = byte((amplitude >> 8) & 0xFF)
	}
	return audio.Frame{Data: data, SampleRate: 16000, NumChannels: 1}
}

// Source is a fake capture device that delivers a scripted frame sequence.
type Source struct {
	frames   []audio.Frame
	interval time.Duration
	startErr error
	holdOpen bool

	mu       sync.Mutex
	stopped  int
	stopChan chan struct{}
}

// NewSource creates a fake source that delivers the given frames in order,
// then keeps the stream open (silent) until stopped.
func NewSource(frames ...audio.Frame) *Source {
	return &Source{frames: frames, holdOpen: true}
}

// WithInterval sets a delay between delivered frames.
func (s *Source) WithInterval(d time.Duration) *Source {
	s.interval = d
	return s
}

// CloseAfterFrames makes the stream end once all frames are delivered
// instead of staying open.
func (s *Source) CloseAfterFrames() *Source {
	s.holdOpen = false
	return s
}

// FailWith makes Start return err, simulating a device that cannot be
// acquired.
func (s *Source) FailWith(err error) *Source {
	s.startErr = err
	return s
}

// Start begins delivering the scripted frames.
func (s *Source) Start(ctx context.Context) (<-chan audio.Frame, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}

	stop := make(chan struct{})
	s.mu.Lock()
	s.stopChan = stop
	s.mu.Unlock()

	out := make(chan audio.Frame)
	go func() {
		defer func() {
			if !s.holdOpen {
				close(out)
			}
		}()
		for _, f := range s.frames {
			if s.interval > 0 {
				select {
				case <-time.After(s.interval):
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
		if s.holdOpen {
			select {
			case <-ctx.Done():
			case <-stop:
			}
		}
	}()

	return out, nil
}

// Stop releases the fake device. Safe to call repeatedly.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	if s.stopChan != nil {
		select {
		case <-s.stopChan:
		default:
			close(s.stopChan)
		}
		s.stopChan = nil
	}
	return nil
}

// StopCount returns how many times Stop was called, for asserting that the
// device is released on every exit path.
func (s *Source) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Sink is a fake playback device that records everything played through it.
type Sink struct {
	delay time.Duration
	err   error

	mu     sync.Mutex
	played [][]byte
}

// NewSink creates a fake sink that completes playback immediately.
func NewSink() *Sink {
	return &Sink{}
}

// WithDelay makes each playback take d before completing.
func (s *Sink) WithDelay(d time.Duration) *Sink {
	s.delay = d
	return s
}

// FailWith makes every playback return err.
func (s *Sink) FailWith(err error) *Sink {
	s.err = err
	return s
}

// Play records the buffer and waits out the configured delay.
func (s *Sink) Play(ctx context.Context, data []byte) error {
	s.mu.Lock()
	s.played = append(s.played, data)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

// Played returns the buffers played so far.
func (s *Sink) Played() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.played))
	copy(out, s.played)
	return out
}
