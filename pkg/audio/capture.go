package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parleyvoice/parley/pkg/ai"
	"github.com/parleyvoice/parley/pkg/audio/wav"
)

const (
	// DefaultSilenceThreshold is the byte-scale energy reading below which a
	// frame counts as silence.
	DefaultSilenceThreshold = 30.0

	// DefaultPollInterval is how often the silence watcher checks the time
	// since the last audible frame.
	DefaultPollInterval = 100 * time.Millisecond
)

// Source provides capture frames from an audio device. Start acquires the
// device and begins delivering frames; Stop releases it. Stop must be safe
// to call more than once.
type Source interface {
	Start(ctx context.Context) (<-chan Frame, error)
	Stop() error
}

// RecorderConfig controls how a capture segment terminates.
type RecorderConfig struct {
	// MaxDuration is the hard ceiling on one recording.
	MaxDuration time.Duration

	// SilenceTimeout ends the recording once no audible frame has arrived
	// for this long. Zero disables silence detection.
	SilenceTimeout time.Duration

	// SilenceThreshold is the energy level an audible frame must exceed.
	// Defaults to DefaultSilenceThreshold.
	SilenceThreshold float64

	// PollInterval is the silence check cadence. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// Format is the PCM layout the source delivers; recorded segments are
	// wrapped in a WAV container with this layout.
	Format wav.Format
}

// Recorder buffers source frames into a Segment. One recording is active at
// a time; Record blocks until the segment terminates by caller stop, the
// duration ceiling, or detected silence.
type Recorder struct {
	src Source
	cfg RecorderConfig

	mu   sync.Mutex
	stop chan struct{}
}

// NewRecorder creates a Recorder over the given source.
func NewRecorder(src Source, cfg RecorderConfig) *Recorder {
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = DefaultSilenceThreshold
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Recorder{src: src, cfg: cfg}
}

// Record acquires the source and buffers frames until the recording
// terminates, then returns the captured segment. The source is released on
// every exit path. If the device cannot be acquired the error wraps
// ai.ErrCaptureUnavailable. Cancelling ctx aborts the recording and discards
// the buffer.
func (r *Recorder) Record(ctx context.Context) (Segment, error) {
	frames, err := r.src.Start(ctx)
	if err != nil {
		return Segment{}, fmt.Errorf("%w: %v", ai.ErrCaptureUnavailable, err)
	}
	defer r.src.Stop()

	stop := make(chan struct{})
	r.mu.Lock()
	r.stop = stop
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.stop = nil
		r.mu.Unlock()
	}()

	deadline := time.NewTimer(r.cfg.MaxDuration)
	defer deadline.Stop()

	var silence <-chan time.Time
	if r.cfg.SilenceTimeout > 0 {
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()
		silence = ticker.C
	}

	var pcm []byte
	lastSound := time.Now()

	for {
		select {
		case <-ctx.Done():
			return Segment{}, ctx.Err()
		case <-stop:
			return r.segment(pcm), nil
		case <-deadline.C:
			return r.segment(pcm), nil
		case <-silence:
			if time.Since(lastSound) > r.cfg.SilenceTimeout {
				return r.segment(pcm), nil
			}
		case f, ok := <-frames:
			if !ok {
				return r.segment(pcm), nil
			}
			pcm = append(pcm, f.Data...)
			if f.Energy() > r.cfg.SilenceThreshold {
				lastSound = time.Now()
			}
		}
	}
}

// Stop ends the in-flight recording, if any. The buffered audio is returned
// from the pending Record call. Safe to call at any time, any number of
// times.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		select {
		case <-r.stop:
		default:
			close(r.stop)
		}
		r.stop = nil
	}
}

func (r *Recorder) segment(pcm []byte) Segment {
	if len(pcm) == 0 {
		return Segment{}
	}
	return Segment{
		Data:     wav.Encode(pcm, r.cfg.Format),
		MIMEType: "audio/wav",
	}
}
