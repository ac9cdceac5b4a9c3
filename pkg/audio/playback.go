package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/parleyvoice/parley/pkg/ai"
)

// Sink plays one buffer of synthesized audio. Play blocks until playback
// finishes or ctx is cancelled; implementations must release any
// per-playback resource on every return path.
type Sink interface {
	Play(ctx context.Context, data []byte) error
}

// Player runs playback through a Sink and supports interruption. At most one
// playback is active at a time; Interrupt cancels the in-flight one, and is
// a no-op otherwise.
type Player struct {
	sink Sink

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPlayer creates a Player over the given sink.
func NewPlayer(sink Sink) *Player {
	return &Player{sink: sink}
}

// Play plays data to completion. Returns context.Canceled if interrupted, so
// an interrupted playback is never reported as finished, and wraps sink
// failures in ai.ErrPlaybackFailed.
func (p *Player) Play(ctx context.Context, data []byte) error {
	pctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		cancel()
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
	}()

	err := p.sink.Play(pctx, data)
	if pctx.Err() != nil {
		// Interrupted, possibly racing natural completion: the completion
		// signal must not fire once an interrupt has been issued.
		return pctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ai.ErrPlaybackFailed, err)
	}
	return nil
}

// Interrupt stops the in-flight playback immediately. Idempotent.
func (p *Player) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}
