package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parleyvoice/parley/pkg/ai"
	"github.com/parleyvoice/parley/pkg/ai/llm"
	"github.com/parleyvoice/parley/pkg/ai/stt"
	"github.com/parleyvoice/parley/pkg/ai/tts"
	"github.com/parleyvoice/parley/pkg/audio"
)

// DefaultErrorBackoff is the delay before retrying the pipeline after a
// recoverable provider failure.
const DefaultErrorBackoff = 2 * time.Second

// DefaultHistoryLimit bounds the conversation record of a solo session.
// Meeting sessions typically raise it (see MeetingHistoryLimit).
const (
	DefaultHistoryLimit = 20
	MeetingHistoryLimit = 30
)

// ErrAlreadyRunning is returned by Run when the session is running.
var ErrAlreadyRunning = errors.New("session already running")

// Capturer records one audio segment per call. Stop ends the in-flight
// recording early; the buffered audio is still returned from Record.
type Capturer interface {
	Record(ctx context.Context) (audio.Segment, error)
	Stop()
}

// Player plays one synthesized buffer per call and supports interruption.
type Player interface {
	Play(ctx context.Context, data []byte) error
	Interrupt()
}

// Config assembles a session's collaborators. Transcriber, Responder,
// Synthesizer, Capture, Player, and Policy are required.
type Config struct {
	Transcriber stt.Transcriber
	Responder   llm.Responder
	Synthesizer tts.Synthesizer
	Capture     Capturer
	Player      Player
	Policy      *Policy

	// HistoryLimit bounds the conversation record. Defaults to
	// DefaultHistoryLimit.
	HistoryLimit int

	// Listener receives status, turn, and highlight events. Defaults to
	// NopListener.
	Listener Listener

	// ErrorBackoff is the retry delay after a recoverable failure.
	// Defaults to DefaultErrorBackoff.
	ErrorBackoff time.Duration

	// ResumeDelay is the grace period between a force stop and the return
	// to listening.
	ResumeDelay time.Duration

	Logger *slog.Logger
}

// Session drives the conversation loop: capture, transcription, reply
// generation per selected persona, synthesis, playback, and back to
// listening. All pipeline steps run on one goroutine; ForceStop and End may
// be called from any other goroutine at any time.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	history *History

	phase  atomic.Int32
	active atomic.Bool

	mu         sync.Mutex
	turnCancel context.CancelFunc
	runCancel  context.CancelFunc
}

// New creates a session from the given configuration.
func New(cfg Config) (*Session, error) {
	if cfg.Transcriber == nil {
		return nil, fmt.Errorf("transcriber is required")
	}
	if cfg.Responder == nil {
		return nil, fmt.Errorf("responder is required")
	}
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if cfg.Capture == nil {
		return nil, fmt.Errorf("capture is required")
	}
	if cfg.Player == nil {
		return nil, fmt.Errorf("player is required")
	}
	if cfg.Policy == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Listener == nil {
		cfg.Listener = NopListener{}
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Session{
		cfg:     cfg,
		logger:  cfg.Logger,
		history: NewHistory(cfg.HistoryLimit),
	}, nil
}

// Run executes the conversation loop until End is called, ctx is cancelled,
// or capture becomes unavailable. The session can be run again after Run
// returns; the conversation history carries over.
func (s *Session) Run(ctx context.Context) error {
	if !s.active.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.runCancel = cancel
	s.mu.Unlock()

	ready := true
	defer func() {
		cancel()
		s.mu.Lock()
		s.runCancel = nil
		s.mu.Unlock()
		s.active.Store(false)
		s.phase.Store(int32(PhaseIdle))
		if ready {
			s.cfg.Listener.OnStatus(Status{Phase: PhaseIdle, Label: "Ready"})
		}
	}()

	for s.active.Load() && runCtx.Err() == nil {
		err := s.turn(runCtx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) && s.active.Load() && runCtx.Err() == nil:
			// Force-stopped mid-turn: pause briefly, then listen again.
			if !s.pause(runCtx, s.cfg.ResumeDelay) {
				return nil
			}
		case errors.Is(err, context.Canceled):
			return nil
		case ai.IsRecoverable(err):
			s.logger.Warn("turn failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("backoff", s.cfg.ErrorBackoff))
			s.setPhase(PhaseError, "Error - retrying")
			if !s.pause(runCtx, s.cfg.ErrorBackoff) {
				return nil
			}
		default:
			s.logger.Error("session aborted", slog.String("error", err.Error()))
			// Leave the error status visible; the session rests at idle
			// until restarted.
			ready = false
			s.setPhase(PhaseError, errorLabel(err))
			return err
		}
	}
	return nil
}

// turn runs one full pipeline pass: listen, transcribe, respond, speak.
func (s *Session) turn(ctx context.Context) error {
	turnCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.turnCancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.turnCancel = nil
		s.mu.Unlock()
	}()

	s.setPhase(PhaseListening, "Listening...")
	seg, err := s.cfg.Capture.Record(turnCtx)
	if err != nil {
		return err
	}
	if seg.Empty() {
		return nil
	}

	s.setPhase(PhaseTranscribing, "Processing...")
	transcript, err := s.cfg.Transcriber.Transcribe(turnCtx, seg)
	if err != nil {
		return err
	}
	if err := turnCtx.Err(); err != nil {
		// The session moved on while the request was in flight; the
		// result is discarded.
		return err
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		s.setPhase(PhaseListening, "No speech detected")
		return nil
	}

	s.appendTurn(Turn{Speaker: SpeakerUser, Participant: "You", Text: transcript})

	// Personas reply strictly in order: each later persona's context
	// includes the earlier replies from this same turn, and one persona's
	// audio finishes before the next reply is generated.
	for _, persona := range s.cfg.Policy.Respondents() {
		if err := s.respond(turnCtx, persona, transcript); err != nil {
			return err
		}
	}
	return nil
}

// respond produces and speaks one persona's reply.
func (s *Session) respond(ctx context.Context, persona Persona, transcript string) error {
	s.cfg.Listener.OnSpeaking(persona.ID, true)
	defer s.cfg.Listener.OnSpeaking(persona.ID, false)

	s.setPhase(PhaseReasoning, s.cfg.Policy.ThinkingLabel(persona))
	resp, err := s.cfg.Responder.Chat(ctx, llm.ChatRequest{
		Messages:     s.cfg.Policy.Context(s.history, transcript),
		SystemPrompt: s.cfg.Policy.Instructions(persona),
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.appendTurn(Turn{Speaker: SpeakerPersona, Participant: persona.Label(), Text: resp.ReplyText})

	s.setPhase(PhaseSpeaking, s.cfg.Policy.SpeakingLabel(persona))
	data, err := s.cfg.Synthesizer.Synthesize(ctx, tts.SynthesizeRequest{
		Text:  resp.ReplyText,
		Voice: persona.Voice,
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.cfg.Player.Play(ctx, data)
}

// ForceStop interrupts whatever the session is doing and returns it to
// listening (or idle, if the session has ended). Safe from any goroutine;
// repeated calls are no-ops beyond the first.
func (s *Session) ForceStop() {
	s.cfg.Player.Interrupt()

	s.mu.Lock()
	if s.turnCancel != nil {
		s.turnCancel()
	}
	s.mu.Unlock()

	for _, p := range s.cfg.Policy.Roster() {
		s.cfg.Listener.OnSpeaking(p.ID, false)
	}
}

// End marks the session inactive and stops capture and playback. The
// conversation history is retained. Idempotent.
func (s *Session) End() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}

	s.cfg.Player.Interrupt()

	s.mu.Lock()
	if s.turnCancel != nil {
		s.turnCancel()
	}
	if s.runCancel != nil {
		s.runCancel()
	}
	s.mu.Unlock()
}

// Active reports whether the session loop is running.
func (s *Session) Active() bool {
	return s.active.Load()
}

// Phase returns the current session phase.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

// History returns a copy of the conversation record.
func (s *Session) History() []Turn {
	return s.history.All()
}

func (s *Session) setPhase(p Phase, label string) {
	s.phase.Store(int32(p))
	s.cfg.Listener.OnStatus(Status{Phase: p, Label: label})
}

func (s *Session) appendTurn(t Turn) {
	s.history.Append(t)
	s.cfg.Listener.OnTurn(t)
}

// pause waits d unless the session ends first. Reports whether the loop
// should keep going.
func (s *Session) pause(ctx context.Context, d time.Duration) bool {
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return false
		}
	}
	return s.active.Load() && ctx.Err() == nil
}

func errorLabel(err error) string {
	if errors.Is(err, ai.ErrCaptureUnavailable) {
		return "Microphone access denied"
	}
	return "Error processing"
}
