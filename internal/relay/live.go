package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/parleyvoice/parley/pkg/audio"
	"github.com/parleyvoice/parley/pkg/audio/wav"
	"github.com/parleyvoice/parley/pkg/session"
)

const (
	// liveSampleRate is the PCM layout gateway clients stream: 16 kHz mono,
	// 16-bit little-endian.
	liveSampleRate = 16000

	frameBuffer = 64

	// playbackAckTimeout caps how long one reply's playback may take before
	// the session moves on without an acknowledgement.
	playbackAckTimeout = 60 * time.Second

	soloMaxUtterance    = 5 * time.Second
	meetingMaxUtterance = 30 * time.Second
	meetingSilence      = 10 * time.Second
	meetingResumeDelay  = 500 * time.Millisecond
)

// controlMessage is a text frame from the gateway client.
type controlMessage struct {
	Type string `json:"type"`
}

// liveEvent is a text frame to the gateway client. Binary frames carry
// audio: inbound capture PCM, outbound synthesized speech.
type liveEvent struct {
	Type        string `json:"type"`
	Session     string `json:"session,omitempty"`
	Phase       string `json:"phase,omitempty"`
	Label       string `json:"label,omitempty"`
	Speaker     string `json:"speaker,omitempty"`
	Participant string `json:"participant,omitempty"`
	Text        string `json:"text,omitempty"`
	Persona     string `json:"persona,omitempty"`
	Active      *bool  `json:"active,omitempty"`
	Message     string `json:"message,omitempty"`
}

// liveConn adapts one websocket connection into the session's audio source,
// audio sink, and event listener. The connection's read loop stays in
// handleSession; everything here only writes, serialized by writeMu.
type liveConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	frames  chan audio.Frame
	acks    chan struct{}
}

var (
	_ audio.Source     = (*liveConn)(nil)
	_ audio.Sink       = (*liveConn)(nil)
	_ session.Listener = (*liveConn)(nil)
)

func newLiveConn(conn *websocket.Conn, logger *slog.Logger) *liveConn {
	return &liveConn{
		conn:   conn,
		logger: logger,
		frames: make(chan audio.Frame, frameBuffer),
		acks:   make(chan struct{}, 1),
	}
}

// Start hands out the shared frame stream, first discarding frames that
// arrived between recordings (audio the client streamed while the session
// was speaking) so each capture begins fresh.
func (l *liveConn) Start(ctx context.Context) (<-chan audio.Frame, error) {
	for {
		select {
		case <-l.frames:
		default:
			return l.frames, nil
		}
	}
}

func (l *liveConn) Stop() error { return nil }

// Play ships the synthesized audio to the client and waits for its
// playback_done acknowledgement.
func (l *liveConn) Play(ctx context.Context, data []byte) error {
	// Drop any stale acknowledgement from an interrupted playback.
	select {
	case <-l.acks:
	default:
	}

	if err := l.write(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}

	t := time.NewTimer(playbackAckTimeout)
	defer t.Stop()
	select {
	case <-l.acks:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return errors.New("playback acknowledgement timed out")
	}
}

func (l *liveConn) OnStatus(st session.Status) {
	l.send(liveEvent{Type: "status", Phase: st.Phase.String(), Label: st.Label})
}

func (l *liveConn) OnTurn(t session.Turn) {
	l.send(liveEvent{
		Type:        "turn",
		Speaker:     t.Speaker.String(),
		Participant: t.Participant,
		Text:        t.Text,
	})
}

func (l *liveConn) OnSpeaking(personaID string, active bool) {
	l.send(liveEvent{Type: "speaking", Persona: personaID, Active: &active})
}

func (l *liveConn) send(ev liveEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := l.write(websocket.TextMessage, data); err != nil {
		l.logger.Debug("event dropped", slog.String("type", ev.Type))
	}
}

func (l *liveConn) write(messageType int, data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// handleSession runs a full conversation session over one websocket. The
// client streams PCM frames as binary messages and steers the session with
// text messages: start, stop, force_stop, playback_done.
func (s *Server) handleSession(c *websocket.Conn) {
	mode := c.Query("mode", "solo")
	id := uuid.NewString()
	logger := s.logger.With(slog.String("session", id), slog.String("mode", mode))

	lc := newLiveConn(c, logger)

	recCfg := audio.RecorderConfig{
		Format: wav.Format{SampleRate: liveSampleRate, NumChannels: 1},
	}
	var policy *session.Policy
	historyLimit := session.DefaultHistoryLimit
	resumeDelay := time.Duration(0)

	if mode == "meeting" {
		policy = session.NewMeetingPolicy(session.DefaultRoster(), queryBool(c, "all_respond", s.cfg.AllRespond), nil)
		historyLimit = session.MeetingHistoryLimit
		recCfg.MaxDuration = meetingMaxUtterance
		recCfg.SilenceTimeout = s.cfg.SilenceTimeout
		resumeDelay = meetingResumeDelay
	} else {
		policy = session.NewSoloPolicy(session.SoloPersona(c.Query("voice", s.cfg.Voice), s.cfg.SystemPrompt))
		recCfg.MaxDuration = s.cfg.MaxUtterance
	}

	sess, err := session.New(session.Config{
		Transcriber:  s.stt,
		Responder:    s.chat,
		Synthesizer:  s.tts,
		Capture:      audio.NewRecorder(lc, recCfg),
		Player:       audio.NewPlayer(lc),
		Policy:       policy,
		HistoryLimit: historyLimit,
		Listener:     lc,
		ResumeDelay:  resumeDelay,
		Logger:       logger,
	})
	if err != nil {
		lc.send(liveEvent{Type: "error", Message: err.Error()})
		return
	}

	lc.send(liveEvent{Type: "ready", Session: id})
	logger.Info("gateway session connected")

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		sess.End()
		cancel()
		wg.Wait()
		logger.Info("gateway session closed")
	}()

	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			frame := audio.Frame{
				Data:        append([]byte(nil), data...),
				SampleRate:  liveSampleRate,
				NumChannels: 1,
			}
			select {
			case lc.frames <- frame:
			default:
				// The session is not listening; shed the frame.
			}

		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "start":
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := sess.Run(ctx)
					if err != nil && !errors.Is(err, session.ErrAlreadyRunning) && !errors.Is(err, context.Canceled) {
						lc.send(liveEvent{Type: "error", Message: err.Error()})
					}
				}()
			case "stop":
				sess.End()
			case "force_stop":
				sess.ForceStop()
			case "playback_done":
				select {
				case lc.acks <- struct{}{}:
				default:
				}
			}
		}
	}
}

func queryBool(c *websocket.Conn, key string, fallback bool) bool {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
