// Package wsclient implements the client side of the relay's /ws/session
// gateway: a websocket that streams capture audio up as binary frames,
// receives synthesized audio back, and exchanges JSON control and event
// messages.
package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is a JSON message from the gateway.
type Event struct {
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

type control struct {
	Type string `json:"type"`
}

// Client is a gateway session connection. Reads happen from one goroutine;
// writes are serialized internally and may come from several. Close may be
// called concurrently with a blocked Read.
type Client struct {
	serverURL string
	logger    *slog.Logger

	writeMu sync.Mutex

	mu   sync.Mutex // guards conn
	conn *websocket.Conn
}

// New creates a client for the given relay base URL, e.g.
// "http://localhost:3000".
func New(serverURL string, logger *slog.Logger) *Client {
	return &Client{serverURL: serverURL, logger: logger}
}

// Connect dials the session gateway. mode is "solo" or "meeting"; params
// carry optional session settings such as voice or all_respond.
func (c *Client) Connect(ctx context.Context, mode string, params url.Values) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws/session"

	q := u.Query()
	q.Set("mode", mode)
	for key, vals := range params {
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()

	c.logger.Debug("connecting to gateway", slog.String("url", u.String()))

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Info("gateway connected", slog.String("mode", mode))
	return nil
}

// current snapshots the connection so reads and writes see a stable value
// even when Close nils the field from another goroutine. Closing the
// underlying connection unblocks any in-flight ReadMessage.
func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Read returns the next gateway message: a parsed event for text frames, or
// raw synthesized audio for binary frames (in which case the event is nil).
func (c *Client) Read() (*Event, []byte, error) {
	conn := c.current()
	if conn == nil {
		return nil, nil, fmt.Errorf("not connected")
	}

	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, fmt.Errorf("read gateway message: %w", err)
	}
	if messageType == websocket.BinaryMessage {
		return nil, data, nil
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, nil, fmt.Errorf("decode gateway event: %w", err)
	}
	return &ev, nil, nil
}

// SendAudio streams one PCM frame to the gateway.
func (c *Client) SendAudio(frame []byte) error {
	return c.write(websocket.BinaryMessage, frame)
}

// Start begins the session loop.
func (c *Client) Start() error { return c.sendControl("start") }

// Stop ends the session.
func (c *Client) Stop() error { return c.sendControl("stop") }

// ForceStop interrupts the current turn without ending the session.
func (c *Client) ForceStop() error { return c.sendControl("force_stop") }

// PlaybackDone acknowledges that the last audio message finished playing.
func (c *Client) PlaybackDone() error { return c.sendControl("playback_done") }

func (c *Client) sendControl(kind string) error {
	data, err := json.Marshal(control{Type: kind})
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Client) write(messageType int, data []byte) error {
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("write gateway message: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
