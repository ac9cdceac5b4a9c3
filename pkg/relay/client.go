// Package relay provides the HTTP client for the parley relay API. The relay
// holds the provider credentials; clients speak a small normalized surface:
// POST /api/stt with raw audio, POST /api/chat with role-tagged context, and
// POST /api/tts returning synthesized audio bytes.
//
// Client implements the stt.Transcriber, llm.Responder, and tts.Synthesizer
// ports, so a session can be wired straight onto a relay.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/parleyvoice/parley/pkg/ai"
	"github.com/parleyvoice/parley/pkg/ai/llm"
	"github.com/parleyvoice/parley/pkg/ai/stt"
	"github.com/parleyvoice/parley/pkg/ai/tts"
	"github.com/parleyvoice/parley/pkg/audio"
)

// FallbackReply is used when the relay produces no recognizable reply text.
const FallbackReply = "I'm not sure how to respond to that."

const defaultTimeout = 60 * time.Second

// TranscriptResponse is the normalized transcription payload.
type TranscriptResponse struct {
	Transcript string `json:"transcript"`
}

// ChatRequest is the outbound chat payload.
type ChatRequest struct {
	Messages     []llm.Message `json:"messages"`
	SystemPrompt string        `json:"systemPrompt,omitempty"`
}

// ChatResponse is the normalized chat payload.
type ChatResponse struct {
	ReplyText string `json:"replyText"`
}

// SpeakRequest is the outbound synthesis payload.
type SpeakRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Client talks to a parley relay.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a relay client for the given base URL, e.g.
// "http://localhost:3000".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ stt.Transcriber = (*Client)(nil)
	_ llm.Responder   = (*Client)(nil)
	_ tts.Synthesizer = (*Client)(nil)
)

// Transcribe submits captured audio and returns the transcript. An empty
// transcript means no speech was recognized and is not an error.
func (c *Client) Transcribe(ctx context.Context, seg audio.Segment) (string, error) {
	mime := seg.MIMEType
	if mime == "" {
		mime = "audio/wav"
	}

	body, err := c.post(ctx, ai.OpTranscribe, "/api/stt", mime, bytes.NewReader(seg.Data))
	if err != nil {
		return "", err
	}

	var resp TranscriptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	return resp.Transcript, nil
}

// Chat submits the conversation context and returns the generated reply.
// A reply without content falls back to a fixed apology line.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	payload, err := json.Marshal(ChatRequest{
		Messages:     req.Messages,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("encode chat request: %w", err)
	}

	body, err := c.post(ctx, ai.OpRespond, "/api/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		return llm.ChatResponse{}, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return llm.ChatResponse{}, fmt.Errorf("decode chat response: %w", err)
	}
	if resp.ReplyText == "" {
		c.logger.Warn("chat reply missing content, using fallback")
		resp.ReplyText = FallbackReply
	}
	return llm.ChatResponse{ReplyText: resp.ReplyText}, nil
}

// Synthesize converts reply text to audio bytes in the relay's output
// encoding.
func (c *Client) Synthesize(ctx context.Context, req tts.SynthesizeRequest) ([]byte, error) {
	payload, err := json.Marshal(SpeakRequest{Text: req.Text, Voice: req.Voice})
	if err != nil {
		return nil, fmt.Errorf("encode speak request: %w", err)
	}
	return c.post(ctx, ai.OpSynthesize, "/api/tts", "application/json", bytes.NewReader(payload))
}

func (c *Client) post(ctx context.Context, op ai.Op, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("relay request failed",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		return nil, ai.NewRequestError(op, resp.StatusCode)
	}
	return data, nil
}
