package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	openai "github.com/sashabaranov/go-openai"

	"github.com/parleyvoice/parley/pkg/ai"
	"github.com/parleyvoice/parley/pkg/ai/llm"
	"github.com/parleyvoice/parley/pkg/ai/stt"
	"github.com/parleyvoice/parley/pkg/ai/tts"
	"github.com/parleyvoice/parley/pkg/audio"
	api "github.com/parleyvoice/parley/pkg/relay"
)

const (
	sttModel       = "nova-2"
	maxReplyTokens = 1024
)

// Deepgram calls the Deepgram REST API for transcription and speech
// synthesis.
type Deepgram struct {
	baseURL string
	apiKey  string
	voice   string
	httpc   *http.Client
}

// NewDeepgram creates a Deepgram provider. defaultVoice is used for
// synthesis requests that carry no voice of their own.
func NewDeepgram(baseURL, apiKey, defaultVoice string, httpc *http.Client) *Deepgram {
	return &Deepgram{
		baseURL: baseURL,
		apiKey:  apiKey,
		voice:   defaultVoice,
		httpc:   httpc,
	}
}

var (
	_ stt.Transcriber = (*Deepgram)(nil)
	_ tts.Synthesizer = (*Deepgram)(nil)
)

// Transcribe submits audio to the listen endpoint and returns the first
// alternative's transcript, empty when nothing was recognized.
func (d *Deepgram) Transcribe(ctx context.Context, seg audio.Segment) (string, error) {
	mime := seg.MIMEType
	if mime == "" {
		mime = "audio/wav"
	}

	u := d.baseURL + "/v1/listen?model=" + sttModel + "&smart_format=true"
	body, err := d.post(ctx, ai.OpTranscribe, u, mime, bytes.NewReader(seg.Data))
	if err != nil {
		return "", err
	}

	var payload struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	if len(payload.Results.Channels) == 0 || len(payload.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return payload.Results.Channels[0].Alternatives[0].Transcript, nil
}

// Synthesize converts text to speech via the speak endpoint. The returned
// bytes are the provider's MP3 stream.
func (d *Deepgram) Synthesize(ctx context.Context, req tts.SynthesizeRequest) ([]byte, error) {
	voice := req.Voice
	if voice == "" {
		voice = d.voice
	}

	payload, err := json.Marshal(map[string]string{"text": req.Text})
	if err != nil {
		return nil, fmt.Errorf("encode speak request: %w", err)
	}

	u := d.baseURL + "/v1/speak?model=" + url.QueryEscape(voice)
	return d.post(ctx, ai.OpSynthesize, u, "application/json", bytes.NewReader(payload))
}

func (d *Deepgram) post(ctx context.Context, op ai.Op, u, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := d.httpc.Do(req)
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
	if resp.StatusCode != http.StatusOK {
		return nil, ai.NewRequestError(op, resp.StatusCode)
	}
	return data, nil
}

// ChatResponder generates replies with the OpenAI chat completion API.
type ChatResponder struct {
	client *openai.Client
	model  string
}

// NewChatResponder wraps an OpenAI client for the given model.
func NewChatResponder(client *openai.Client, model string) *ChatResponder {
	return &ChatResponder{client: client, model: model}
}

var _ llm.Responder = (*ChatResponder)(nil)

// Chat sends the context, with the system prompt prepended, and returns the
// first choice. A completion without content yields the fixed fallback line
// rather than an error.
func (r *ChatResponder) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.model,
		Messages:  msgs,
		MaxTokens: maxReplyTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return llm.ChatResponse{}, ctx.Err()
		}
		status := http.StatusBadGateway
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
			status = apiErr.HTTPStatusCode
		}
		return llm.ChatResponse{}, ai.NewRequestError(ai.OpRespond, status)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return llm.ChatResponse{ReplyText: api.FallbackReply}, nil
	}
	return llm.ChatResponse{ReplyText: resp.Choices[0].Message.Content}, nil
}
