package relay_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/parleyvoice/parley/internal/relay"
	api "github.com/parleyvoice/parley/pkg/relay"
)

const deepgramTranscriptJSON = `{"results":{"channels":[{"alternatives":[{"transcript":"Hello world"}]}]}}`

func newTestServer(t *testing.T, deepgram, openaiStub http.HandlerFunc) *relay.Server {
	t.Helper()
	return newTestServerWith(t, deepgram, openaiStub, nil)
}

func newTestServerWith(t *testing.T, deepgram, openaiStub http.HandlerFunc, tune func(*relay.Config)) *relay.Server {
	t.Helper()

	if deepgram == nil {
		deepgram = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected deepgram call", http.StatusInternalServerError)
		}
	}
	if openaiStub == nil {
		openaiStub = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected openai call", http.StatusInternalServerError)
		}
	}

	dgSrv := httptest.NewServer(deepgram)
	t.Cleanup(dgSrv.Close)
	oaSrv := httptest.NewServer(openaiStub)
	t.Cleanup(oaSrv.Close)

	cfg := relay.Config{
		DeepgramAPIKey:  "dg-key",
		OpenAIAPIKey:    "oa-key",
		DeepgramBaseURL: dgSrv.URL,
		OpenAIBaseURL:   oaSrv.URL + "/v1",
		Voice:           "aura-asteria-en",
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if tune != nil {
		tune(&cfg)
	}
	srv, err := relay.New(cfg)
	if err != nil {
		t.Fatalf("new relay server: %v", err)
	}
	return srv
}

func TestHealth(t *testing.T) {
	is := is.New(t)

	srv := newTestServer(t, nil, nil)
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), -1)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusOK)
}

func TestSTTEndpoint(t *testing.T) {
	is := is.New(t)

	var gotAuth, gotContentType, gotQuery string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/v1/listen")
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(deepgramTranscriptJSON))
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/stt", bytes.NewReader([]byte{0x01, 0x02}))
	req.Header.Set("Content-Type", "audio/wav")
	resp, err := srv.App().Test(req, -1)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusOK)

	var out api.TranscriptResponse
	is.NoErr(json.NewDecoder(resp.Body).Decode(&out))
	is.Equal(out.Transcript, "Hello world")
	is.Equal(gotAuth, "Token dg-key")
	is.Equal(gotContentType, "audio/wav")
	is.True(strings.Contains(gotQuery, "model=nova-2"))
	is.True(strings.Contains(gotQuery, "smart_format=true"))
}

func TestSTTEmptyBody(t *testing.T) {
	is := is.New(t)

	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/stt", nil)
	resp, err := srv.App().Test(req, -1)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestSTTUpstreamFailure(t *testing.T) {
	is := is.New(t)

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/stt", bytes.NewReader([]byte{0x01}))
	resp, err := srv.App().Test(req, -1)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusBadGateway)
}

func TestChatEndpoint(t *testing.T) {
	is := is.New(t)

	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}
	srv := newTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/v1/chat/completions")
		is.NoErr(json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi there!"}}]}`))
	})

	body, _ := json.Marshal(map[string]any{
		"messages":     []map[string]string{{"role": "user", "content": "Hello"}},
		"systemPrompt": "You are a helpful voice assistant.",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusOK)

	var out api.ChatResponse
	is.NoErr(json.NewDecoder(resp.Body).Decode(&out))
	is.Equal(out.ReplyText, "Hi there!")

	// System prompt is prepended, then the conversation context in order.
	is.Equal(len(gotBody.Messages), 2)
	is.Equal(gotBody.Messages[0].Role, "system")
	is.Equal(gotBody.Messages[0].Content, "You are a helpful voice assistant.")
	is.Equal(gotBody.Messages[1].Role, "user")
	is.Equal(gotBody.Messages[1].Content, "Hello")
	is.Equal(gotBody.MaxTokens, 1024)
}

func TestChatFallbackOnEmptyCompletion(t *testing.T) {
	is := is.New(t)

	srv := newTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	})

	body, _ := json.Marshal(map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Hello"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusOK)

	var out api.ChatResponse
	is.NoErr(json.NewDecoder(resp.Body).Decode(&out))
	is.Equal(out.ReplyText, api.FallbackReply)
}

func TestChatRequiresMessages(t *testing.T) {
	is := is.New(t)

	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestTTSEndpoint(t *testing.T) {
	is := is.New(t)

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/v1/speak")
		is.Equal(r.URL.Query().Get("model"), "aura-orion-en")

		var speak struct {
			Text string `json:"text"`
		}
		is.NoErr(json.NewDecoder(r.Body).Decode(&speak))
		is.Equal(speak.Text, "Hi there!")

		w.Write([]byte("mp3-bytes"))
	}, nil)

	body, _ := json.Marshal(api.SpeakRequest{Text: "Hi there!", Voice: "aura-orion-en"})
	req := httptest.NewRequest(http.MethodPost, "/api/tts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get("Content-Type"), "audio/mpeg")

	data, err := io.ReadAll(resp.Body)
	is.NoErr(err)
	is.Equal(data, []byte("mp3-bytes"))
}

func TestTTSRequiresText(t *testing.T) {
	is := is.New(t)

	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/tts", strings.NewReader(`{"voice":"aura-asteria-en"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestNewRequiresCredentials(t *testing.T) {
	is := is.New(t)

	_, err := relay.New(relay.Config{OpenAIAPIKey: "oa-key"})
	is.True(err != nil)

	_, err = relay.New(relay.Config{DeepgramAPIKey: "dg-key"})
	is.True(err != nil)
}
