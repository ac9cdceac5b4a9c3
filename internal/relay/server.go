// Package relay implements the parley relay server. It holds the provider
// credentials and exposes two surfaces: a small normalized HTTP API
// (/api/stt, /api/chat, /api/tts) for clients that run the conversation loop
// themselves, and a websocket gateway (/ws/session) that runs the whole
// session server-side against a stream of browser audio.
package relay

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/parleyvoice/parley/pkg/ai/llm"
	"github.com/parleyvoice/parley/pkg/ai/stt"
	"github.com/parleyvoice/parley/pkg/ai/tts"
)

const defaultProviderTimeout = 60 * time.Second

// Config holds relay server settings. DeepgramAPIKey and OpenAIAPIKey are
// required; the base URLs exist so tests can point the providers at stubs.
type Config struct {
	Port string

	DeepgramAPIKey string
	OpenAIAPIKey   string

	DeepgramBaseURL string
	OpenAIBaseURL   string

	// ChatModel defaults to GPT-4o.
	ChatModel string

	// Voice is the synthesis voice used when a request names none.
	Voice string

	// SystemPrompt drives solo gateway sessions.
	SystemPrompt string

	// AllRespond is the default meeting reply policy for gateway sessions.
	AllRespond bool

	// MaxUtterance caps a solo gateway capture; the session transcribes
	// whatever arrived once it elapses.
	MaxUtterance time.Duration

	// SilenceTimeout ends a meeting gateway capture after sustained quiet.
	SilenceTimeout time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Server is the relay HTTP and websocket server.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger

	stt  stt.Transcriber
	chat llm.Responder
	tts  tts.Synthesizer
}

// New creates a relay server from the configuration.
func New(cfg Config) (*Server, error) {
	if cfg.DeepgramAPIKey == "" {
		return nil, errors.New("deepgram api key is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Port == "" {
		cfg.Port = "3000"
	}
	if cfg.DeepgramBaseURL == "" {
		cfg.DeepgramBaseURL = "https://api.deepgram.com"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4o
	}
	if cfg.Voice == "" {
		cfg.Voice = "aura-asteria-en"
	}
	if cfg.MaxUtterance <= 0 {
		cfg.MaxUtterance = soloMaxUtterance
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = meetingSilence
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultProviderTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	occfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		occfg.BaseURL = cfg.OpenAIBaseURL
	}
	occfg.HTTPClient = cfg.HTTPClient

	dg := NewDeepgram(cfg.DeepgramBaseURL, cfg.DeepgramAPIKey, cfg.Voice, cfg.HTTPClient)

	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		stt:    dg,
		chat:   NewChatResponder(openai.NewClientWithConfig(occfg), cfg.ChatModel),
		tts:    dg,
	}
	s.app = s.router()
	return s, nil
}

func (s *Server) router() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "parley-relay",
		DisableStartupMessage: true,
		BodyLimit:             32 * 1024 * 1024, // browser audio uploads
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	api.Post("/stt", s.handleSTT)
	api.Post("/chat", s.handleChat)
	api.Post("/tts", s.handleTTS)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/session", websocket.New(s.handleSession))

	return app
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("relay listening", slog.String("port", s.cfg.Port))
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
