package relay

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/parleyvoice/parley/pkg/ai/llm"
	"github.com/parleyvoice/parley/pkg/ai/tts"
	"github.com/parleyvoice/parley/pkg/audio"
	api "github.com/parleyvoice/parley/pkg/relay"
)

// handleSTT accepts raw audio and returns the normalized transcript.
func (s *Server) handleSTT(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "audio body is required")
	}

	seg := audio.Segment{
		Data:     c.Body(),
		MIMEType: c.Get(fiber.HeaderContentType),
	}
	transcript, err := s.stt.Transcribe(c.UserContext(), seg)
	if err != nil {
		s.logger.Warn("transcription failed", slog.String("error", err.Error()))
		return fiber.NewError(fiber.StatusBadGateway, "transcription failed")
	}
	return c.JSON(api.TranscriptResponse{Transcript: transcript})
}

// handleChat accepts role-tagged context and returns the generated reply.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req api.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat request")
	}
	if len(req.Messages) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "messages are required")
	}

	resp, err := s.chat.Chat(c.UserContext(), llm.ChatRequest{
		Messages:     req.Messages,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		s.logger.Warn("chat completion failed", slog.String("error", err.Error()))
		return fiber.NewError(fiber.StatusBadGateway, "chat completion failed")
	}
	return c.JSON(api.ChatResponse{ReplyText: resp.ReplyText})
}

// handleTTS accepts reply text and streams back synthesized audio.
func (s *Server) handleTTS(c *fiber.Ctx) error {
	var req api.SpeakRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid speak request")
	}
	if req.Text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	data, err := s.tts.Synthesize(c.UserContext(), tts.SynthesizeRequest{
		Text:  req.Text,
		Voice: req.Voice,
	})
	if err != nil {
		s.logger.Warn("speech synthesis failed", slog.String("error", err.Error()))
		return fiber.NewError(fiber.StatusBadGateway, "speech synthesis failed")
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(data)
}
