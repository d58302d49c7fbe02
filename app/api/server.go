package api

import (
	"context"
	"errors"
	"log/slog"

	"kaja/app/client/llm"
	"kaja/app/config"
	"kaja/app/service/conversation"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

type chatRequest struct {
	SessionID      string `json:"session_id"`
	WalletAddress  string `json:"wallet_address"`
	Message        string `json:"message"`
	TradingAllowed bool   `json:"trading_allowed"`
}

type chatResponse struct {
	Text     string              `json:"text"`
	Status   conversation.Status `json:"status"`
	Artifact any                 `json:"artifact,omitempty"`
}

// Server exposes the orchestrator over HTTP. Handlers only parse, delegate
// and render.
type Server struct {
	cfg             *config.Config
	conversationSvc *conversation.Service

	app *fiber.App
}

func New(di *do.Injector) (*Server, error) {
	s := &Server{
		cfg:             do.MustInvoke[*config.Config](di),
		conversationSvc: do.MustInvoke[*conversation.Service](di),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Post("/v1/chat", s.handleChat)
	s.app.Delete("/v1/chat/:session_id", s.handleEndSession)

	return s, nil
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" || req.Message == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id and message are required")
	}

	outcome, err := s.conversationSvc.Answer(c.Context(), conversation.Request{
		SessionID:      req.SessionID,
		UserWallet:     req.WalletAddress,
		Message:        req.Message,
		TradingAllowed: req.TradingAllowed,
	})

	switch {
	case err == nil:
	case errors.Is(err, llm.ErrBackendUnavailable), errors.Is(err, llm.ErrMalformedReply):
		return c.Status(fiber.StatusServiceUnavailable).JSON(chatResponse{
			Text:   outcome.Text,
			Status: outcome.Status,
		})
	case errors.Is(err, conversation.ErrNoDecision):
		// The outcome is still well formed, surface it with the fallback text.
	default:
		slog.Error("Chat request failed",
			"session_id", req.SessionID,
			"error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	return c.JSON(chatResponse{
		Text:     outcome.Text,
		Status:   outcome.Status,
		Artifact: outcome.Artifact,
	})
}

func (s *Server) handleEndSession(c *fiber.Ctx) error {
	if err := s.conversationSvc.EndSession(c.Context(), c.Params("session_id")); err != nil {
		slog.Error("Failed to end session",
			"session_id", c.Params("session_id"),
			"error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()

	slog.Info("HTTP server listening", "addr", s.cfg.API.Listen)

	if err := s.app.Listen(s.cfg.API.Listen); err != nil {
		return err
	}

	return nil
}
