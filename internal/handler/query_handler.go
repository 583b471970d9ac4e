package handler

import (
	"errors"
	"strings"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
	"github.com/arturoeanton/go-codebase-assistant/internal/service"
	"github.com/gofiber/fiber/v3"
)

// QueryHandler answers questions about the indexed project.
type QueryHandler struct {
	assistant *service.Assistant
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(assistant *service.Assistant) *QueryHandler {
	return &QueryHandler{assistant: assistant}
}

// Register sets up query routes.
func (h *QueryHandler) Register(router fiber.Router) {
	router.Post("/query", h.Query)
}

// Query answers one question, using chat_history to resolve follow-ups.
func (h *QueryHandler) Query(c fiber.Ctx) error {
	var body struct {
		Question    string                    `json:"question"`
		ChatHistory []domain.ConversationTurn `json:"chat_history"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(body.Question) == "" {
		return badRequest(c, "question is required")
	}

	answer, err := h.assistant.Query(c.Context(), body.Question, body.ChatHistory)
	if errors.Is(err, port.ErrNotIndexed) {
		return badRequest(c, "No codebase indexed yet.")
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(answer)
}
