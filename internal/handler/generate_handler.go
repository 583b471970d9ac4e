package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/service"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// GenerateHandler streams project generation as NDJSON.
type GenerateHandler struct {
	generator *service.Generator
}

// NewGenerateHandler creates a new generate handler.
func NewGenerateHandler(generator *service.Generator) *GenerateHandler {
	return &GenerateHandler{generator: generator}
}

// Register sets up generation routes.
func (h *GenerateHandler) Register(router fiber.Router) {
	router.Post("/generate", h.Generate)
}

// Generate plans and writes a new project, one JSON event per line.
func (h *GenerateHandler) Generate(c fiber.Ctx) error {
	var body struct {
		Description string `json:"description"`
		OutputDir   string `json:"output_dir"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(body.Description) == "" {
		return badRequest(c, "description is required")
	}
	if strings.TrimSpace(body.OutputDir) == "" {
		return badRequest(c, "output_dir is required")
	}

	runID := uuid.NewString()
	c.Set("Content-Type", "application/x-ndjson")
	c.Set("Cache-Control", "no-cache")
	c.Set("X-Run-ID", runID)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		// The request context does not outlive the handler, so the run gets its own.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		slog.Info("generation started", "run_id", runID, "output_dir", body.OutputDir)
		for e := range h.generator.Generate(ctx, body.Description, body.OutputDir) {
			if ctx.Err() != nil {
				continue
			}
			if err := writeEvent(w, e); err != nil {
				slog.Warn("generation client disconnected", "run_id", runID, "error", err)
				cancel()
			}
		}
		slog.Info("generation finished", "run_id", runID)
	})
}

func writeEvent(w *bufio.Writer, e domain.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.Flush()
}
