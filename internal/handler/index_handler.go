package handler

import (
	"fmt"
	"strings"

	"github.com/arturoeanton/go-codebase-assistant/internal/service"
	"github.com/gofiber/fiber/v3"
)

// IndexHandler handles indexing and index status endpoints.
type IndexHandler struct {
	indexer *service.Indexer
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(indexer *service.Indexer) *IndexHandler {
	return &IndexHandler{indexer: indexer}
}

// Register sets up index routes.
func (h *IndexHandler) Register(router fiber.Router) {
	router.Get("/status", h.Status)
	router.Post("/index", h.Index)
	router.Delete("/index", h.Clear)
}

// Status returns the active index status.
func (h *IndexHandler) Status(c fiber.Ctx) error {
	return c.JSON(h.indexer.Status())
}

// Index indexes a local directory or a remote git repository.
func (h *IndexHandler) Index(c fiber.Ctx) error {
	var body struct {
		Path        string `json:"path"`
		GitHubToken string `json:"github_token"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(body.Path) == "" {
		return badRequest(c, "path is required")
	}

	status, err := h.indexer.Index(c.Context(), strings.TrimSpace(body.Path), body.GitHubToken)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"message":      fmt.Sprintf("Successfully indexed '%s'", status.ProjectName),
		"project_name": status.ProjectName,
		"project_path": status.ProjectPath,
		"file_count":   status.FileCount,
		"chunk_count":  status.ChunkCount,
	})
}

// Clear drops the active index.
func (h *IndexHandler) Clear(c fiber.Ctx) error {
	if err := h.indexer.Clear(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Index cleared", "indexed": false})
}
