package handler

import (
	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/files"
	"github.com/gofiber/fiber/v3"
)

// FilesHandler exposes the project file manager.
type FilesHandler struct {
	files *files.Manager
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(fm *files.Manager) *FilesHandler {
	return &FilesHandler{files: fm}
}

// Register sets up file routes.
func (h *FilesHandler) Register(router fiber.Router) {
	g := router.Group("/files")
	g.Get("/tree", h.Tree)
	g.Get("/read", h.Read)
	g.Post("/write", h.Write)
	g.Delete("/delete", h.Delete)
	g.Post("/rename", h.Rename)
}

// Tree lists the project files.
func (h *FilesHandler) Tree(c fiber.Ctx) error {
	tree, err := h.files.Tree()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tree)
}

// Read returns the content of ?path=.
func (h *FilesHandler) Read(c fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return badRequest(c, "path is required")
	}
	content, err := h.files.Read(path)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(content)
}

// Write creates or overwrites a file.
func (h *FilesHandler) Write(c fiber.Ctx) error {
	var body struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Path == "" {
		return badRequest(c, "path is required")
	}
	res, err := h.files.Write(body.Path, body.Content)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

// Delete removes ?path=.
func (h *FilesHandler) Delete(c fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return badRequest(c, "path is required")
	}
	if err := h.files.Delete(path); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"path": path, "action": "deleted"})
}

// Rename moves a file or directory.
func (h *FilesHandler) Rename(c fiber.Ctx) error {
	var body struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.OldPath == "" || body.NewPath == "" {
		return badRequest(c, "old_path and new_path are required")
	}
	if err := h.files.Rename(body.OldPath, body.NewPath); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"old_path": body.OldPath, "new_path": body.NewPath, "action": "renamed"})
}
