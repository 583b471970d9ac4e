package handler

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/ai"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
	"github.com/gofiber/fiber/v3"
)

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, port.ErrInvalidPath),
		errors.Is(err, port.ErrEmptyProject),
		errors.Is(err, port.ErrNotIndexed),
		errors.Is(err, port.ErrNoProjectRoot),
		errors.Is(err, port.ErrPlanParse):
		return fiber.StatusBadRequest
	case errors.Is(err, port.ErrPermission):
		return fiber.StatusForbidden
	case errors.Is(err, port.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrFetch):
		return fiber.StatusBadGateway
	case errors.Is(err, ai.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
