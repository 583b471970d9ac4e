package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestLog tags every request with an id (reusing a client-supplied
// X-Request-ID) and logs it once the handler returns.
func RequestLog() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data BEFORE handler execution (Fiber reuses context objects)
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		method := c.Method()
		path := c.Path()
		ip := c.IP()

		c.Locals(requestIDKey, id)
		c.Set(RequestIDHeader, id)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		attrs := []any{
			"request_id", id,
			"method", method,
			"path", path,
			"status", status,
			"ip", ip,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			slog.Error("http request", append(attrs, "error", err)...)
		case status >= fiber.StatusBadRequest:
			slog.Warn("http request", attrs...)
		default:
			slog.Info("http request", attrs...)
		}
		return err
	}
}

// RequestID returns the id assigned by RequestLog, or "" outside it.
func RequestID(c fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
