package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-codebase-assistant/internal/port"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("model backend unavailable")

// Resilient wraps an AIProvider with a client-side rate limit and a circuit
// breaker that stops calling a backend after consecutive failures.
type Resilient struct {
	next    port.AIProvider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewResilient wraps next. requestsPerMinute <= 0 disables rate limiting;
// maxFailures <= 0 defaults to 5.
func NewResilient(next port.AIProvider, requestsPerMinute, maxFailures int) *Resilient {
	if maxFailures <= 0 {
		maxFailures = 5
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		burst := requestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "model-backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Resilient{next: next, breaker: breaker, limiter: limiter}
}

// ModelName returns the wrapped provider's chat model.
func (r *Resilient) ModelName() string {
	return r.next.ModelName()
}

// Complete forwards to the wrapped provider.
func (r *Resilient) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	res, err := r.call(ctx, func() (interface{}, error) {
		return r.next.Complete(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Embed forwards to the wrapped provider.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := r.call(ctx, func() (interface{}, error) {
		return r.next.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

// EmbedBatch forwards to the wrapped provider.
func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := r.call(ctx, func() (interface{}, error) {
		return r.next.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return res.([][]float32), nil
}

func (r *Resilient) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	res, err := r.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, err
}

var _ port.AIProvider = (*Resilient)(nil)
