package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports.
var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrFetch         = errors.New("fetch failed")
	ErrEmptyProject  = errors.New("no supported files found")
	ErrPlanParse     = errors.New("could not parse project plan")
	ErrPermission    = errors.New("path traversal blocked")
	ErrNotIndexed    = errors.New("no project indexed")
	ErrNoProjectRoot = errors.New("no project root set")
	ErrNotFound      = errors.New("not found")
)

// FetchError reports a failed remote fetch with the tool's diagnostic output.
type FetchError struct {
	URL    string // redacted
	Stderr string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("git clone failed: %s", e.Stderr)
}

func (e *FetchError) Unwrap() error { return ErrFetch }

// PlanParseError reports a plan response that could not be used.
// Raw holds the beginning of the model output.
type PlanParseError struct {
	Reason string
	Raw    string
}

func (e *PlanParseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("%s: %s", ErrPlanParse, e.Reason)
	}
	return fmt.Sprintf("%s: %s\nRaw: %s", ErrPlanParse, e.Reason, e.Raw)
}

func (e *PlanParseError) Unwrap() error { return ErrPlanParse }
