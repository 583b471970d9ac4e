package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

const (
	rawExcerptLength   = 300
	defaultProjectName = "new-project"
	minPlannedFiles    = 5
)

// GenerationConfig tunes project generation.
type GenerationConfig struct {
	PlanMaxTokens int
	FileMaxTokens int
	Temperature   float32
	MaxFiles      int // plans longer than this are truncated
}

// DefaultGenerationConfig returns the stock generation settings.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{PlanMaxTokens: 1024, FileMaxTokens: 2048, Temperature: 0.2, MaxFiles: 20}
}

func (c GenerationConfig) withDefaults() GenerationConfig {
	def := DefaultGenerationConfig()
	if c.PlanMaxTokens <= 0 {
		c.PlanMaxTokens = def.PlanMaxTokens
	}
	if c.FileMaxTokens <= 0 {
		c.FileMaxTokens = def.FileMaxTokens
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = def.MaxFiles
	}
	return c
}

// Planner asks the model for the file list of a new project.
type Planner struct {
	completer port.Completer
	cfg       GenerationConfig
}

// NewPlanner creates a planner.
func NewPlanner(completer port.Completer, cfg GenerationConfig) *Planner {
	return &Planner{completer: completer, cfg: cfg.withDefaults()}
}

// Plan produces a ProjectPlan for description and creates its directory
// below outputDir. It returns the plan and the absolute project directory.
func (p *Planner) Plan(ctx context.Context, description, outputDir string) (domain.ProjectPlan, string, error) {
	raw, err := p.completer.Complete(ctx, port.CompletionRequest{
		System:      planSystemPrompt,
		User:        "Project: " + description,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.PlanMaxTokens,
	})
	if err != nil {
		return domain.ProjectPlan{}, "", fmt.Errorf("plan project: %w", err)
	}

	plan, err := ParsePlan(raw)
	if err != nil {
		return domain.ProjectPlan{}, "", err
	}

	plan.ProjectName = SanitizeProjectName(plan.ProjectName)
	if plan.Description == "" {
		plan.Description = description
	}
	if len(plan.Files) > p.cfg.MaxFiles {
		slog.Warn("plan has too many files, truncating", "files", len(plan.Files), "max", p.cfg.MaxFiles)
		plan.Files = plan.Files[:p.cfg.MaxFiles]
	}
	if len(plan.Files) < minPlannedFiles {
		slog.Warn("plan has few files", "files", len(plan.Files))
	}

	dir, err := filepath.Abs(filepath.Join(outputDir, plan.ProjectName))
	if err != nil {
		return domain.ProjectPlan{}, "", fmt.Errorf("resolve project dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.ProjectPlan{}, "", fmt.Errorf("create project dir: %w", err)
	}

	slog.Info("project planned", "project", plan.ProjectName, "files", len(plan.Files), "dir", dir)
	return plan, dir, nil
}

var (
	openingFence = regexp.MustCompile("^```(?:json)?\\s*")
	closingFence = regexp.MustCompile("\\s*```$")
)

// CleanJSON strips markdown fences and surrounding commentary, keeping the
// text from the first '{' to the last '}'.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = openingFence.ReplaceAllString(s, "")
	s = closingFence.ReplaceAllString(s, "")
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start != -1 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// ParsePlan decodes a model response into a plan with at least one file.
func ParsePlan(raw string) (domain.ProjectPlan, error) {
	var plan domain.ProjectPlan
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &plan); err != nil {
		return domain.ProjectPlan{}, &port.PlanParseError{Reason: err.Error(), Raw: excerpt(raw, rawExcerptLength)}
	}
	if len(plan.Files) == 0 {
		return domain.ProjectPlan{}, &port.PlanParseError{Reason: "no files in the project plan", Raw: excerpt(raw, rawExcerptLength)}
	}
	return plan, nil
}

var (
	nameInvalid = regexp.MustCompile(`[^\p{L}\p{N}_\-]`)
	dashRuns    = regexp.MustCompile(`-{2,}`)
)

// SanitizeProjectName makes a model-chosen name safe as a directory name:
// characters other than letters, digits, '_' and '-' become '-', dash runs
// collapse and edge dashes are trimmed.
func SanitizeProjectName(name string) string {
	s := nameInvalid.ReplaceAllString(name, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return defaultProjectName
	}
	return s
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
