package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/files"
	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

// ProjectIndexer indexes a directory. Satisfied by *Indexer.
type ProjectIndexer interface {
	Index(ctx context.Context, target, token string) (domain.IndexStatus, error)
}

// Generator scaffolds a project: plan first, then one model call per file.
type Generator struct {
	planner   *Planner
	completer port.Completer
	indexer   ProjectIndexer
	cfg       GenerationConfig
}

// NewGenerator creates a generator. When indexer is not nil, a finished
// project is indexed right away and the stream reports the outcome.
func NewGenerator(planner *Planner, completer port.Completer, indexer ProjectIndexer, cfg GenerationConfig) *Generator {
	return &Generator{planner: planner, completer: completer, indexer: indexer, cfg: cfg.withDefaults()}
}

// Generate streams the events of a full plan-then-generate run. The channel
// is closed after the last event. Cancelling ctx stops the run; a consumer
// that stops reading must cancel ctx.
func (g *Generator) Generate(ctx context.Context, description, outputDir string) <-chan domain.Event {
	ch := make(chan domain.Event, 4)
	go func() {
		defer close(ch)
		emit := emitter(ctx, ch)

		if !emit(domain.Event{Type: domain.EventStatus, Message: "Planning project structure..."}) {
			return
		}
		plan, dir, err := g.planner.Plan(ctx, description, outputDir)
		if err != nil {
			slog.Error("project planning failed", "error", err)
			emit(domain.Event{Type: domain.EventError, Message: err.Error()})
			return
		}
		g.run(ctx, emit, description, plan, dir)
	}()
	return ch
}

// GenerateFromPlan streams the generation of an existing plan into projectDir.
func (g *Generator) GenerateFromPlan(ctx context.Context, description string, plan domain.ProjectPlan, projectDir string) <-chan domain.Event {
	ch := make(chan domain.Event, 4)
	go func() {
		defer close(ch)
		g.run(ctx, emitter(ctx, ch), description, plan, projectDir)
	}()
	return ch
}

func emitter(ctx context.Context, ch chan<- domain.Event) func(domain.Event) bool {
	return func(e domain.Event) bool {
		select {
		case ch <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}
}

func (g *Generator) run(ctx context.Context, emit func(domain.Event) bool, description string, plan domain.ProjectPlan, dir string) {
	if plan.Description == "" {
		plan.Description = description
	}
	total := len(plan.Files)
	if !emit(domain.Event{
		Type:        domain.EventPlan,
		ProjectName: plan.ProjectName,
		Description: plan.Description,
		TechStack:   string(plan.TechStack),
		TotalFiles:  total,
		ProjectPath: dir,
	}) {
		return
	}

	allPaths := strings.Join(plan.Paths(), "\n")
	written := []string{}
	for i, f := range plan.Files {
		rel := strings.TrimLeft(f.Path, `/\`)
		if rel == "" {
			continue
		}
		if !emit(domain.Event{Type: domain.EventGenerating, File: rel, Index: i + 1, Total: total}) {
			return
		}
		err := g.writeFile(ctx, description, plan, allPaths, rel, f.Purpose, dir)
		if errors.Is(err, port.ErrPermission) {
			slog.Warn("skipping planned file outside the project", "path", f.Path)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("file generation failed", "file", rel, "error", err)
			if !emit(domain.Event{Type: domain.EventFileError, File: rel, Error: err.Error()}) {
				return
			}
			continue
		}
		written = append(written, rel)
		if !emit(domain.Event{Type: domain.EventFileDone, File: rel}) {
			return
		}
	}

	slog.Info("project generated", "project", plan.ProjectName, "files", len(written), "planned", total)
	if !emit(domain.Event{
		Type:         domain.EventDone,
		ProjectName:  plan.ProjectName,
		ProjectPath:  dir,
		Description:  plan.Description,
		FilesCreated: written,
		FileCount:    len(written),
	}) {
		return
	}

	if g.indexer == nil {
		return
	}
	status, err := g.indexer.Index(ctx, dir, "")
	if err != nil {
		emit(domain.Event{Type: domain.EventIndexError, Message: err.Error()})
		return
	}
	emit(domain.Event{Type: domain.EventIndexed, FileCount: status.FileCount, ChunkCount: status.ChunkCount, ProjectPath: status.ProjectPath})
}

// writeFile generates one file and writes it below dir. Paths that resolve
// outside dir fail with port.ErrPermission after the model call.
func (g *Generator) writeFile(ctx context.Context, description string, plan domain.ProjectPlan, allPaths, rel, purpose, dir string) error {
	content, err := g.completer.Complete(ctx, port.CompletionRequest{
		System:      fileSystemPrompt,
		User:        fmt.Sprintf(fileUserPrompt, description, plan.TechStack, plan.ProjectName, rel, purpose, allPaths),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.FileMaxTokens,
	})
	if err != nil {
		return err
	}
	full, err := files.Resolve(dir, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
