package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arturoeanton/go-codebase-assistant/internal/adapter/vcs"
	"github.com/arturoeanton/go-codebase-assistant/internal/chunker"
	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

// DefaultIgnoreDirs are never descended into while loading a project.
var DefaultIgnoreDirs = []string{"node_modules", ".git", "__pycache__", ".venv", "venv", "dist", "build", ".next", "vendor"}

const embedBatchSize = 64

// Indexer loads a project, chunks and embeds it, and replaces the active index.
type Indexer struct {
	session   *Session
	store     port.IndexStore
	embedder  port.Embedder
	vcs       port.VCSProvider
	chunker   *chunker.Chunker
	cloneBase string
	ignore    map[string]bool

	onIndexed func(domain.IndexStatus)
	onCleared func()
}

// NewIndexer creates an indexer. Remote repositories are cloned below
// cloneBase ("" = OS temp dir). extraIgnore adds directory names to DefaultIgnoreDirs.
func NewIndexer(session *Session, store port.IndexStore, embedder port.Embedder, vcsProvider port.VCSProvider, c *chunker.Chunker, cloneBase string, extraIgnore ...string) *Indexer {
	ignore := make(map[string]bool, len(DefaultIgnoreDirs)+len(extraIgnore))
	for _, d := range DefaultIgnoreDirs {
		ignore[d] = true
	}
	for _, d := range extraIgnore {
		ignore[d] = true
	}
	return &Indexer{
		session:   session,
		store:     store,
		embedder:  embedder,
		vcs:       vcsProvider,
		chunker:   c,
		cloneBase: cloneBase,
		ignore:    ignore,
	}
}

// Notify registers callbacks run after an index becomes active
// (Index, Restore) and after Clear. Either may be nil.
func (s *Indexer) Notify(onIndexed func(domain.IndexStatus), onCleared func()) {
	s.onIndexed = onIndexed
	s.onCleared = onCleared
}

// Status returns the current index status.
func (s *Indexer) Status() domain.IndexStatus {
	return s.session.Status()
}

// Index builds a fresh index from a local directory or a remote git URL.
// token, when set, is embedded in https clone URLs.
func (s *Indexer) Index(ctx context.Context, target, token string) (domain.IndexStatus, error) {
	start := time.Now()
	slog.Info("indexing project", "target", vcs.Redact(target))

	root, projectName, err := s.resolve(ctx, target, token)
	if err != nil {
		return domain.IndexStatus{}, err
	}

	docs, err := s.LoadDocuments(ctx, root)
	if err != nil {
		return domain.IndexStatus{}, err
	}
	if len(docs) == 0 {
		return domain.IndexStatus{}, fmt.Errorf("%w in %s", port.ErrEmptyProject, projectName)
	}

	chunks := s.chunker.SplitAll(docs)
	embedded, err := s.embed(ctx, chunks)
	if err != nil {
		return domain.IndexStatus{}, err
	}

	status := domain.IndexStatus{
		Indexed:     true,
		ProjectName: projectName,
		ProjectPath: root,
		FileCount:   countSources(docs),
		ChunkCount:  len(chunks),
	}

	idx, err := s.store.Rebuild(ctx, embedded, status)
	if err != nil {
		return domain.IndexStatus{}, fmt.Errorf("rebuild index: %w", err)
	}
	s.session.Replace(idx, status)
	if s.onIndexed != nil {
		s.onIndexed(status)
	}

	slog.Info("project indexed",
		"project", projectName,
		"files", status.FileCount,
		"chunks", status.ChunkCount,
		"duration", time.Since(start).String(),
	)
	return status, nil
}

// Clear drops the persisted index and resets the session. Safe to call repeatedly.
func (s *Indexer) Clear(ctx context.Context) error {
	if err := s.store.Drop(ctx); err != nil {
		return err
	}
	s.session.Reset()
	if s.onCleared != nil {
		s.onCleared()
	}
	slog.Info("index cleared")
	return nil
}

// Restore loads a previously persisted index into the session.
// It reports false when there is nothing to restore.
func (s *Indexer) Restore(ctx context.Context) (bool, error) {
	idx, status, err := s.store.Load(ctx)
	if errors.Is(err, port.ErrNotIndexed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore index: %w", err)
	}
	s.session.Replace(idx, status)
	if s.onIndexed != nil {
		s.onIndexed(status)
	}
	slog.Info("index restored", "project", status.ProjectName, "chunks", status.ChunkCount)
	return true, nil
}

func (s *Indexer) resolve(ctx context.Context, target, token string) (string, string, error) {
	if vcs.IsRemote(target) {
		if s.cloneBase != "" {
			if err := os.MkdirAll(s.cloneBase, 0o755); err != nil {
				return "", "", fmt.Errorf("create clone dir: %w", err)
			}
		}
		dest, err := os.MkdirTemp(s.cloneBase, "codebase-*")
		if err != nil {
			return "", "", fmt.Errorf("create clone dir: %w", err)
		}
		if err := s.vcs.Clone(ctx, vcs.WithToken(target, token), dest); err != nil {
			os.RemoveAll(dest)
			return "", "", err
		}
		return dest, vcs.RepoName(target), nil
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", port.ErrInvalidPath, target)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", "", fmt.Errorf("%w: path does not exist: %s", port.ErrInvalidPath, target)
	}
	return abs, filepath.Base(abs), nil
}

// LoadDocuments walks root in lexical order and reads every supported file.
// Unreadable files are skipped; invalid UTF-8 is replaced.
func (s *Indexer) LoadDocuments(ctx context.Context, root string) ([]domain.Document, error) {
	var docs []domain.Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			slog.Debug("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && s.ignore[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !chunker.Supported(d.Name()) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Debug("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		docs = append(docs, domain.Document{
			SourcePath: path,
			Text:       strings.ToValidUTF8(string(data), "�"),
			Language:   strings.TrimPrefix(chunker.Ext(d.Name()), "."),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return docs, nil
}

func (s *Indexer) embed(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddedChunk, error) {
	out := make([]domain.EmbeddedChunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(texts))
		}
		for i, c := range chunks[start:end] {
			out = append(out, domain.EmbeddedChunk{Chunk: c, Vector: vectors[i]})
		}
	}
	return out, nil
}

func countSources(docs []domain.Document) int {
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		seen[d.SourcePath] = struct{}{}
	}
	return len(seen)
}
