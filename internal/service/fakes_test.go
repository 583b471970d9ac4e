package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

// fakeCompleter answers with reply and records every request.
type fakeCompleter struct {
	mu    sync.Mutex
	reqs  []port.CompletionRequest
	reply func(req port.CompletionRequest) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.reply == nil {
		return "answer", nil
	}
	return f.reply(req)
}

func (f *fakeCompleter) calls() []port.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]port.CompletionRequest(nil), f.reqs...)
}

// fakeEmbedder maps known texts to fixed vectors; other texts get fallback.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	texts    []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	if f.fallback != nil {
		return f.fallback, nil
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// fakeIndex returns hits in order, truncated to k.
type fakeIndex struct {
	hits    []domain.ScoredChunk
	queries [][]float32
	ks      []int
}

func (f *fakeIndex) Len() int { return len(f.hits) }

func (f *fakeIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	f.queries = append(f.queries, vector)
	f.ks = append(f.ks, k)
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func hit(path, text string, distance float64) domain.ScoredChunk {
	name := path[strings.LastIndex(path, "/")+1:]
	return domain.ScoredChunk{Chunk: domain.Chunk{Text: text, SourcePath: path, Filename: name}, Distance: distance}
}

// memoryStore is an in-memory port.IndexStore.
type memoryStore struct {
	chunks  []domain.EmbeddedChunk
	status  domain.IndexStatus
	stored  bool
	drops   int
	failErr error
}

func (m *memoryStore) Rebuild(ctx context.Context, chunks []domain.EmbeddedChunk, status domain.IndexStatus) (port.VectorIndex, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	m.chunks, m.status, m.stored = chunks, status, true
	return &fakeIndex{}, nil
}

func (m *memoryStore) Load(ctx context.Context) (port.VectorIndex, domain.IndexStatus, error) {
	if !m.stored {
		return nil, domain.IndexStatus{}, port.ErrNotIndexed
	}
	return &fakeIndex{}, m.status, nil
}

func (m *memoryStore) Drop(ctx context.Context) error {
	m.drops++
	m.chunks, m.status, m.stored = nil, domain.IndexStatus{}, false
	return nil
}

// fakeVCS copies nothing and records the clone URL.
type fakeVCS struct {
	url   string
	err   error
	files map[string]string
}

func (f *fakeVCS) Clone(ctx context.Context, url, dest string) error {
	f.url = url
	if f.err != nil {
		return f.err
	}
	return writeTree(dest, f.files)
}

var errBoom = errors.New("boom")
