package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

const previewLength = 200

// AssistantConfig tunes retrieval.
type AssistantConfig struct {
	RelevanceThreshold float64 // max L2 distance of the best gate hit
	GateK              int
	RetrievalK         int
}

// DefaultAssistantConfig returns the stock retrieval settings.
func DefaultAssistantConfig() AssistantConfig {
	return AssistantConfig{RelevanceThreshold: 1.5, GateK: 4, RetrievalK: 8}
}

// Assistant answers questions about the indexed project.
type Assistant struct {
	session   *Session
	embedder  port.Embedder
	completer port.Completer
	cfg       AssistantConfig

	mu   sync.Mutex
	pipe *pipeline
}

// NewAssistant creates an assistant over the session's index.
func NewAssistant(session *Session, embedder port.Embedder, completer port.Completer, cfg AssistantConfig) *Assistant {
	def := DefaultAssistantConfig()
	if cfg.GateK <= 0 {
		cfg.GateK = def.GateK
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = def.RetrievalK
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = def.RelevanceThreshold
	}
	return &Assistant{session: session, embedder: embedder, completer: completer, cfg: cfg}
}

// Query answers question using the conversation so far.
func (a *Assistant) Query(ctx context.Context, question string, history []domain.ConversationTurn) (domain.Answer, error) {
	idx := a.session.Index()
	if idx == nil {
		return domain.Answer{}, port.ErrNotIndexed
	}

	qvec, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embed question: %w", err)
	}

	relevant, err := a.passesGate(ctx, idx, qvec)
	if err != nil {
		return domain.Answer{}, err
	}
	if !relevant {
		slog.Info("question rejected by relevance gate", "question", question)
		return domain.Answer{Answer: NotFoundAnswer, Sources: []domain.Source{}}, nil
	}

	standalone, err := a.Condense(ctx, FoldHistory(history), question)
	if err != nil {
		return domain.Answer{}, err
	}

	svec := qvec
	if standalone != question {
		if svec, err = a.embedder.Embed(ctx, standalone); err != nil {
			return domain.Answer{}, fmt.Errorf("embed standalone question: %w", err)
		}
	}

	p, err := a.pipeline()
	if err != nil {
		return domain.Answer{}, err
	}
	return p.answer(ctx, standalone, svec)
}

// passesGate reports whether the nearest chunk is within the relevance threshold.
// An empty index has no nearest chunk and passes.
func (a *Assistant) passesGate(ctx context.Context, idx port.VectorIndex, qvec []float32) (bool, error) {
	hits, err := idx.Search(ctx, qvec, a.cfg.GateK)
	if err != nil {
		return false, fmt.Errorf("relevance search: %w", err)
	}
	if len(hits) == 0 {
		return true, nil
	}
	slog.Debug("relevance gate", "best_distance", hits[0].Distance, "threshold", a.cfg.RelevanceThreshold)
	return hits[0].Distance <= a.cfg.RelevanceThreshold, nil
}

// Condense rewrites a follow-up question into a standalone one.
// Without history the question is returned as is and the model is not called.
func (a *Assistant) Condense(ctx context.Context, pairs []domain.QAPair, question string) (string, error) {
	if len(pairs) == 0 {
		return question, nil
	}

	out, err := a.completer.Complete(ctx, port.CompletionRequest{
		User:        fmt.Sprintf(condensePrompt, formatHistory(pairs), question),
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("condense question: %w", err)
	}
	if out = strings.TrimSpace(out); out == "" {
		return question, nil
	}
	return out, nil
}

// Reset drops the cached answer pipeline.
func (a *Assistant) Reset() {
	a.mu.Lock()
	a.pipe = nil
	a.mu.Unlock()
}

func (a *Assistant) pipeline() (*pipeline, error) {
	idx, gen := a.session.Snapshot()
	if idx == nil {
		return nil, port.ErrNotIndexed
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pipe == nil || a.pipe.generation != gen {
		a.pipe = &pipeline{generation: gen, index: idx, completer: a.completer, k: a.cfg.RetrievalK}
		slog.Debug("answer pipeline built", "generation", gen)
	}
	return a.pipe, nil
}

// pipeline is retrieval plus synthesis bound to one index generation.
type pipeline struct {
	generation uint64
	index      port.VectorIndex
	completer  port.Completer
	k          int
}

func (p *pipeline) answer(ctx context.Context, question string, qvec []float32) (domain.Answer, error) {
	hits, err := p.index.Search(ctx, qvec, p.k)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}

	out, err := p.completer.Complete(ctx, port.CompletionRequest{
		System:      fmt.Sprintf(answerSystemPrompt, strings.Join(texts, "\n\n")),
		User:        question,
		Temperature: 0,
	})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("synthesize answer: %w", err)
	}

	return domain.Answer{Answer: out, Sources: Sources(hits)}, nil
}

// FoldHistory pairs each human turn with the assistant turn that follows it.
// A human turn without a reply (the trailing one in particular) is dropped.
// Turns with unknown roles pair positionally.
func FoldHistory(turns []domain.ConversationTurn) []domain.QAPair {
	var pairs []domain.QAPair
	for i := 0; i+1 < len(turns); {
		q, r := turns[i], turns[i+1]
		if q.IsAssistant() || r.IsHuman() {
			i++
			continue
		}
		pairs = append(pairs, domain.QAPair{Question: q.Content, Answer: r.Content})
		i += 2
	}
	return pairs
}

func formatHistory(pairs []domain.QAPair) string {
	lines := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		lines = append(lines, "Human: "+p.Question, "Assistant: "+p.Answer)
	}
	return strings.Join(lines, "\n")
}

// Sources lists the distinct files of hits in rank order.
func Sources(hits []domain.ScoredChunk) []domain.Source {
	seen := make(map[string]bool, len(hits))
	sources := make([]domain.Source, 0, len(hits))
	for _, h := range hits {
		if seen[h.SourcePath] {
			continue
		}
		seen[h.SourcePath] = true
		file := h.Filename
		if file == "" {
			file = h.SourcePath
		}
		sources = append(sources, domain.Source{File: file, Path: h.SourcePath, Preview: Preview(h.Text)})
	}
	return sources
}

// Preview truncates text to 200 characters, marking the cut with "...".
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
