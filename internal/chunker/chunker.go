// Package chunker splits source files into overlapping, size-bounded chunks.
//
// Splitting is recursive: the text is cut on the first separator of the
// file's grammar that occurs in it, pieces that are still too long are cut
// again with the next separators, and adjacent small pieces are merged back
// up to the chunk size. Separators stay attached to the piece they start, so
// every chunk is an exact slice of the source text.
package chunker

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
)

// Default sizes, in characters.
const (
	DefaultSize    = 1500
	DefaultOverlap = 200
)

// Chunker splits Documents. It is stateless and safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Non-positive size falls back to DefaultSize and the
// overlap is clamped below size.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the maximum chunk length in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the maximum shared length between consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

type span struct {
	start, end int // byte offsets
	n          int // rune count
}

// Split returns the chunks of doc in source order. Empty or blank text yields none.
func (c *Chunker) Split(doc domain.Document) []domain.Chunk {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}

	whole := span{start: 0, end: len(text), n: utf8.RuneCountInString(text)}
	spans := c.split(text, whole, Separators(LanguageFor(doc.SourcePath)))

	filename := filepath.Base(doc.SourcePath)
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, domain.Chunk{
			Text:       text[s.start:s.end],
			SourcePath: doc.SourcePath,
			Filename:   filename,
			Language:   doc.Language,
			Index:      i,
			Start:      s.start,
			End:        s.end,
		})
	}
	return chunks
}

// SplitAll chunks every document, keeping document order.
func (c *Chunker) SplitAll(docs []domain.Document) []domain.Chunk {
	var out []domain.Chunk
	for _, d := range docs {
		out = append(out, c.Split(d)...)
	}
	return out
}

func (c *Chunker) split(text string, s span, seps []string) []span {
	sep := ""
	var rest []string
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text[s.start:s.end], candidate) {
			sep, rest = candidate, seps[i+1:]
			break
		}
	}

	var out, small []span
	for _, p := range cut(text, s, sep) {
		if p.n <= c.size {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			out = append(out, c.merge(small)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
			continue
		}
		out = append(out, c.split(text, p, rest)...)
	}
	if len(small) > 0 {
		out = append(out, c.merge(small)...)
	}
	return out
}

// merge joins consecutive pieces into chunks of at most c.size characters.
// A new chunk restarts from the tail of the previous one, keeping at most
// c.overlap characters of it.
func (c *Chunker) merge(pieces []span) []span {
	var out, window []span
	total := 0
	for _, p := range pieces {
		if total+p.n > c.size && len(window) > 0 {
			out = append(out, join(window, total))
			for total > c.overlap || (total+p.n > c.size && total > 0) {
				total -= window[0].n
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.n
	}
	if len(window) > 0 {
		out = append(out, join(window, total))
	}
	return out
}

func join(window []span, n int) span {
	return span{start: window[0].start, end: window[len(window)-1].end, n: n}
}

// cut splits s on sep, keeping each separator at the start of the piece it
// opens. The empty separator cuts between characters.
func cut(text string, s span, sep string) []span {
	var out []span
	if sep == "" {
		for i := s.start; i < s.end; {
			_, w := utf8.DecodeRuneInString(text[i:s.end])
			out = append(out, span{start: i, end: i + w, n: 1})
			i += w
		}
		return out
	}

	start, from := s.start, s.start
	for {
		j := strings.Index(text[from:s.end], sep)
		if j < 0 {
			break
		}
		at := from + j
		if at > start {
			out = append(out, newSpan(text, start, at))
			start = at
		}
		from = at + len(sep)
	}
	if start < s.end {
		out = append(out, newSpan(text, start, s.end))
	}
	return out
}

func newSpan(text string, start, end int) span {
	return span{start: start, end: end, n: utf8.RuneCountInString(text[start:end])}
}
