package domain

// Document is one readable source file of the indexed project.
type Document struct {
	SourcePath string `json:"source_path"`
	Text       string `json:"text"`
	Language   string `json:"language,omitempty"` // empty = plain text
}

// Chunk is a contiguous fragment of a Document.
// Start and End are byte offsets of the fragment inside the Document text.
type Chunk struct {
	Text       string `json:"text"`
	SourcePath string `json:"source_path"`
	Filename   string `json:"filename"`
	Language   string `json:"language,omitempty"`
	Index      int    `json:"index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// EmbeddedChunk pairs a Chunk with its embedding vector.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"-"`
}

// ScoredChunk is returned by a nearest-neighbor search. Lower distance = closer.
type ScoredChunk struct {
	Chunk
	Distance float64 `json:"distance"`
}
