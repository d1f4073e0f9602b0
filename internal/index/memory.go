package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Chunk is one embedded slice of a transcript.
type Chunk struct {
	Seq       int
	Text      string
	Embedding []float32
}

// Hit is a chunk ranked against a query.
type Hit struct {
	Chunk
	Score float32
}

// MemoryIndex is an ephemeral vector index over a single transcript. It is
// immutable once built and safe for concurrent reads.
type MemoryIndex struct {
	embedder Embedder
	chunks   []Chunk
}

// Build splits text, embeds every chunk and returns the index.
func Build(ctx context.Context, embedder Embedder, text string, opts ChunkOptions) (*MemoryIndex, error) {
	parts := Split(text, opts)
	if len(parts) == 0 {
		return nil, errors.New("nothing to index")
	}

	vectors, err := embedder.Embed(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(parts) {
		return nil, fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(parts))
	}

	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Seq: i, Text: p, Embedding: vectors[i]}
	}

	return &MemoryIndex{embedder: embedder, chunks: chunks}, nil
}

// Len returns the number of chunks.
func (m *MemoryIndex) Len() int {
	return len(m.chunks)
}

// Search returns the k chunks most similar to query, best first.
func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("no embedding returned for query")
	}
	return m.rank(vectors[0], k), nil
}

func (m *MemoryIndex) rank(q []float32, k int) []Hit {
	hits := make([]Hit, 0, len(m.chunks))
	for _, c := range m.chunks {
		score, err := CosineSimilarity(q, c.Embedding)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{Chunk: c, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// CosineSimilarity returns the cosine of the angle between a and b.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, errors.New("different length vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, errors.New("zero vector")
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
