// Package papers queries the persistent research paper index.
package papers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rtzll/insight/internal/index"
	"github.com/rtzll/insight/internal/model"
)

// Document is one paper record returned by a store, best match first.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
	Score    float64
}

// Title returns the title metadata field if the index carries one.
func (d Document) Title() string {
	if d.Metadata == nil {
		return ""
	}
	if t, ok := d.Metadata["title"].(string); ok {
		return t
	}
	return ""
}

// Store is a read-only nearest neighbour lookup over paper embeddings.
type Store interface {
	Search(ctx context.Context, vector []float32, k int) ([]Document, error)
	Close() error
}

// Index pairs a store with the embedder its vectors were built with.
type Index struct {
	embedder index.Embedder
	store    Store
	topK     int
}

var _ model.RetrievalTool = (*Index)(nil)

// NewIndex returns a paper index answering with topK documents per query.
func NewIndex(embedder index.Embedder, store Store, topK int) *Index {
	if topK < 1 {
		topK = 5
	}
	return &Index{embedder: embedder, store: store, topK: topK}
}

func (ix *Index) Name() string        { return model.PaperToolName }
func (ix *Index) Description() string { return model.PaperToolDescription }

// TopK reports how many documents a search returns at most.
func (ix *Index) TopK() int { return ix.topK }

// Search embeds query and returns the closest papers.
func (ix *Index) Search(ctx context.Context, query string) ([]Document, error) {
	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding paper query: %w", model.ErrRetrieval, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: no embedding returned for paper query", model.ErrRetrieval)
	}

	docs, err := ix.store.Search(ctx, vectors[0], ix.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: searching papers: %w", model.ErrRetrieval, err)
	}
	return docs, nil
}

// Query implements model.RetrievalTool.
func (ix *Index) Query(ctx context.Context, input string) (string, error) {
	docs, err := ix.Search(ctx, input)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "No matching research papers.", nil
	}
	return FormatContext(docs), nil
}

// Close releases the underlying store.
func (ix *Index) Close() error {
	return ix.store.Close()
}

// FormatContext renders documents as a prompt context block.
func FormatContext(docs []Document) string {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if t := d.Title(); t != "" && !strings.Contains(d.Text, t) {
			fmt.Fprintf(&b, "title: %s\n", t)
		}
		b.WriteString(strings.TrimSpace(d.Text))
	}
	return b.String()
}
