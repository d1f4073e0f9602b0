package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/rtzll/insight/internal/model"
)

// VideoTool exposes a transcript index to the chat agent.
type VideoTool struct {
	VideoID string
	index   *MemoryIndex
	topK    int
}

var _ model.RetrievalTool = (*VideoTool)(nil)

// NewVideoTool wraps idx; topK below one falls back to two chunks.
func NewVideoTool(videoID string, idx *MemoryIndex, topK int) *VideoTool {
	if topK < 1 {
		topK = 2
	}
	return &VideoTool{VideoID: videoID, index: idx, topK: topK}
}

func (t *VideoTool) Name() string        { return model.VideoToolName }
func (t *VideoTool) Description() string { return model.VideoToolDescription }

// Search returns the raw ranked chunks for query.
func (t *VideoTool) Search(ctx context.Context, query string) ([]Hit, error) {
	hits, err := t.index.Search(ctx, query, t.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: searching transcript of %s: %w", model.ErrRetrieval, t.VideoID, err)
	}
	return hits, nil
}

// Query implements model.RetrievalTool.
func (t *VideoTool) Query(ctx context.Context, input string) (string, error) {
	hits, err := t.Search(ctx, input)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "No matching transcript passages.", nil
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return strings.Join(texts, "\n\n"), nil
}
