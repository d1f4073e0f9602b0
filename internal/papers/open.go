package papers

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendPgVector = "pgvector"
	BackendMilvus   = "milvus"
)

// Options selects and locates a paper store backend.
type Options struct {
	Backend     string
	DatabaseURL string
	// Dataset is the table (pgvector) or collection (milvus) name.
	Dataset string
	Milvus  MilvusConfig
}

// Open connects the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendPgVector:
		return ConnectPgVector(ctx, opts.DatabaseURL, opts.Dataset)
	case BackendMilvus:
		cfg := opts.Milvus
		if cfg.Collection == "" {
			cfg.Collection = opts.Dataset
		}
		return ConnectMilvus(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown paper store %q", opts.Backend)
	}
}
