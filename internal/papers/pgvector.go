package papers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore reads paper embeddings from a PostgreSQL table with the
// vector extension. The table is expected to have the columns
// id, text, metadata (jsonb) and embedding (vector).
type PgVectorStore struct {
	pool  *pgxpool.Pool
	query string
}

// ConnectPgVector opens a pool against databaseURL and checks it.
func ConnectPgVector(ctx context.Context, databaseURL, table string) (*PgVectorStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for the pgvector paper store")
	}
	if table == "" {
		return nil, errors.New("paper table name is empty")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PgVectorStore{pool: pool, query: searchQuery(table)}, nil
}

func searchQuery(table string) string {
	return fmt.Sprintf(`
		SELECT id::text, text, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, pgx.Identifier{table}.Sanitize())
}

// Search implements Store. Every lookup runs in a read-only transaction.
func (s *PgVectorStore) Search(ctx context.Context, vector []float32, k int) ([]Document, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, s.query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query papers: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Text, &d.Metadata, &d.Score); err != nil {
			return nil, fmt.Errorf("scan paper row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read paper rows: %w", err)
	}
	return docs, nil
}

// Close implements Store.
func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}
