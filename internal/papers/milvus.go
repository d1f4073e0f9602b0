package papers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusConfig locates an existing paper collection.
type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	APIKey     string
	Collection string
}

const (
	milvusVectorField = "embedding"
	milvusTextField   = "text"
	milvusMetaField   = "metadata"
	milvusSearchEf    = 64
)

// MilvusStore searches a pre-built Milvus collection. It never creates or
// writes collections.
type MilvusStore struct {
	mc   client.Client
	coll string
}

// ConnectMilvus connects and loads cfg.Collection into memory.
func ConnectMilvus(ctx context.Context, cfg MilvusConfig) (*MilvusStore, error) {
	mc, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	exists, err := mc.HasCollection(ctx, cfg.Collection)
	if err != nil {
		_ = mc.Close()
		return nil, fmt.Errorf("check collection %s: %w", cfg.Collection, err)
	}
	if !exists {
		_ = mc.Close()
		return nil, fmt.Errorf("collection %s does not exist", cfg.Collection)
	}
	if err := mc.LoadCollection(ctx, cfg.Collection, false); err != nil {
		_ = mc.Close()
		return nil, fmt.Errorf("load collection %s: %w", cfg.Collection, err)
	}

	return &MilvusStore{mc: mc, coll: cfg.Collection}, nil
}

// Search implements Store.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, k int) ([]Document, error) {
	sp, err := entity.NewIndexHNSWSearchParam(max(milvusSearchEf, k))
	if err != nil {
		return nil, fmt.Errorf("search params: %w", err)
	}

	res, err := s.mc.Search(ctx, s.coll, []string{}, "",
		[]string{milvusTextField, milvusMetaField},
		[]entity.Vector{entity.FloatVector(vector)},
		milvusVectorField, entity.COSINE, k, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	var docs []Document
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			d := Document{ID: columnID(r.IDs, i)}
			if i < len(r.Scores) {
				d.Score = float64(r.Scores[i])
			}
			if c, ok := cols[milvusTextField].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					d.Text = data[i]
				}
			}
			if c, ok := cols[milvusMetaField].(*entity.ColumnJSONBytes); ok {
				if data := c.Data(); i < len(data) {
					_ = json.Unmarshal(data[i], &d.Metadata)
				}
			}
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func columnID(c entity.Column, i int) string {
	switch ids := c.(type) {
	case *entity.ColumnInt64:
		if data := ids.Data(); i < len(data) {
			return fmt.Sprint(data[i])
		}
	case *entity.ColumnVarChar:
		if data := ids.Data(); i < len(data) {
			return data[i]
		}
	}
	return ""
}

// Close implements Store.
func (s *MilvusStore) Close() error {
	return s.mc.Close()
}
