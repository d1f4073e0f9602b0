package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"empty transcript", fmt.Errorf("analyze: %w", ErrEmptyTranscript), "empty_transcript"},
		{"ingestion", fmt.Errorf("%w: yt-dlp exited 1", ErrIngestion), "ingestion"},
		{"schema", fmt.Errorf("%w: bad json", ErrSchemaValidation), "schema_validation"},
		{"retrieval", fmt.Errorf("%w: connection refused", ErrRetrieval), "retrieval"},
		{"tool not ready", ErrToolNotReady, "tool_not_ready"},
		{"other", errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmptyTranscriptIsIngestion(t *testing.T) {
	if !errors.Is(ErrEmptyTranscript, ErrIngestion) {
		t.Fatal("ErrEmptyTranscript should match ErrIngestion")
	}
}
