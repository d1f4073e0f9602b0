package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/rtzll/insight/internal/model"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "tool not ready",
			err:        fmt.Errorf("query: %w", model.ErrToolNotReady),
			wantStatus: http.StatusBadRequest,
			wantMsg:    ToolNotReadyMessage,
		},
		{
			name:       "ingestion collapses to 500",
			err:        fmt.Errorf("%w: private video", model.ErrIngestion),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "transcript ingestion failed: private video",
		},
		{
			name:       "retrieval collapses to 500",
			err:        fmt.Errorf("%w: dial tcp", model.ErrRetrieval),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "retrieval failed: dial tcp",
		},
		{
			name:       "redis failure collapses to 500",
			err:        WrapRedis(errors.New("i/o timeout")),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "redis operation failed: i/o timeout",
		},
		{
			name:       "client error passes through",
			err:        New(errors.New("eof"), http.StatusBadRequest, "invalid request body"),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", got.Status, tt.wantStatus)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("AppError should unwrap to the original error")
			}
		})
	}

	if FromError(nil) != nil {
		t.Error("FromError(nil) should be nil")
	}
}

func TestWrapRedisNil(t *testing.T) {
	err := WrapRedis(redis.Nil)
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T", err)
	}
	if appErr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", appErr.Status, http.StatusNotFound)
	}
	if WrapRedis(nil) != nil {
		t.Error("WrapRedis(nil) should be nil")
	}
}
