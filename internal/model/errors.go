package model

import (
	"errors"
	"fmt"
)

var (
	// ErrIngestion means the transcript could not be fetched.
	ErrIngestion = errors.New("transcript ingestion failed")
	// ErrEmptyTranscript means the video has captions but no text.
	ErrEmptyTranscript = fmt.Errorf("%w: transcript is empty", ErrIngestion)
	// ErrSchemaValidation means the model output could not be decoded into the expected schema.
	ErrSchemaValidation = errors.New("completion did not match the expected schema")
	// ErrRetrieval means an index or vector store lookup failed.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrToolNotReady means a chat or query arrived before any video was analyzed.
	ErrToolNotReady = errors.New("retrieval tools are not initialized")
)

// Kind names the error category for logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, ErrIngestion):
		return "ingestion"
	case errors.Is(err, ErrSchemaValidation):
		return "schema_validation"
	case errors.Is(err, ErrRetrieval):
		return "retrieval"
	case errors.Is(err, ErrToolNotReady):
		return "tool_not_ready"
	default:
		return "internal"
	}
}
