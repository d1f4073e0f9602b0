package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini chat model.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// NewGeminiChatModel creates a Gemini backed chat model.
func NewGeminiChatModel(ctx context.Context, cfg GeminiConfig) (einomodel.ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	temperature := cfg.Temperature
	gc := &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &temperature,
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		gc.MaxTokens = &maxTokens
	}

	cm, err := gemini.NewChatModel(ctx, gc)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini chat model: %w", err)
	}
	return cm, nil
}
