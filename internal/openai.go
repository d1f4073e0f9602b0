package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/rtzll/insight/internal/model"
)

// Schema names a JSON schema the completion must conform to.
type Schema struct {
	Name        string
	Description string
	JSON        any
}

// SchemaFor reflects T into a strict schema: every field required, no
// additional properties, no $ref indirection.
func SchemaFor[T any](name, description string) Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return Schema{Name: name, Description: description, JSON: reflector.Reflect(v)}
}

var (
	summarySchema = SchemaFor[model.VideoSummary]("YoutubeVideoTranscriptSummary", "Data model for a call summary.")
	papersSchema  = SchemaFor[model.PaperCollection]("ResearchPapersWithTitlesAndAbstracts", "Data model for list of research papers.")
)

// Completer runs one structured completion and returns the raw JSON text.
type Completer interface {
	Complete(ctx context.Context, prompt string, schema Schema) (string, error)
}

// Decode runs a completion against schema and decodes the answer into T.
// Any failure to get a valid T is ErrSchemaValidation, a failed or timed
// out completion call included; the cause stays in the chain.
func Decode[T any](ctx context.Context, c Completer, prompt string, schema Schema) (T, error) {
	var out T
	raw, err := c.Complete(ctx, prompt, schema)
	if err != nil {
		if errors.Is(err, model.ErrSchemaValidation) {
			return out, err
		}
		return out, fmt.Errorf("%w: %s: %w", model.ErrSchemaValidation, schema.Name, err)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, fmt.Errorf("%w: %s: empty completion", model.ErrSchemaValidation, schema.Name)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %s: %w", model.ErrSchemaValidation, schema.Name, err)
	}
	return out, nil
}

// OpenAIClient is a Completer backed by OpenAI structured outputs.
type OpenAIClient struct {
	apiKey      string
	model       string
	temperature float64

	once   sync.Once
	client openai.Client
}

// NewOpenAIClient returns a client; the SDK client is created on first use.
func NewOpenAIClient(apiKey, model string, temperature float64) *OpenAIClient {
	return &OpenAIClient{apiKey: apiKey, model: model, temperature: temperature}
}

// Complete implements Completer.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, schema Schema) (string, error) {
	if err := ValidateOpenAIAPIKey(c.apiKey); err != nil {
		return "", err
	}
	c.once.Do(func() {
		c.client = openai.NewClient(option.WithAPIKey(c.apiKey))
	})

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        schema.Name,
					Description: openai.String(schema.Description),
					Schema:      schema.JSON,
					Strict:      openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices from OpenAI")
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("%w: %s: model refused: %s", model.ErrSchemaValidation, schema.Name, msg.Refusal)
	}
	return msg.Content, nil
}
