package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/rtzll/insight/internal/model"
)

type cannedCompleter struct {
	out string
	err error
}

func (c cannedCompleter) Complete(context.Context, string, Schema) (string, error) {
	return c.out, c.err
}

func TestSchemaFor(t *testing.T) {
	raw, err := json.Marshal(summarySchema.JSON)
	if err != nil {
		t.Fatal(err)
	}
	var s struct {
		Type                 string                     `json:"type"`
		Required             []string                   `json:"required"`
		AdditionalProperties *bool                      `json:"additionalProperties"`
		Properties           map[string]json.RawMessage `json:"properties"`
		Defs                 map[string]any             `json:"$defs"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("decoding schema %s: %v", raw, err)
	}

	if s.Type != "object" {
		t.Errorf("type = %q, want object", s.Type)
	}
	slices.Sort(s.Required)
	if !slices.Equal(s.Required, []string{"questions", "summary"}) {
		t.Errorf("required = %v", s.Required)
	}
	if s.AdditionalProperties == nil || *s.AdditionalProperties {
		t.Error("additionalProperties must be false")
	}
	if len(s.Defs) != 0 {
		t.Errorf("schema uses $defs: %s", raw)
	}
	if summarySchema.Name != "YoutubeVideoTranscriptSummary" || papersSchema.Name != "ResearchPapersWithTitlesAndAbstracts" {
		t.Errorf("schema names = %q, %q", summarySchema.Name, papersSchema.Name)
	}
}

func TestDecode(t *testing.T) {
	ctx := context.Background()

	got, err := Decode[model.PaperCollection](ctx, cannedCompleter{out: "\n" + papersJSON + "\n"}, "p", papersSchema)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Response == "" || len(got.Papers) != 1 || got.Papers[0].Abstract != "We propose the Transformer." {
		t.Errorf("decoded %+v", got)
	}

	invalid := []string{"", "   ", "{", `{"summary":"x","questions":"not a list"}`, `{"summary":"x","questions":[],"extra":1}`}
	for _, out := range invalid {
		_, err := Decode[model.VideoSummary](ctx, cannedCompleter{out: out}, "p", summarySchema)
		if !errors.Is(err, model.ErrSchemaValidation) {
			t.Errorf("Decode(%q) err = %v, want ErrSchemaValidation", out, err)
		}
	}

	failures := []error{errBoom, context.DeadlineExceeded, context.Canceled}
	for _, cause := range failures {
		_, err = Decode[model.VideoSummary](ctx, cannedCompleter{err: cause}, "p", summarySchema)
		if !errors.Is(err, model.ErrSchemaValidation) || !errors.Is(err, cause) {
			t.Errorf("completion error %v: got %v, want ErrSchemaValidation wrapping it", cause, err)
		}
		if kind := model.Kind(err); kind != "schema_validation" {
			t.Errorf("completion error %v: kind = %q", cause, kind)
		}
	}

	refused := fmt.Errorf("%w: %s: model refused: no", model.ErrSchemaValidation, summarySchema.Name)
	_, err = Decode[model.VideoSummary](ctx, cannedCompleter{err: refused}, "p", summarySchema)
	if err != refused {
		t.Errorf("refusal = %v, want it returned unchanged", err)
	}
}

func TestOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("", "gpt-4o", 0.7).Complete(context.Background(), "p", summarySchema)
	if err == nil {
		t.Error("want error without an API key")
	}
}
