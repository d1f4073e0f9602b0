package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/rtzll/insight/internal/model"
	"github.com/rtzll/insight/internal/papers"
)

const (
	testVideoID  = "tAP1eZYEuKA"
	testVideoURL = "https://www.youtube.com/watch?v=" + testVideoID

	testTranscript = "Attention lets a model weigh every token against every other token. " +
		"Transformers stack attention layers with feed forward blocks. " +
		"Sparse attention cuts the quadratic cost for long inputs."

	summaryJSON = `{"summary":"The talk explains attention. It covers transformers.","questions":["Why sparse attention?","How does it scale?"]}`
	papersJSON  = `{"response":"Attention is all you need introduced transformers.","papers":[{"title":"Attention Is All You Need","abstract":"We propose the Transformer."}]}`
)

// fakeLoader serves doc. With block set it waits for ctx to end.
type fakeLoader struct {
	doc   model.TranscriptDocument
	err   error
	block bool
	mu    sync.Mutex
	calls []string
}

func (f *fakeLoader) Load(ctx context.Context, videoURL string) (model.TranscriptDocument, error) {
	f.mu.Lock()
	f.calls = append(f.calls, videoURL)
	doc, err, block := f.doc, f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return model.TranscriptDocument{}, ctx.Err()
	}
	return doc, err
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{doc: model.TranscriptDocument{
		VideoID: testVideoID,
		URL:     testVideoURL,
		Title:   "Attention explained",
		Text:    testTranscript,
	}}
}

// constEmbedder returns the same non-zero vector for every text.
type constEmbedder struct {
	err error
}

func (e *constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0.5}
	}
	return out, nil
}

// fakeCompleter answers by schema name and records every prompt. Schemas
// listed in block wait for ctx to end.
type fakeCompleter struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	block   map[string]bool
	prompts map[string][]string
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{
		answers: map[string]string{
			summarySchema.Name: summaryJSON,
			papersSchema.Name:  papersJSON,
		},
		errs:    map[string]error{},
		block:   map[string]bool{},
		prompts: map[string][]string{},
	}
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, schema Schema) (string, error) {
	f.mu.Lock()
	f.prompts[schema.Name] = append(f.prompts[schema.Name], prompt)
	answer, err, block := f.answers[schema.Name], f.errs[schema.Name], f.block[schema.Name]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (f *fakeCompleter) setBlock(schemaName string, block bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block[schemaName] = block
}

func (f *fakeCompleter) lastPrompt(schemaName string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.prompts[schemaName]
	if len(ps) == 0 {
		return ""
	}
	return ps[len(ps)-1]
}

type fakePapers struct {
	docs    []papers.Document
	err     error
	block   bool
	mu      sync.Mutex
	queries []string
}

func newFakePapers() *fakePapers {
	return &fakePapers{docs: []papers.Document{{
		ID:       "1706.03762",
		Text:     "We propose the Transformer.",
		Metadata: map[string]any{"title": "Attention Is All You Need"},
		Score:    0.9,
	}}}
}

func (f *fakePapers) Name() string        { return model.PaperToolName }
func (f *fakePapers) Description() string { return model.PaperToolDescription }

func (f *fakePapers) Search(ctx context.Context, query string) ([]papers.Document, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	docs, err, block := f.docs, f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return docs, err
}

func (f *fakePapers) Query(ctx context.Context, input string) (string, error) {
	docs, err := f.Search(ctx, input)
	if err != nil {
		return "", err
	}
	return papers.FormatContext(docs), nil
}

func (f *fakePapers) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

// echoModel answers every turn directly without calling tools.
type echoModel struct {
	answer string
}

func (m *echoModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.answer, nil), nil
}

func (m *echoModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *echoModel) BindTools([]*schema.ToolInfo) error { return nil }

// gatedModel signals started on its first call and then answers once
// release is closed, or fails when ctx ends first.
type gatedModel struct {
	answer  string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedModel(answer string) *gatedModel {
	return &gatedModel{answer: answer, started: make(chan struct{}), release: make(chan struct{})}
}

func (m *gatedModel) Generate(ctx context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.once.Do(func() { close(m.started) })
	select {
	case <-m.release:
		return schema.AssistantMessage(m.answer, nil), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *gatedModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *gatedModel) BindTools([]*schema.ToolInfo) error { return nil }

type silentUI struct{}

func (silentUI) NewSpinner(string) ProgressBar { return SilentProgressBar{} }
func (silentUI) Printf(string, ...any)         {}
func (silentUI) Println(...any)                {}

// testConfig mirrors the shipped defaults with writable directories.
func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		OpenAIAPIKey:   "sk-test",
		SummaryModel:   "gpt-4o",
		ChatProvider:   "openai",
		ChatModel:      "gpt-4o",
		EmbeddingModel: "text-embedding-3-small",
		ChunkSize:      1024,
		ChunkOverlap:   20,
		VideoTopK:      2,
		TopK:           5,
		MaxToolCalls:   5,
		PaperStore:     "pgvector",
		SessionTTL:     time.Hour,
		Port:           8080,
		CORSOrigins:    []string{"http://localhost:3000"},
		Environment:    "development",
		Quiet:          true,
		ConfigDir:      dir,
		DataDir:        dir,
		CacheDir:       dir,
		TranscriptsDir: dir,
	}
}

type testDeps struct {
	loader    *fakeLoader
	completer *fakeCompleter
	papers    *fakePapers
}

// withConfig edits the test config before the app builds its pipeline.
func withConfig(edit func(*Config)) AppOption {
	return func(a *App) { edit(a.config) }
}

func newTestApp(t *testing.T, extra ...AppOption) (*App, *testDeps) {
	t.Helper()
	deps := &testDeps{
		loader:    newFakeLoader(),
		completer: newFakeCompleter(),
		papers:    newFakePapers(),
	}
	options := []AppOption{
		WithTranscriptLoader(deps.loader),
		WithEmbedder(&constEmbedder{}),
		WithCompleter(deps.completer),
		WithPaperTool(deps.papers),
		WithChatModel(&echoModel{answer: "The talk is about attention."}),
		WithUI(silentUI{}),
	}
	app, err := NewApp(context.Background(), testConfig(t), append(options, extra...)...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app, deps
}

var errBoom = errors.New("boom")

func mustContain(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Errorf("%q does not contain %q", s, sub)
	}
}
