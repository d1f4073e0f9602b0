package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rtzll/insight/internal/index"
	"github.com/rtzll/insight/internal/model"
	"github.com/rtzll/insight/internal/papers"
	"github.com/rtzll/insight/pkg/logx"
)

// MaxSummarySentences bounds the summary kept from the completion.
const MaxSummarySentences = 6

// PaperSearcher is the research paper tool with direct document access.
type PaperSearcher interface {
	model.RetrievalTool
	Search(ctx context.Context, query string) ([]papers.Document, error)
}

// StageFunc receives a short description of each pipeline step.
type StageFunc func(stage string)

// Timeouts bound each external call. Zero means no limit beyond ctx.
type Timeouts struct {
	Transcript time.Duration
	Completion time.Duration
	Retrieval  time.Duration
}

// PipelineOptions tune chunking and retrieval.
type PipelineOptions struct {
	Chunk     index.ChunkOptions
	VideoTopK int
	Timeouts  Timeouts
}

// Pipeline turns a video locator into a summary, questions and papers.
type Pipeline struct {
	loader    TranscriptLoader
	embedder  index.Embedder
	completer Completer
	papers    PaperSearcher
	prompts   *PromptManager
	opts      PipelineOptions
}

// NewPipeline wires the analysis steps together.
func NewPipeline(loader TranscriptLoader, embedder index.Embedder, completer Completer, paperTool PaperSearcher, prompts *PromptManager, opts PipelineOptions) *Pipeline {
	if opts.Chunk.Size <= 0 {
		opts.Chunk = index.DefaultChunkOptions
	}
	if opts.VideoTopK <= 0 {
		opts.VideoTopK = 2
	}
	return &Pipeline{
		loader:    loader,
		embedder:  embedder,
		completer: completer,
		papers:    paperTool,
		prompts:   prompts,
		opts:      opts,
	}
}

// Papers returns the paper tool analyses search.
func (p *Pipeline) Papers() PaperSearcher {
	return p.papers
}

// SetPrompts replaces the summary prompt manager.
func (p *Pipeline) SetPrompts(pm *PromptManager) {
	p.prompts = pm
}

// Analyze runs the full pipeline for one video. It has no side effects on
// any session: the caller installs the returned tool.
func (p *Pipeline) Analyze(ctx context.Context, locator string, onStage StageFunc) (model.AnalysisResult, *index.VideoTool, error) {
	stage := func(s string) {
		if onStage != nil {
			onStage(s)
		}
	}
	start := time.Now()

	arg := ClassifyArg(locator)
	if arg.ContentType == ContentTypePlaylist {
		return model.AnalysisResult{}, nil, fmt.Errorf("%w: playlists are not supported: %s", model.ErrIngestion, locator)
	}
	if !arg.IsValid() {
		return model.AnalysisResult{}, nil, fmt.Errorf("%w: %w", model.ErrIngestion, arg.Error)
	}

	stage("Fetching transcript...")
	doc, err := p.loadTranscript(ctx, arg)
	if err != nil {
		return model.AnalysisResult{}, nil, err
	}

	stage("Indexing transcript...")
	videoTool, err := p.buildVideoTool(ctx, doc)
	if err != nil {
		return model.AnalysisResult{}, nil, err
	}

	stage("Summarizing video...")
	summary, err := p.summarize(ctx, doc, videoTool)
	if err != nil {
		return model.AnalysisResult{}, nil, err
	}

	stage("Searching research papers...")
	found, err := p.relatedPapers(ctx, PaperQuery(summary.Summary))
	if err != nil {
		return model.AnalysisResult{}, nil, err
	}

	logx.Info().
		Str("video_id", doc.VideoID).
		Int("questions", len(summary.Questions)).
		Int("papers", len(found)).
		Dur("elapsed", time.Since(start)).
		Msg("video analyzed")

	return model.AnalysisResult{
		VideoID:   doc.VideoID,
		Summary:   summary.Summary,
		Questions: summary.Questions,
		Papers:    found,
	}, videoTool, nil
}

func (p *Pipeline) loadTranscript(ctx context.Context, arg ParsedArg) (model.TranscriptDocument, error) {
	tctx, cancel := withTimeout(ctx, p.opts.Timeouts.Transcript)
	defer cancel()

	doc, err := p.loader.Load(tctx, arg.NormalizedURL)
	if err != nil {
		return doc, fmt.Errorf("%w: %s: %w", model.ErrIngestion, arg.ID, err)
	}
	if doc.VideoID == "" {
		doc.VideoID = arg.ID
	}
	if strings.TrimSpace(doc.Text) == "" {
		return doc, fmt.Errorf("%w: %s", model.ErrEmptyTranscript, arg.ID)
	}
	return doc, nil
}

func (p *Pipeline) buildVideoTool(ctx context.Context, doc model.TranscriptDocument) (*index.VideoTool, error) {
	rctx, cancel := withTimeout(ctx, p.opts.Timeouts.Retrieval)
	defer cancel()

	idx, err := index.Build(rctx, p.embedder, doc.Text, p.opts.Chunk)
	if err != nil {
		return nil, fmt.Errorf("%w: indexing transcript of %s: %w", model.ErrRetrieval, doc.VideoID, err)
	}
	logx.Debug().Str("video_id", doc.VideoID).Int("chunks", idx.Len()).Msg("transcript indexed")
	return index.NewVideoTool(doc.VideoID, idx, p.opts.VideoTopK), nil
}

func (p *Pipeline) summarize(ctx context.Context, doc model.TranscriptDocument, videoTool *index.VideoTool) (model.VideoSummary, error) {
	rctx, cancel := withTimeout(ctx, p.opts.Timeouts.Retrieval)
	hits, err := videoTool.Search(rctx, SummaryInstruction)
	cancel()
	if err != nil {
		if !errors.Is(err, model.ErrRetrieval) {
			err = fmt.Errorf("%w: searching transcript: %w", model.ErrRetrieval, err)
		}
		return model.VideoSummary{}, err
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	prompt, err := p.prompts.SummaryPrompt(PromptData{
		Context: strings.Join(texts, "\n\n"),
		Query:   SummaryInstruction,
		VideoID: doc.VideoID,
		Title:   doc.Title,
	})
	if err != nil {
		return model.VideoSummary{}, fmt.Errorf("creating prompt: %w", err)
	}

	cctx, cancel := withTimeout(ctx, p.opts.Timeouts.Completion)
	defer cancel()
	summary, err := Decode[model.VideoSummary](cctx, p.completer, prompt, summarySchema)
	if err != nil {
		return model.VideoSummary{}, fmt.Errorf("generating summary: %w", err)
	}

	summary.Summary = TrimSentences(strings.TrimSpace(summary.Summary), MaxSummarySentences)
	if summary.Summary == "" {
		return model.VideoSummary{}, fmt.Errorf("%w: summary is empty", model.ErrSchemaValidation)
	}
	if summary.Questions == nil {
		summary.Questions = []string{}
	}
	return summary, nil
}

func (p *Pipeline) relatedPapers(ctx context.Context, query string) ([]model.Paper, error) {
	collection, err := p.queryPapers(ctx, query, p.papers)
	if err != nil {
		return nil, err
	}
	return collection.Papers, nil
}

// Query answers prompt from the paper index alone.
func (p *Pipeline) Query(ctx context.Context, prompt string, paperTool PaperSearcher) (model.PaperCollection, error) {
	if paperTool == nil {
		return model.PaperCollection{}, model.ErrToolNotReady
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return model.PaperCollection{}, errors.New("prompt is empty")
	}
	return p.queryPapers(ctx, prompt, paperTool)
}

func (p *Pipeline) queryPapers(ctx context.Context, query string, paperTool PaperSearcher) (model.PaperCollection, error) {
	if paperTool == nil {
		return model.PaperCollection{}, fmt.Errorf("%w: no paper index configured", model.ErrRetrieval)
	}

	rctx, cancel := withTimeout(ctx, p.opts.Timeouts.Retrieval)
	docs, err := paperTool.Search(rctx, query)
	cancel()
	if err != nil {
		if !errors.Is(err, model.ErrRetrieval) {
			err = fmt.Errorf("%w: searching papers: %w", model.ErrRetrieval, err)
		}
		return model.PaperCollection{}, err
	}

	prompt, err := ResearchPrompt(papers.FormatContext(docs), query)
	if err != nil {
		return model.PaperCollection{}, fmt.Errorf("creating prompt: %w", err)
	}

	cctx, cancel := withTimeout(ctx, p.opts.Timeouts.Completion)
	defer cancel()
	collection, err := Decode[model.PaperCollection](cctx, p.completer, prompt, papersSchema)
	if err != nil {
		return model.PaperCollection{}, fmt.Errorf("extracting papers: %w", err)
	}
	if collection.Papers == nil {
		collection.Papers = []model.Paper{}
	}
	return collection, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// TrimSentences keeps the first n sentences of text.
func TrimSentences(text string, n int) string {
	sentences := SplitSentences(text)
	if len(sentences) <= n {
		return text
	}
	return strings.Join(sentences[:n], " ")
}

// SplitSentences splits on terminal punctuation followed by whitespace.
func SplitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		// keep runs like "?!" and "..." together
		for i+1 < len(runes) && strings.ContainsRune(".!?\"')", runes[i+1]) {
			i++
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}
