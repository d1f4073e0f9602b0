package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rtzll/insight/internal/agent"
	"github.com/rtzll/insight/internal/errx"
	"github.com/rtzll/insight/internal/index"
	"github.com/rtzll/insight/internal/model"
	"github.com/rtzll/insight/internal/papers"
	"github.com/rtzll/insight/pkg/logx"
	"github.com/rtzll/insight/pkg/redis"
)

// App holds the application state and dependencies
type App struct {
	config *Config

	loader    TranscriptLoader
	embedder  index.Embedder
	completer Completer
	paperTool PaperSearcher
	chatModel einomodel.ChatModel
	history   agent.HistoryRepository
	ui        UIManager

	pipeline *Pipeline
	sessions *SessionStore
	rdb      *goredis.Client

	routerMu sync.Mutex
	router   *agent.Router

	closers []func() error
}

// AppOption customizes App creation
type AppOption func(*App)

// WithTranscriptLoader sets a custom transcript source
func WithTranscriptLoader(loader TranscriptLoader) AppOption {
	return func(a *App) { a.loader = loader }
}

// WithEmbedder sets a custom embedder for both indexes
func WithEmbedder(embedder index.Embedder) AppOption {
	return func(a *App) { a.embedder = embedder }
}

// WithCompleter sets a custom structured completion client
func WithCompleter(completer Completer) AppOption {
	return func(a *App) { a.completer = completer }
}

// WithPaperTool replaces the configured paper store
func WithPaperTool(paperTool PaperSearcher) AppOption {
	return func(a *App) { a.paperTool = paperTool }
}

// WithChatModel sets the chat agent's model
func WithChatModel(cm einomodel.ChatModel) AppOption {
	return func(a *App) { a.chatModel = cm }
}

// WithHistory sets the conversation history store
func WithHistory(history agent.HistoryRepository) AppOption {
	return func(a *App) { a.history = history }
}

// WithUI sets the terminal UI
func WithUI(ui UIManager) AppOption {
	return func(a *App) { a.ui = ui }
}

// NewApp initializes the application. Nothing dials the paper store or an
// LLM until the first request needs it; Redis is connected eagerly when
// configured so a bad URL fails at startup.
func NewApp(ctx context.Context, config *Config, options ...AppOption) (*App, error) {
	app := &App{config: config}
	for _, option := range options {
		option(app)
	}

	if app.loader == nil {
		app.loader = NewYouTube(config.CacheDir, config.TranscriptsDir)
	}
	if app.embedder == nil {
		app.embedder = index.NewOpenAIEmbedder(config.OpenAIAPIKey, config.EmbeddingModel)
	}
	if app.completer == nil {
		app.completer = NewOpenAIClient(config.OpenAIAPIKey, config.SummaryModel, config.SummaryTemperature)
	}
	if app.paperTool == nil {
		lazy := newLazyPapers(app.embedder, config.TopK, func(ctx context.Context) (papers.Store, error) {
			return papers.Open(ctx, papers.Options{
				Backend:     config.PaperStore,
				DatabaseURL: config.DatabaseURL,
				Dataset:     config.PaperTable,
				Milvus: papers.MilvusConfig{
					Address:  config.MilvusAddr,
					Username: config.MilvusUsername,
					Password: config.MilvusPassword,
					APIKey:   config.MilvusAPIKey,
				},
			})
		})
		app.paperTool = lazy
		app.closers = append(app.closers, lazy.Close)
	}
	if app.history == nil {
		history, err := app.newHistory(ctx)
		if err != nil {
			return nil, err
		}
		app.history = history
	}
	if app.ui == nil {
		app.ui = NewUIManager(config.Quiet)
	}

	app.pipeline = NewPipeline(app.loader, app.embedder, app.completer, app.paperTool,
		NewPromptManager(config.ConfigDir, config.Prompt),
		PipelineOptions{
			Chunk:     index.ChunkOptions{Size: config.ChunkSize, Overlap: config.ChunkOverlap},
			VideoTopK: config.VideoTopK,
			Timeouts: Timeouts{
				Transcript: config.TranscriptTimeout,
				Completion: config.CompletionTimeout,
				Retrieval:  config.RetrievalTimeout,
			},
		})
	app.sessions = NewSessionStore(config.SessionTTL, app.forgetConversation)
	return app, nil
}

func (app *App) newHistory(ctx context.Context) (agent.HistoryRepository, error) {
	if app.config.RedisURL == "" {
		return agent.NewMemoryHistory(), nil
	}

	rc := &redis.Config{
		URL:          app.config.RedisURL,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	}
	rdb, err := rc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	app.rdb = rdb
	app.closers = append(app.closers, rdb.Close)
	logx.Info().Msg("chat history stored in redis")
	return agent.NewRedisHistory(rdb, app.config.HistoryTTL), nil
}

// SetPromptManager sets a new summary prompt manager
func (app *App) SetPromptManager(pm *PromptManager) {
	app.pipeline.SetPrompts(pm)
}

// Sessions exposes the session store.
func (app *App) Sessions() *SessionStore {
	return app.sessions
}

// Start runs background maintenance until ctx ends.
func (app *App) Start(ctx context.Context) {
	app.sessions.Start(ctx)
}

// Healthy reports whether the services the app depends on at startup
// still respond.
func (app *App) Healthy(ctx context.Context) error {
	if app.rdb == nil {
		return nil
	}
	return errx.WrapRedis(app.rdb.Ping(ctx).Err())
}

// Close stops background work and releases connections.
func (app *App) Close() error {
	app.sessions.Close()
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Analyze runs the pipeline for locator and, only on success, installs the
// new tools on the session.
func (app *App) Analyze(ctx context.Context, sessionID, locator string) (model.AnalysisResult, error) {
	return app.analyze(ctx, sessionID, locator, nil)
}

// AnalyzeWithStatus is Analyze with a terminal spinner.
func (app *App) AnalyzeWithStatus(ctx context.Context, sessionID, locator string) (model.AnalysisResult, error) {
	spinner := app.ui.NewSpinner("Analyzing video...")
	defer spinner.Finish()
	return app.analyze(ctx, sessionID, locator, func(stage string) {
		spinner.Describe(stage)
		spinner.Advance()
	})
}

func (app *App) analyze(ctx context.Context, sessionID, locator string, onStage StageFunc) (model.AnalysisResult, error) {
	sess, _ := app.sessions.Acquire(sessionID, true)
	defer sess.Unlock()

	res, videoTool, err := app.pipeline.Analyze(ctx, locator, onStage)
	if err != nil {
		logFailure("analyze", sessionID, err)
		return model.AnalysisResult{}, err
	}
	sess.install(res, videoTool, app.pipeline.Papers())
	return res, nil
}

// Query answers prompt from the research papers of the session.
func (app *App) Query(ctx context.Context, sessionID, prompt string) (model.PaperCollection, error) {
	sess, ok := app.sessions.Acquire(sessionID, false)
	if !ok {
		return model.PaperCollection{}, model.ErrToolNotReady
	}
	defer sess.Unlock()

	res, err := app.pipeline.Query(ctx, prompt, sess.PaperTool())
	if err != nil {
		logFailure("query", sessionID, err)
		return model.PaperCollection{}, err
	}
	return res, nil
}

// Chat runs one agent turn in the session's conversation.
func (app *App) Chat(ctx context.Context, sessionID, message string) (string, error) {
	sess, ok := app.sessions.Acquire(sessionID, false)
	if !ok {
		return "", model.ErrToolNotReady
	}
	defer sess.Unlock()

	tools := sess.Tools()
	if tools.Video == nil {
		return "", model.ErrToolNotReady
	}

	router, err := app.chatRouter(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, app.config.ChatTimeout)
	defer cancel()
	answer, err := router.Chat(ctx, sessionID, message, tools)
	if err != nil {
		logFailure("chat", sessionID, err)
		return "", err
	}
	return answer, nil
}

// Transcript fetches the transcript of a single video.
func (app *App) Transcript(ctx context.Context, locator string) (model.TranscriptDocument, error) {
	arg := ClassifyArg(locator)
	if !arg.IsValid() {
		if arg.ContentType == ContentTypePlaylist {
			return model.TranscriptDocument{}, fmt.Errorf("%w: playlists are not supported", model.ErrIngestion)
		}
		return model.TranscriptDocument{}, fmt.Errorf("%w: %w", model.ErrIngestion, arg.Error)
	}

	ctx, cancel := withTimeout(ctx, app.config.TranscriptTimeout)
	defer cancel()
	doc, err := app.loader.Load(ctx, arg.NormalizedURL)
	if err != nil {
		return doc, fmt.Errorf("%w: %s: %w", model.ErrIngestion, arg.ID, err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return doc, fmt.Errorf("%w: %s", model.ErrEmptyTranscript, arg.ID)
	}
	return doc, nil
}

// NewSession creates an empty session and returns its id.
func (app *App) NewSession() string {
	return app.sessions.Create().ID
}

// DeleteSession drops the session's tools and conversation. It waits for
// an operation already running on the session.
func (app *App) DeleteSession(sessionID string) bool {
	return app.sessions.Delete(sessionID)
}

// ResetChat forgets the session's conversation but keeps its tools.
func (app *App) ResetChat(ctx context.Context, sessionID string) error {
	return app.history.Clear(ctx, sessionID)
}

func (app *App) forgetConversation(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.history.Clear(ctx, sessionID); err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("failed to clear conversation history")
	}
}

func (app *App) chatRouter(ctx context.Context) (*agent.Router, error) {
	app.routerMu.Lock()
	defer app.routerMu.Unlock()
	if app.router != nil {
		return app.router, nil
	}

	cm := app.chatModel
	if cm == nil {
		var err error
		if cm, err = newChatModel(ctx, app.config); err != nil {
			return nil, err
		}
	}
	router, err := agent.NewRouter(cm, app.history, app.config.MaxToolCalls)
	if err != nil {
		return nil, err
	}
	app.router = router
	return router, nil
}

func newChatModel(ctx context.Context, config *Config) (einomodel.ChatModel, error) {
	switch config.ChatProvider {
	case "gemini":
		return agent.NewGeminiChatModel(ctx, agent.GeminiConfig{
			APIKey:      config.GeminiAPIKey,
			Model:       config.ChatModel,
			Temperature: float32(config.ChatTemperature),
		})
	default:
		if err := ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
			return nil, err
		}
		return agent.NewOpenAIChatModel(config.OpenAIAPIKey, config.ChatModel, float32(config.ChatTemperature))
	}
}

func logFailure(op, sessionID string, err error) {
	evt := logx.Warn()
	if errors.Is(err, context.Canceled) {
		evt = logx.Debug()
	}
	evt.Err(err).
		Str("op", op).
		Str("session_id", sessionID).
		Str("kind", model.Kind(err)).
		Msg("operation failed")
}

// lazyPapers connects the paper store on first use and retries on the next
// call if connecting failed.
type lazyPapers struct {
	embedder index.Embedder
	topK     int
	open     func(ctx context.Context) (papers.Store, error)

	mu    sync.Mutex
	index *papers.Index
}

var _ PaperSearcher = (*lazyPapers)(nil)

func newLazyPapers(embedder index.Embedder, topK int, open func(ctx context.Context) (papers.Store, error)) *lazyPapers {
	return &lazyPapers{embedder: embedder, topK: topK, open: open}
}

func (l *lazyPapers) get(ctx context.Context) (*papers.Index, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index != nil {
		return l.index, nil
	}

	store, err := l.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to paper store: %w", model.ErrRetrieval, err)
	}
	l.index = papers.NewIndex(l.embedder, store, l.topK)
	logx.Info().Int("top_k", l.index.TopK()).Msg("paper store connected")
	return l.index, nil
}

func (l *lazyPapers) Name() string        { return model.PaperToolName }
func (l *lazyPapers) Description() string { return model.PaperToolDescription }

func (l *lazyPapers) Search(ctx context.Context, query string) ([]papers.Document, error) {
	ix, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return ix.Search(ctx, query)
}

func (l *lazyPapers) Query(ctx context.Context, input string) (string, error) {
	ix, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return ix.Query(ctx, input)
}

func (l *lazyPapers) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index == nil {
		return nil
	}
	return l.index.Close()
}
