package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/rtzll/insight/internal/model"
	"github.com/rtzll/insight/internal/papers"
)

func TestAppToolsNotReady(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	if _, err := app.Query(ctx, DefaultSessionID, "anything"); !errors.Is(err, model.ErrToolNotReady) {
		t.Errorf("Query err = %v, want ErrToolNotReady", err)
	}
	if _, err := app.Chat(ctx, DefaultSessionID, "hello"); !errors.Is(err, model.ErrToolNotReady) {
		t.Errorf("Chat err = %v, want ErrToolNotReady", err)
	}

	// a session that exists but never finished an analysis is still not ready
	app.Sessions().GetOrCreate("fresh")
	if _, err := app.Chat(ctx, "fresh", "hello"); !errors.Is(err, model.ErrToolNotReady) {
		t.Errorf("Chat on empty session err = %v, want ErrToolNotReady", err)
	}
	if _, err := app.Query(ctx, "fresh", "anything"); !errors.Is(err, model.ErrToolNotReady) {
		t.Errorf("Query on empty session err = %v, want ErrToolNotReady", err)
	}
}

func TestAppAnalyzeThenChat(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	res, err := app.AnalyzeWithStatus(ctx, "s1", testVideoID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Summary == "" {
		t.Fatal("empty summary")
	}

	answer, err := app.Chat(ctx, "s1", "What is the talk about?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "The talk is about attention." {
		t.Errorf("answer = %q", answer)
	}

	history, err := app.history.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Role != schema.User || history[1].Role != schema.Assistant {
		t.Fatalf("history after one turn = %v", history)
	}

	// re-analysis keeps the conversation
	if _, err := app.Analyze(ctx, "s1", testVideoID); err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if history, _ = app.history.Load(ctx, "s1"); len(history) != 2 {
		t.Errorf("history after re-analysis has %d messages, want 2", len(history))
	}

	if err := app.ResetChat(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if history, _ = app.history.Load(ctx, "s1"); len(history) != 0 {
		t.Errorf("history after reset has %d messages", len(history))
	}
	if _, err := app.Chat(ctx, "s1", "Still there?"); err != nil {
		t.Errorf("Chat after reset: %v", err)
	}
}

func TestAppDeleteSessionForgetsConversation(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	id := app.NewSession()
	if _, err := app.Analyze(ctx, id, testVideoID); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Chat(ctx, id, "hi"); err != nil {
		t.Fatal(err)
	}

	if !app.DeleteSession(id) {
		t.Fatal("DeleteSession reported missing session")
	}
	if history, _ := app.history.Load(ctx, id); len(history) != 0 {
		t.Errorf("history survived delete: %d messages", len(history))
	}
	if _, err := app.Chat(ctx, id, "hi"); !errors.Is(err, model.ErrToolNotReady) {
		t.Errorf("Chat after delete err = %v", err)
	}
}

func TestAppFailedCallsLeaveSessionUntouched(t *testing.T) {
	const timeout = 20 * time.Millisecond
	tests := []struct {
		name  string
		opts  []AppOption
		run   func(context.Context, *App, *testDeps) error
		want  error
		cause error
	}{
		{
			name: "re-analysis transcript timeout",
			opts: []AppOption{withConfig(func(c *Config) { c.TranscriptTimeout = timeout })},
			run: func(ctx context.Context, app *App, d *testDeps) error {
				d.loader.block = true
				_, err := app.Analyze(ctx, "s1", testVideoID)
				return err
			},
			want:  model.ErrIngestion,
			cause: context.DeadlineExceeded,
		},
		{
			name: "re-analysis completion timeout",
			opts: []AppOption{withConfig(func(c *Config) { c.CompletionTimeout = timeout })},
			run: func(ctx context.Context, app *App, d *testDeps) error {
				d.completer.setBlock(summarySchema.Name, true)
				_, err := app.Analyze(ctx, "s1", testVideoID)
				return err
			},
			want:  model.ErrSchemaValidation,
			cause: context.DeadlineExceeded,
		},
		{
			name: "re-analysis paper search timeout",
			opts: []AppOption{withConfig(func(c *Config) { c.RetrievalTimeout = timeout })},
			run: func(ctx context.Context, app *App, d *testDeps) error {
				d.papers.block = true
				_, err := app.Analyze(ctx, "s1", testVideoID)
				return err
			},
			want:  model.ErrRetrieval,
			cause: context.DeadlineExceeded,
		},
		{
			name: "query timeout",
			opts: []AppOption{withConfig(func(c *Config) { c.RetrievalTimeout = timeout })},
			run: func(ctx context.Context, app *App, d *testDeps) error {
				d.papers.block = true
				_, err := app.Query(ctx, "s1", "sparse attention")
				return err
			},
			want:  model.ErrRetrieval,
			cause: context.DeadlineExceeded,
		},
		{
			name: "chat timeout",
			opts: []AppOption{
				withConfig(func(c *Config) { c.ChatTimeout = timeout }),
				WithChatModel(newGatedModel("too late")),
			},
			run: func(ctx context.Context, app *App, _ *testDeps) error {
				_, err := app.Chat(ctx, "s1", "What is the talk about?")
				return err
			},
			want:  model.ErrSchemaValidation,
			cause: context.DeadlineExceeded,
		},
		{
			name: "chat cancelled by caller",
			opts: []AppOption{WithChatModel(newGatedModel("too late"))},
			run: func(ctx context.Context, app *App, _ *testDeps) error {
				ctx, cancel := context.WithCancel(ctx)
				timer := time.AfterFunc(timeout, cancel)
				defer timer.Stop()
				_, err := app.Chat(ctx, "s1", "What is the talk about?")
				return err
			},
			want:  model.ErrSchemaValidation,
			cause: context.Canceled,
		},
		{
			name: "re-analysis cancelled by caller",
			run: func(ctx context.Context, app *App, d *testDeps) error {
				d.completer.setBlock(papersSchema.Name, true)
				ctx, cancel := context.WithCancel(ctx)
				timer := time.AfterFunc(timeout, cancel)
				defer timer.Stop()
				_, err := app.Analyze(ctx, "s1", testVideoID)
				return err
			},
			want:  model.ErrSchemaValidation,
			cause: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, deps := newTestApp(t, tt.opts...)
			ctx := context.Background()

			if _, err := app.Analyze(ctx, "s1", testVideoID); err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			earlier := []*schema.Message{schema.UserMessage("earlier"), schema.AssistantMessage("reply", nil)}
			if err := app.history.Append(ctx, "s1", earlier...); err != nil {
				t.Fatal(err)
			}
			sess, _ := app.Sessions().Acquire("s1", false)
			before := sess.Tools()
			analysis, _ := sess.Analysis()
			sess.Unlock()

			err := tt.run(ctx, app, deps)
			if !errors.Is(err, tt.want) || !errors.Is(err, tt.cause) {
				t.Fatalf("err = %v, want %v wrapping %v", err, tt.want, tt.cause)
			}

			sess, ok := app.Sessions().Acquire("s1", false)
			if !ok {
				t.Fatal("session disappeared")
			}
			after := sess.Tools()
			got, _ := sess.Analysis()
			sess.Unlock()
			if after.Video != before.Video || after.Papers != before.Papers {
				t.Error("failed call replaced the session's tools")
			}
			if got.Summary != analysis.Summary {
				t.Errorf("analysis summary = %q, want %q", got.Summary, analysis.Summary)
			}
			history, err := app.history.Load(ctx, "s1")
			if err != nil {
				t.Fatal(err)
			}
			if len(history) != len(earlier) {
				t.Errorf("history has %d messages after failed call, want %d", len(history), len(earlier))
			}
		})
	}
}

func TestAppDeleteWaitsForRunningChat(t *testing.T) {
	gated := newGatedModel("The talk is about attention.")
	app, _ := newTestApp(t, WithChatModel(gated))
	ctx := context.Background()

	if _, err := app.Analyze(ctx, "s1", testVideoID); err != nil {
		t.Fatal(err)
	}

	type chatResult struct {
		answer string
		err    error
	}
	chatDone := make(chan chatResult, 1)
	go func() {
		answer, err := app.Chat(ctx, "s1", "What is the talk about?")
		chatDone <- chatResult{answer, err}
	}()
	<-gated.started

	deleted := make(chan bool, 1)
	go func() { deleted <- app.DeleteSession("s1") }()

	select {
	case <-deleted:
		t.Fatal("DeleteSession returned while a chat turn was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.release)
	res := <-chatDone
	if res.err != nil || res.answer != "The talk is about attention." {
		t.Fatalf("Chat = %q, %v", res.answer, res.err)
	}
	if !<-deleted {
		t.Fatal("DeleteSession reported missing session")
	}

	if history, _ := app.history.Load(ctx, "s1"); len(history) != 0 {
		t.Errorf("history written by the running turn survived delete: %d messages", len(history))
	}
	if _, err := app.Query(ctx, "s1", "anything"); !errors.Is(err, model.ErrToolNotReady) {
		t.Errorf("Query after delete err = %v, want ErrToolNotReady", err)
	}
}

func TestAppTranscript(t *testing.T) {
	app, deps := newTestApp(t)
	ctx := context.Background()

	doc, err := app.Transcript(ctx, "https://youtu.be/"+testVideoID)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if doc.Text != testTranscript {
		t.Errorf("Text = %q", doc.Text)
	}

	if _, err := app.Transcript(ctx, "PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf"); !errors.Is(err, model.ErrIngestion) {
		t.Errorf("playlist err = %v", err)
	}

	deps.loader.err = ErrNoCaptions
	if _, err := app.Transcript(ctx, testVideoID); !errors.Is(err, ErrNoCaptions) || !errors.Is(err, model.ErrIngestion) {
		t.Errorf("no captions err = %v", err)
	}
}

type stubStore struct {
	docs   []papers.Document
	closed bool
}

func (s *stubStore) Search(context.Context, []float32, int) ([]papers.Document, error) {
	return s.docs, nil
}

func (s *stubStore) Close() error {
	s.closed = true
	return nil
}

func TestLazyPapersRetriesConnect(t *testing.T) {
	store := &stubStore{docs: newFakePapers().docs}
	attempts := 0
	lazy := newLazyPapers(&constEmbedder{}, 5, func(context.Context) (papers.Store, error) {
		attempts++
		if attempts == 1 {
			return nil, errBoom
		}
		return store, nil
	})
	ctx := context.Background()

	if _, err := lazy.Search(ctx, "q"); !errors.Is(err, model.ErrRetrieval) || !errors.Is(err, errBoom) {
		t.Fatalf("first Search err = %v", err)
	}
	docs, err := lazy.Search(ctx, "q")
	if err != nil || len(docs) != 1 {
		t.Fatalf("second Search = %v, %v", docs, err)
	}
	if _, err := lazy.Query(ctx, "q"); err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Errorf("connected %d times, want 2", attempts)
	}

	if err := lazy.Close(); err != nil || !store.closed {
		t.Errorf("Close = %v, closed %v", err, store.closed)
	}
}

func TestAppHealthyWithoutRedis(t *testing.T) {
	app, _ := newTestApp(t)
	if err := app.Healthy(context.Background()); err != nil {
		t.Errorf("Healthy = %v", err)
	}
}
