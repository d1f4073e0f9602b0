package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rtzll/insight/internal/errx"
	"github.com/rtzll/insight/internal/model"
	"github.com/rtzll/insight/pkg/logx"
)

// SessionHeader selects the session a request operates on.
const SessionHeader = "X-Session-ID"

const maxBodyBytes = 1 << 20

type analyzeRequest struct {
	YoutubeURL string `json:"youtube_url"`
}

type queryRequest struct {
	Prompt string `json:"prompt"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server exposes the app over HTTP.
type Server struct {
	app     *App
	origins []string
	limiter *rate.Limiter
	handler http.Handler
}

// NewServer builds the HTTP handler for app.
func NewServer(app *App) *Server {
	s := &Server{app: app, origins: app.config.CORSOrigins}
	if app.config.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(app.config.RateLimit), max(app.config.RateBurst, 1))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyzer", s.handleAnalyze)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.handler = s.withCORS(s.withLogging(mux))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logx.Info().Msg("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeError(w, r, errx.New(nil, http.StatusTooManyRequests, "rate limit exceeded"))
		return
	}
	sessionID, ok := s.session(w, r)
	if !ok {
		return
	}

	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.YoutubeURL) == "" {
		s.writeError(w, r, errx.New(nil, http.StatusBadRequest, "youtube_url is required"))
		return
	}

	res, err := s.app.Analyze(r.Context(), sessionID, req.YoutubeURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.session(w, r)
	if !ok {
		return
	}

	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.app.Query(r.Context(), sessionID, req.Prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.session(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}

	answer, err := s.app.Chat(r.Context(), sessionID, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: answer})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.app.NewSession()
	w.Header().Set(SessionHeader, id)
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.app.DeleteSession(id) {
		s.writeError(w, r, errx.New(nil, http.StatusNotFound, fmt.Sprintf("session %q not found", id)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Healthy(r.Context()); err != nil {
		logx.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session resolves the request's session id and echoes it back.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		id = DefaultSessionID
	}
	if !ValidSessionID(id) {
		s.writeError(w, r, errx.New(nil, http.StatusBadRequest, "invalid "+SessionHeader+" header"))
		return "", false
	}
	w.Header().Set(SessionHeader, id)
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, errx.New(err, http.StatusBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errx.FromError(err)

	evt := logx.Warn()
	if appErr.Status >= http.StatusInternalServerError {
		evt = logx.Error()
	}
	evt.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", appErr.Status).
		Str("kind", model.Kind(err)).
		Msg("request failed")

	writeJSON(w, appErr.Status, errorResponse{Detail: appErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logx.Warn().Err(err).Msg("write json error")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logx.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// withCORS allows credentialed requests from the configured origins with
// any method and header.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !s.originAllowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Expose-Headers", SessionHeader)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", r.Header.Get("Access-Control-Request-Method"))
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}
