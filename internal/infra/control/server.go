package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"easyquery/internal/domain"
)

const (
	maxTextBytes  = 4096
	maxAudioBytes = 10 * 1024 * 1024
)

// Dispatcher runs actions received over HTTP.
type Dispatcher interface {
	SubmitTextQuery(ctx context.Context, text string) domain.View
	SubmitSpeech(ctx context.Context, payload domain.AudioPayload) domain.View
}

type Config struct {
	Addr      string
	AuthToken string
	// RateLimit is the number of POST requests allowed per IP per minute.
	RateLimit int
}

// Server exposes the controller on a local HTTP port so queries can be
// sent from scripts or other tools.
type Server struct {
	addr       string
	authToken  string
	dispatcher Dispatcher
	logger     *slog.Logger

	mux     *http.ServeMux
	limiter *RateLimiter

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
	render   func(domain.View)
}

func NewServer(cfg Config, dispatcher Dispatcher, metrics http.Handler, logger *slog.Logger) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 30
	}

	s := &Server{
		addr:       cfg.Addr,
		authToken:  cfg.AuthToken,
		dispatcher: dispatcher,
		logger:     logger,
		mux:        http.NewServeMux(),
		limiter:    NewRateLimiter(cfg.RateLimit, time.Minute),
	}

	s.mux.HandleFunc("POST /query", s.limiter.Middleware(s.authorized(s.handleQuery)))
	s.mux.HandleFunc("POST /speech", s.limiter.Middleware(s.authorized(s.handleSpeech)))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
	return s
}

// OnRender registers a callback that receives every view produced by a
// request, so remote actions also show up locally.
func (s *Server) OnRender(fn func(domain.View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.render = fn
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the bound address once the server is running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("control server starting", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			s.logger.Warn("unauthorized control request", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r, maxTextBytes)
	if !ok {
		return
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		http.Error(w, "empty query", http.StatusBadRequest)
		return
	}

	s.logger.Info("received query via HTTP", "text", text)
	s.respond(w, s.dispatcher.SubmitTextQuery(r.Context(), text))
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r, maxAudioBytes)
	if !ok {
		s.logger.Warn("rejected audio body", "remote_addr", r.RemoteAddr)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty audio", http.StatusBadRequest)
		return
	}

	payload := domain.AudioPayload{
		SessionID: uuid.NewString(),
		Encoding:  audioEncoding(r.Header.Get("Content-Type")),
		Data:      data,
	}

	s.logger.Info("received audio via HTTP", "bytes", len(data), "encoding", payload.Encoding, "session", payload.SessionID)
	s.respond(w, s.dispatcher.SubmitSpeech(r.Context(), payload))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "running": running})
}

// respond echoes the view locally and returns it as JSON. A view whose
// results panel is an error maps to 422 so callers can branch on status.
func (s *Server) respond(w http.ResponseWriter, view domain.View) {
	s.mu.Lock()
	render := s.render
	s.mu.Unlock()
	if render != nil && !view.Empty() {
		render(view)
	}

	status := http.StatusOK
	if view.Results != nil && view.Results.Kind == domain.KindError {
		status = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(view); err != nil {
		s.logger.Warn("writing response", "error", err)
	}
}

// readBody reads at most limit bytes. Larger bodies are rejected with 413
// instead of being truncated.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, bool) {
	defer r.Body.Close()

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

// audioEncoding keeps audio/* content types and falls back to the default
// recording format for anything else.
func audioEncoding(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "audio/") {
		return domain.FallbackEncoding
	}
	return mediaType
}
