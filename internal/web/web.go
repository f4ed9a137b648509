package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"voicecal/internal/config"
	appLog "voicecal/internal/log"
	"voicecal/internal/metrics"
	"voicecal/internal/model"
	"voicecal/internal/timeparse"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 64 << 10

// Scheduler is satisfied by *scheduler.Orchestrator.
type Scheduler interface {
	Handle(ctx context.Context, req model.ScheduleVoiceRequest) model.ScheduleVoiceResponse
	Waiting() int
	Parser() *timeparse.Parser
}

// Server exposes the scheduling pipeline over HTTP.
type Server struct {
	cfg       *config.Config
	scheduler Scheduler
	metrics   *metrics.Metrics
	mux       *http.ServeMux
}

// NewServer constructs a new Server. m may be nil.
func NewServer(cfg *config.Config, sched Scheduler, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		scheduler: sched,
		metrics:   m,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="voicecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
// In-flight scheduling requests get up to grace to finish.
func (s *Server) ListenAndServe(ctx context.Context, grace time.Duration) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/parse", s.handleParse)
	s.mux.Handle("/artifacts/", http.StripPrefix("/artifacts/", s.artifactServer()))
	s.mux.Handle("/metrics", s.metrics.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSchedule runs one request through the pipeline.
//
// POST /api/schedule {"raw_text": "..."}
//
// Every pipeline outcome, including incomplete and conflict, is a 200 with
// the status in the body. Only malformed requests get 4xx.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVoiceRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Handle(r.Context(), req))
}

// parseResponse is the JSON response shape for /api/parse.
type parseResponse struct {
	RawText  string          `json:"raw_text"`
	Date     string          `json:"date"`
	Title    string          `json:"title"`
	Interval *model.Interval `json:"interval,omitempty"`
	Missing  []string        `json:"missing,omitempty"`
	Prompt   string          `json:"prompt,omitempty"`
}

// handleParse is a dry run of the parser; it never touches the calendar.
//
// POST /api/parse {"raw_text": "..."}
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVoiceRequest(w, r)
	if !ok {
		return
	}

	p := s.scheduler.Parser()
	resp := parseResponse{
		RawText: req.RawText,
		Date:    p.ParseDate(req.RawText).Format("2006-01-02"),
		Title:   timeparse.ExtractTitle(req.RawText),
	}

	sr, err := p.Parse(req.RawText)
	var inc *timeparse.IncompleteError
	switch {
	case errors.As(err, &inc):
		for _, f := range inc.Missing {
			resp.Missing = append(resp.Missing, string(f))
		}
		resp.Prompt = inc.Prompt
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	default:
		iv := sr.Interval()
		resp.Interval = &iv
		resp.Title = sr.Title
	}
	writeJSON(w, http.StatusOK, resp)
}

// artifactServer serves screenshots read-only, without directory listings.
func (s *Server) artifactServer() http.Handler {
	fs := http.FileServer(http.Dir(s.cfg.ArtifactDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

func decodeVoiceRequest(w http.ResponseWriter, r *http.Request) (model.ScheduleVoiceRequest, bool) {
	var req model.ScheduleVoiceRequest
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "unreadable request body")
		}
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
