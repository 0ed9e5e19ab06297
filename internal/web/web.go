package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sylcal/internal/config"
	"sylcal/internal/ics"
	appLog "sylcal/internal/log"
	"sylcal/internal/model"
	"sylcal/internal/syllabus"
)

// maxBodyBytes bounds the size of an uploaded syllabus.
const maxBodyBytes = 8 << 20

// shutdownTimeout is how long Run waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// Server provides the HTTP API for syllabus extraction.
type Server struct {
	cfg      *config.Config
	resolver syllabus.Resolver
	mux      *http.ServeMux
}

// NewServer constructs a new Server. resolver supplies the default year,
// zone and start hour; requests may override the year.
func NewServer(cfg *config.Config, resolver syllabus.Resolver) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		mux:      http.NewServeMux(),
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

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
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
			w.Header().Set("WWW-Authenticate", `Basic realm="sylcal", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/extract", s.handleExtract)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// extractResponse is the JSON response shape for /api/extract.
type extractResponse struct {
	syllabus.Result
	Occurrences []occurrenceDTO `json:"occurrences,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// occurrenceDTO is one repetition of an event under a recurrence mode.
type occurrenceDTO struct {
	UID     string    `json:"uid"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// handleExtract turns a converted syllabus into events.
//
// POST /api/extract?format=json|ics&year=2025&recurrence=none|daily|weekly
//   - body:       the converted text document
//   - format:     response encoding (default json)
//   - year:       reference year override
//   - recurrence: repeat events across their week range (default from config)
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "ics" {
		writeError(w, http.StatusBadRequest, "format must be json or ics")
		return
	}

	recParam := q.Get("recurrence")
	if recParam == "" {
		recParam = s.cfg.Recurrence
	}
	rec, err := ics.ParseRecurrence(recParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resolver := s.resolver
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil || year < 1 || year > 9999 {
			writeError(w, http.StatusBadRequest, "year must be between 1 and 9999")
			return
		}
		resolver.Year = year
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	res, err := syllabus.NewExtractor(resolver).Extract(string(body))
	if errors.Is(err, syllabus.ErrEmptyInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		appLog.Error("api extract failed", err)
		writeError(w, http.StatusInternalServerError, "extraction failed")
		return
	}

	appLog.Info("api extract request",
		"format", format,
		"year", resolver.Year,
		"recurrence", string(rec),
		"events", len(res.Events),
	)

	if noData := res.NoData(); noData != nil {
		writeJSON(w, http.StatusUnprocessableEntity, extractResponse{Result: res, Error: noData.Error()})
		return
	}

	if format == "ics" {
		cal, err := ics.Encode(res.Events, ics.ExportConfig{Name: res.CourseTitle, Recurrence: rec})
		if err != nil {
			appLog.Error("api extract: ics encode failed", err)
			writeError(w, http.StatusInternalServerError, "failed to encode calendar")
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="syllabus.ics"`)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, cal)
		return
	}

	resp := extractResponse{Result: res}
	if rec != ics.RecurrenceNone {
		resp.Occurrences, err = expand(res.Events, rec)
		if err != nil {
			appLog.Error("api extract: expand failed", err)
			writeError(w, http.StatusInternalServerError, "failed to expand events")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func expand(events []model.CalendarEvent, rec ics.Recurrence) ([]occurrenceDTO, error) {
	var out []occurrenceDTO
	for _, ev := range events {
		starts, err := ics.Occurrences(ev, rec)
		if err != nil {
			return nil, err
		}
		dur := ev.EndTime.Sub(ev.StartTime)
		uid := ev.UID().String()
		for _, st := range starts {
			out = append(out, occurrenceDTO{UID: uid, Summary: ev.Summary, Start: st, End: st.Add(dur)})
		}
	}
	return out, nil
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
