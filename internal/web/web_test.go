package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sylcal/internal/config"
	"sylcal/internal/syllabus"
)

const sample = "<title>CS101</title>\n<table>" +
	"Module $ Date $ Activities $ Technology $ Onsite $ Async $ Hours @\n" +
	"M1 $ Week 1 (Jan. 5-7) $ Quiz $ Zoom $ true $ false $ 2" +
	"</table>\n"

type response struct {
	CourseTitle string                `json:"courseTitle"`
	Tables      int                   `json:"tables"`
	Events      []json.RawMessage     `json:"events"`
	Diagnostics []syllabus.Diagnostic `json:"diagnostics"`
	Occurrences []occurrenceDTO       `json:"occurrences"`
	Error       string                `json:"error"`
}

func newTestServer(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewServer(cfg, syllabus.NewResolver(2024, time.FixedZone("SGT", 8*3600)))
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	return r
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(nil).Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestExtract_JSON(t *testing.T) {
	rec := do(t, newTestServer(nil).Handler(), http.MethodPost, "/api/extract", sample)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	r := decode(t, rec)
	assert.Equal(t, "CS101", r.CourseTitle)
	assert.Equal(t, 1, r.Tables)
	assert.Len(t, r.Events, 1)
	assert.Empty(t, r.Diagnostics)
	assert.Empty(t, r.Occurrences)
}

func TestExtract_YearOverride(t *testing.T) {
	rec := do(t, newTestServer(nil).Handler(), http.MethodPost, "/api/extract?year=2031", sample)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2031-01-05")
}

func TestExtract_ICS(t *testing.T) {
	rec := do(t, newTestServer(nil).Handler(), http.MethodPost, "/api/extract?format=ics&recurrence=daily", sample)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:CS101 | Week 1")
	assert.Contains(t, body, "RRULE:FREQ=DAILY")
}

func TestExtract_Occurrences(t *testing.T) {
	rec := do(t, newTestServer(nil).Handler(), http.MethodPost, "/api/extract?recurrence=daily", sample)
	require.Equal(t, http.StatusOK, rec.Code)

	r := decode(t, rec)
	require.Len(t, r.Occurrences, 3)
	for i, o := range r.Occurrences {
		assert.Equal(t, 5+i, o.Start.Day())
		assert.Equal(t, 2*time.Hour, o.End.Sub(o.Start))
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "/api/extract", "", http.StatusMethodNotAllowed},
		{"empty body", http.MethodPost, "/api/extract", "  \n ", http.StatusBadRequest},
		{"bad format", http.MethodPost, "/api/extract?format=xml", sample, http.StatusBadRequest},
		{"bad year", http.MethodPost, "/api/extract?year=abc", sample, http.StatusBadRequest},
		{"bad recurrence", http.MethodPost, "/api/extract?recurrence=hourly", sample, http.StatusBadRequest},
	}
	h := newTestServer(nil).Handler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode(t, rec).Error)
		})
	}
}

func TestExtract_NoData(t *testing.T) {
	h := newTestServer(nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/extract", "just prose, no tables")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	r := decode(t, rec)
	assert.Equal(t, syllabus.ErrNoTables.Error(), r.Error)
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, syllabus.ReasonNoTables, r.Diagnostics[0].Reason)

	badRow := strings.Replace(sample, "Week 1", "Orientation", 1)
	rec = do(t, h, http.MethodPost, "/api/extract?format=ics", badRow)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	r = decode(t, rec)
	assert.Equal(t, syllabus.ErrNoEvents.Error(), r.Error)
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, syllabus.ReasonNoWeek, r.Diagnostics[0].Reason)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := newTestServer(cfg).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/extract", sample)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(sample))
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(sample))
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuth_EmptyCredentialsDisable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin"}
	rec := do(t, newTestServer(cfg).Handler(), http.MethodPost, "/api/extract", sample)
	assert.Equal(t, http.StatusOK, rec.Code)
}
