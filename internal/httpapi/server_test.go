package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentdeck/agentdeck/internal/engine"
	"github.com/agentdeck/agentdeck/internal/gitx"
	"github.com/agentdeck/agentdeck/internal/session"
)

type fakeSource struct {
	result    session.SessionsResult
	hasResult bool
	refreshed int
}

func (f *fakeSource) Latest() (session.SessionsResult, bool) { return f.result, f.hasResult }
func (f *fakeSource) TriggerRefresh()                        { f.refreshed++ }
func (f *fakeSource) DiffStats(dir string) gitx.DiffStats {
	return gitx.DiffStats{FilesChanged: 1, Additions: 2, Deletions: 3}
}
func (f *fakeSource) Health() map[string]engine.DetectorHealth {
	return map[string]engine.DetectorHealth{
		"claude": {Status: engine.StatusHealthy},
	}
}

type fakeActions struct {
	focused []int
	ended   []int
}

func (f *fakeActions) FocusSession(pid int, projectPath string) error {
	f.focused = append(f.focused, pid)
	return nil
}

func (f *fakeActions) EndSession(pid int) error {
	f.ended = append(f.ended, pid)
	return nil
}

func newTestServer(src *fakeSource, act *fakeActions, token string) *Server {
	if src == nil {
		src = &fakeSource{}
	}
	if act == nil {
		act = &fakeActions{}
	}
	return NewServer(src, act, NewBroadcaster(src.Latest, nil, 0), nil, token)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(nil, nil, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	s.Handler().ServeHTTP(rec, req)

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"X-XSS-Protection":        "1; mode=block",
		"Content-Security-Policy": "default-src 'self'",
	}
	for header, expected := range want {
		if got := rec.Header().Get(header); got != expected {
			t.Errorf("header %s = %q, want %q", header, got, expected)
		}
	}
}

func TestHandleSessions(t *testing.T) {
	src := &fakeSource{
		result: session.SessionsResult{
			Sessions:   []session.Session{{ID: "s1", Agent: session.ClaudeCode, PID: 42}},
			TotalCount: 1,
		},
		hasResult: true,
	}
	s := newTestServer(src, nil, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res session.SessionsResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("body not valid JSON: %v", err)
	}
	if res.TotalCount != 1 || len(res.Sessions) != 1 || res.Sessions[0].ID != "s1" {
		t.Errorf("result = %+v", res)
	}
}

func TestHandleSessionsBeforeFirstPass(t *testing.T) {
	s := newTestServer(&fakeSource{}, nil, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with empty result", rec.Code)
	}
}

func TestAuthToken(t *testing.T) {
	s := newTestServer(nil, nil, "secret")

	tests := []struct {
		name     string
		decorate func(*http.Request)
		want     int
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"query token", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", "secret")
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
		{"header token", func(r *http.Request) {
			r.Header.Set("X-AgentDeck-Token", "secret")
		}, http.StatusOK},
		{"bearer token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer secret")
		}, http.StatusOK},
		{"wrong token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer nope")
		}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
			tt.decorate(req)
			s.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSessionActionsDispatch(t *testing.T) {
	src := &fakeSource{
		result: session.SessionsResult{
			Sessions: []session.Session{{ID: "s1", PID: 42, ProjectPath: "/home/u/alpha"}},
		},
		hasResult: true,
	}
	act := &fakeActions{}
	s := newTestServer(src, act, "")
	h := s.Handler()

	post := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		return rec.Code
	}

	if code := post("/api/sessions/42/focus"); code != http.StatusNoContent {
		t.Errorf("focus status = %d", code)
	}
	if code := post("/api/sessions/42/end"); code != http.StatusNoContent {
		t.Errorf("end status = %d", code)
	}
	if code := post("/api/sessions/999/focus"); code != http.StatusNotFound {
		t.Errorf("unknown pid status = %d", code)
	}
	if code := post("/api/sessions/abc/focus"); code != http.StatusBadRequest {
		t.Errorf("bad pid status = %d", code)
	}
	if code := post("/api/sessions/42/nuke"); code != http.StatusNotFound {
		t.Errorf("unknown verb status = %d", code)
	}

	// GET on a mutating route is rejected.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/42/focus", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET focus status = %d", rec.Code)
	}

	if len(act.focused) != 1 || act.focused[0] != 42 {
		t.Errorf("focused = %v", act.focused)
	}
	if len(act.ended) != 1 || act.ended[0] != 42 {
		t.Errorf("ended = %v", act.ended)
	}
}

func TestHandleRefresh(t *testing.T) {
	src := &fakeSource{}
	s := newTestServer(src, nil, "")
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d", rec.Code)
	}
	if src.refreshed != 1 {
		t.Errorf("refreshed = %d, want 1", src.refreshed)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET refresh status = %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&fakeSource{}, nil, "")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health map[string]engine.DetectorHealth
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health["claude"].Status != engine.StatusHealthy {
		t.Errorf("health = %+v", health)
	}
}

func TestHandleDiff(t *testing.T) {
	s := newTestServer(&fakeSource{}, nil, "")
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diff?path=/home/u/alpha", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats gitx.DiffStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Additions != 2 || stats.Deletions != 3 {
		t.Errorf("stats = %+v", stats)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diff", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing path status = %d", rec.Code)
	}
}
