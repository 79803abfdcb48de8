// Package httpapi exposes the engine's published results over HTTP and
// websocket, plus the mutating session endpoints (focus, end).
package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agentdeck/agentdeck/internal/engine"
	"github.com/agentdeck/agentdeck/internal/gitx"
	"github.com/agentdeck/agentdeck/internal/session"
	"github.com/gorilla/websocket"
)

// SessionSource is the read side the server needs from the engine.
type SessionSource interface {
	Latest() (session.SessionsResult, bool)
	TriggerRefresh()
	DiffStats(dir string) gitx.DiffStats
	Health() map[string]engine.DetectorHealth
}

// SessionActions is the mutating side.
type SessionActions interface {
	FocusSession(pid int, projectPath string) error
	EndSession(pid int) error
}

type Server struct {
	source      SessionSource
	actions     SessionActions
	broadcaster *Broadcaster
	privacy     *session.PrivacyFilter
	authToken   string
}

func NewServer(source SessionSource, actions SessionActions, broadcaster *Broadcaster, privacy *session.PrivacyFilter, authToken string) *Server {
	if privacy == nil {
		privacy = &session.PrivacyFilter{}
	}
	return &Server{
		source:      source,
		actions:     actions,
		broadcaster: broadcaster,
		privacy:     privacy,
		authToken:   authToken,
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/diff", s.handleDiff)
	mux.HandleFunc("/api/health", s.handleHealth)
}

// Handler returns the full route set with the hardening headers applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[httpapi] ws upgrade error: %v", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		log.Printf("[httpapi] rejecting ws client: %v", err)
		conn.Close()
		return
	}

	go func() {
		defer s.broadcaster.RemoveClient(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	res, ok := s.source.Latest()
	if !ok {
		// First pass hasn't completed yet; an empty result is still valid.
		res = session.SessionsResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.privacy.FilterResult(res))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.source.TriggerRefresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	dir := r.URL.Query().Get("path")
	if dir == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source.DiffStats(dir))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source.Health())
}

func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Parse: /api/sessions/{pid}/focus or /api/sessions/{pid}/end
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		http.Error(w, "invalid pid", http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "focus":
		s.handleFocus(w, r, pid)
	case "end":
		s.handleEnd(w, r, pid)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request, pid int) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	found, ok := s.lookup(pid)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if err := s.actions.FocusSession(pid, found.ProjectPath); err != nil {
		http.Error(w, fmt.Sprintf("focus failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request, pid int) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, ok := s.lookup(pid); !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if err := s.actions.EndSession(pid); err != nil {
		http.Error(w, fmt.Sprintf("end failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookup finds a session by pid in the latest published result.
func (s *Server) lookup(pid int) (session.Session, bool) {
	res, ok := s.source.Latest()
	if !ok {
		return session.Session{}, false
	}
	for _, lst := range [][]session.Session{res.Sessions, res.BackgroundSessions} {
		for _, sess := range lst {
			if sess.PID == pid {
				return sess, true
			}
		}
	}
	return session.Session{}, false
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}
	if r.Header.Get("X-AgentDeck-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}
	return false
}

// checkOrigin admits same-host and loopback origins; the daemon is a local
// tool, not an internet-facing service.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}
	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}
	return false
}

func ListenAndServe(host string, port int, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("[httpapi] listening on %s", addr)
	return http.ListenAndServe(addr, handler)
}
