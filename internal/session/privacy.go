package session

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
)

// PrivacyFilter applies masking and path-based filtering to sessions before
// they are served or broadcast to clients. The zero value is a no-op filter.
type PrivacyFilter struct {
	MaskProjectPaths bool
	MaskSessionIDs   bool
	MaskPIDs         bool
	MaskMessages     bool
	AllowedPaths     []string
	BlockedPaths     []string
}

// IsAllowed reports whether a session with the given project path should be
// exposed. An empty path is always allowed (the session hasn't resolved its
// project yet). When AllowedPaths is non-empty, the path must match at least
// one pattern. If it passes the allowlist, it must not match any
// BlockedPaths pattern.
func (f *PrivacyFilter) IsAllowed(projectPath string) bool {
	if projectPath == "" {
		return true
	}

	if len(f.AllowedPaths) > 0 {
		allowed := false
		for _, pattern := range f.AllowedPaths {
			if matchPathOrParent(pattern, projectPath) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	for _, pattern := range f.BlockedPaths {
		if matchPathOrParent(pattern, projectPath) {
			return false
		}
	}

	return true
}

// matchPathOrParent checks if pattern matches path or any of its parent
// directories. This allows patterns like "/home/user/*" to match deeply
// nested paths like "/home/user/work/project-a" because the parent
// "/home/user/work" matches the glob.
func matchPathOrParent(pattern, path string) bool {
	for p := path; p != "." && p != "" && p != filepath.Dir(p); p = filepath.Dir(p) {
		if matched, _ := filepath.Match(pattern, p); matched {
			return true
		}
	}
	return false
}

// Apply returns a copy of the session with sensitive fields masked according
// to the filter configuration. The original is never modified.
func (f *PrivacyFilter) Apply(s Session) Session {
	masked := s

	if f.MaskProjectPaths && masked.ProjectPath != "" {
		masked.ProjectPath = filepath.Base(masked.ProjectPath)
	}
	if f.MaskSessionIDs && masked.ID != "" {
		masked.ID = shortHash(masked.ID)
	}
	if f.MaskPIDs {
		masked.PID = 0
	}
	if f.MaskMessages {
		masked.LastMessage = ""
		masked.LastUserMessage = ""
	}

	return masked
}

// FilterSlice returns a new slice containing only the allowed sessions, with
// masking applied to each. The original slice is not modified.
func (f *PrivacyFilter) FilterSlice(sessions []Session) []Session {
	result := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if !f.IsAllowed(s.ProjectPath) {
			continue
		}
		result = append(result, f.Apply(s))
	}
	return result
}

// FilterResult filters both session lists of a published result and
// recomputes the counters over what remains.
func (f *PrivacyFilter) FilterResult(res SessionsResult) SessionsResult {
	if f.IsNoop() {
		return res
	}

	out := res
	out.Sessions = f.FilterSlice(res.Sessions)
	out.BackgroundSessions = f.FilterSlice(res.BackgroundSessions)
	out.TotalCount, out.WaitingCount, out.AgentCounts = Counts(out.Sessions)
	return out
}

// IsNoop reports whether the filter does nothing (no masking, no path filtering).
func (f *PrivacyFilter) IsNoop() bool {
	return !f.MaskProjectPaths && !f.MaskSessionIDs && !f.MaskPIDs && !f.MaskMessages &&
		len(f.AllowedPaths) == 0 && len(f.BlockedPaths) == 0
}

// shortHash returns a truncated SHA-256 hex digest for an opaque identifier.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
