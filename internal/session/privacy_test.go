package session

import "testing"

// assertSessionIDs checks that the result slice contains exactly the expected
// session IDs, in order.
func assertSessionIDs(t *testing.T, result []Session, expected ...string) {
	t.Helper()
	if len(result) != len(expected) {
		t.Fatalf("expected %d sessions, got %d", len(expected), len(result))
	}
	for i, id := range expected {
		if result[i].ID != id {
			t.Errorf("result[%d]: expected %s, got %s", i, id, result[i].ID)
		}
	}
}

func TestFilterSlice_NoFilter(t *testing.T) {
	f := &PrivacyFilter{}
	sessions := []Session{
		{ID: "s1", ProjectPath: "/home/user/project-a", PID: 100},
		{ID: "s2", ProjectPath: "/home/user/project-b", PID: 200},
	}
	assertSessionIDs(t, f.FilterSlice(sessions), "s1", "s2")
}

func TestFilterSlice_PathFiltering(t *testing.T) {
	tests := []struct {
		name     string
		filter   *PrivacyFilter
		sessions []Session
		wantIDs  []string
	}{
		{
			name: "BlockedPaths",
			filter: &PrivacyFilter{
				BlockedPaths: []string{"/tmp/*"},
			},
			sessions: []Session{
				{ID: "s1", ProjectPath: "/home/user/project"},
				{ID: "s2", ProjectPath: "/tmp/scratch"},
				{ID: "s3", ProjectPath: "/tmp/other"},
			},
			wantIDs: []string{"s1"},
		},
		{
			name: "AllowedPaths",
			filter: &PrivacyFilter{
				AllowedPaths: []string{"/home/user/work/*"},
			},
			sessions: []Session{
				{ID: "s1", ProjectPath: "/home/user/work/project-a"},
				{ID: "s2", ProjectPath: "/home/user/personal/diary"},
				{ID: "s3", ProjectPath: "/other/path"},
			},
			wantIDs: []string{"s1"},
		},
		{
			name: "AllowAndBlock",
			filter: &PrivacyFilter{
				AllowedPaths: []string{"/home/user/*"},
				BlockedPaths: []string{"/home/user/secret"},
			},
			sessions: []Session{
				{ID: "s1", ProjectPath: "/home/user/project"},
				{ID: "s2", ProjectPath: "/home/user/secret"},
				{ID: "s3", ProjectPath: "/other/place"},
			},
			wantIDs: []string{"s1"},
		},
		{
			name:   "EmptyPathAlwaysAllowed",
			filter: &PrivacyFilter{AllowedPaths: []string{"/home/user/*"}},
			sessions: []Session{
				{ID: "s1", ProjectPath: ""},
			},
			wantIDs: []string{"s1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSessionIDs(t, tt.filter.FilterSlice(tt.sessions), tt.wantIDs...)
		})
	}
}

func TestFilterSlice_Masking(t *testing.T) {
	f := &PrivacyFilter{
		MaskProjectPaths: true,
		MaskSessionIDs:   true,
		MaskPIDs:         true,
		MaskMessages:     true,
	}

	sessions := []Session{
		{
			ID:              "s1",
			ProjectPath:     "/home/user/projects/myapp",
			PID:             12345,
			LastMessage:     "done",
			LastUserMessage: "go",
		},
	}

	result := f.FilterSlice(sessions)
	if len(result) != 1 {
		t.Fatalf("expected 1 session, got %d", len(result))
	}
	got := result[0]
	if got.ProjectPath != "myapp" {
		t.Errorf("ProjectPath = %q, want basename only", got.ProjectPath)
	}
	if got.ID == "s1" || len(got.ID) != 12 {
		t.Errorf("ID = %q, want 12-char hash", got.ID)
	}
	if got.PID != 0 {
		t.Errorf("PID = %d, want 0", got.PID)
	}
	if got.LastMessage != "" || got.LastUserMessage != "" {
		t.Errorf("messages leaked: %q / %q", got.LastMessage, got.LastUserMessage)
	}

	// Original untouched.
	if sessions[0].PID != 12345 || sessions[0].ID != "s1" {
		t.Errorf("original mutated: %+v", sessions[0])
	}
}

func TestFilterResultRecomputesCounts(t *testing.T) {
	f := &PrivacyFilter{BlockedPaths: []string{"/secret/*"}}

	res := SessionsResult{
		Sessions: []Session{
			{ID: "s1", Agent: ClaudeCode, Status: Waiting, ProjectPath: "/home/user/a"},
			{ID: "s2", Agent: Codex, Status: Waiting, ProjectPath: "/secret/b"},
		},
		TotalCount:   2,
		WaitingCount: 2,
	}

	out := f.FilterResult(res)
	if len(out.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(out.Sessions))
	}
	if out.TotalCount != 1 || out.WaitingCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", out.TotalCount, out.WaitingCount)
	}
	if out.AgentCounts["claude"] != 1 || out.AgentCounts["codex"] != 0 {
		t.Errorf("AgentCounts = %v", out.AgentCounts)
	}
}

func TestPrivacyFilterIsNoop(t *testing.T) {
	if !(&PrivacyFilter{}).IsNoop() {
		t.Error("zero filter must be a no-op")
	}
	if (&PrivacyFilter{MaskPIDs: true}).IsNoop() {
		t.Error("masking filter is not a no-op")
	}
	if (&PrivacyFilter{BlockedPaths: []string{"/x"}}).IsNoop() {
		t.Error("path filter is not a no-op")
	}
}
