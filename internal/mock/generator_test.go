package mock

import (
	"testing"

	"github.com/agentdeck/agentdeck/internal/engine"
	"github.com/agentdeck/agentdeck/internal/session"
)

func TestGeneratorPublishesOnAdvance(t *testing.T) {
	g := NewGenerator()

	if _, ok := g.Latest(); ok {
		t.Fatal("expected no result before first advance")
	}

	g.advance()

	res, ok := g.Latest()
	if !ok {
		t.Fatal("expected a result after advance")
	}
	if res.TotalCount != 4 || len(res.Sessions) != 4 {
		t.Fatalf("TotalCount = %d, Sessions = %d, want 4", res.TotalCount, len(res.Sessions))
	}
	if res.AgentCounts["claude"] != 2 || res.AgentCounts["codex"] != 1 || res.AgentCounts["opencode"] != 1 {
		t.Errorf("AgentCounts = %v", res.AgentCounts)
	}
}

func TestGeneratorCountsTrackStatuses(t *testing.T) {
	g := NewGenerator()
	g.advance()

	res, _ := g.Latest()
	waiting := 0
	for _, s := range res.Sessions {
		if s.Status == session.Waiting {
			waiting++
		}
	}
	if res.WaitingCount != waiting {
		t.Errorf("WaitingCount = %d, counted %d", res.WaitingCount, waiting)
	}
}

func TestGeneratorNotifiesSubscribers(t *testing.T) {
	g := NewGenerator()

	var got []session.SessionsResult
	g.Subscribe(func(r session.SessionsResult) { got = append(got, r) })

	g.advance()
	g.TriggerRefresh()

	if len(got) != 2 {
		t.Errorf("subscriber invoked %d times, want 2", len(got))
	}
}

func TestGeneratorEndSessionRemoves(t *testing.T) {
	g := NewGenerator()
	g.advance()

	if err := g.EndSession(9003); err != nil {
		t.Fatal(err)
	}

	res, _ := g.Latest()
	if res.TotalCount != 3 {
		t.Fatalf("TotalCount after end = %d, want 3", res.TotalCount)
	}
	for _, s := range res.Sessions {
		if s.PID == 9003 {
			t.Errorf("ended session still present: %+v", s)
		}
	}
	if res.AgentCounts["codex"] != 0 {
		t.Errorf("codex count = %d, want 0", res.AgentCounts["codex"])
	}
}

func TestGeneratorDecayAges(t *testing.T) {
	g := NewGenerator()

	for i := 0; i < 40; i++ {
		g.advance()
	}

	res, _ := g.Latest()
	var decayed *session.Session
	for i := range res.Sessions {
		if res.Sessions[i].PID == 9004 {
			decayed = &res.Sessions[i]
		}
	}
	if decayed == nil {
		t.Fatal("decay session missing")
	}
	if decayed.Status != session.Stale {
		t.Errorf("status after 40 ticks = %v, want stale", decayed.Status)
	}
	// Stale sessions sort after active ones.
	if res.Sessions[len(res.Sessions)-1].PID != 9004 {
		t.Errorf("stale session not last: %v", res.Sessions)
	}
}

func TestGeneratorDiffStatsStable(t *testing.T) {
	g := NewGenerator()

	a := g.DiffStats("/home/user/myproject")
	b := g.DiffStats("/home/user/myproject")
	if a != b {
		t.Errorf("stats not stable: %+v vs %+v", a, b)
	}
	if a.FilesChanged < 1 {
		t.Errorf("FilesChanged = %d, want >= 1", a.FilesChanged)
	}
}

func TestGeneratorHealthAllHealthy(t *testing.T) {
	g := NewGenerator()
	for name, h := range g.Health() {
		if h.Status != engine.StatusHealthy {
			t.Errorf("%s = %+v, want healthy", name, h)
		}
	}
}
