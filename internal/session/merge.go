package session

import "sort"

// SortForeground orders sessions by status priority bucket, then by most
// recent activity within a bucket. RenderKey breaks exact ties so the order
// is deterministic across polls.
func SortForeground(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		pi, pj := sessions[i].Status.Priority(), sessions[j].Status.Priority()
		if pi != pj {
			return pi < pj
		}
		if !sessions[i].LastActivityAt.Equal(sessions[j].LastActivityAt) {
			return sessions[i].LastActivityAt.After(sessions[j].LastActivityAt)
		}
		return sessions[i].RenderKey() < sessions[j].RenderKey()
	})
}

// SortBackground orders helper sessions by agent, then by recency.
func SortBackground(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Agent != sessions[j].Agent {
			return sessions[i].Agent < sessions[j].Agent
		}
		return sessions[i].LastActivityAt.After(sessions[j].LastActivityAt)
	})
}

// MergeOrdered reconciles the freshly computed list with the previous poll's
// order. When membership is unchanged and no session moved between priority
// buckets, the previous order is preserved and only field values refresh, so
// cosmetic status changes (thinking→processing) don't reshuffle the list.
// Any membership change or bucket transition adopts the new order wholesale.
func MergeOrdered(prev, next []Session) []Session {
	if len(prev) != len(next) {
		return next
	}

	byKey := make(map[string]*Session, len(next))
	for i := range next {
		byKey[next[i].RenderKey()] = &next[i]
	}

	merged := make([]Session, 0, len(prev))
	for i := range prev {
		fresh, ok := byKey[prev[i].RenderKey()]
		if !ok {
			return next
		}
		if fresh.Status.Priority() != prev[i].Status.Priority() {
			return next
		}
		merged = append(merged, *fresh)
	}
	return merged
}

// Counts computes the published counters for a foreground list.
func Counts(sessions []Session) (total, waiting int, byAgent map[string]int) {
	byAgent = make(map[string]int)
	for i := range sessions {
		total++
		if sessions[i].Status == Waiting {
			waiting++
		}
		byAgent[sessions[i].Agent.String()]++
	}
	return total, waiting, byAgent
}
