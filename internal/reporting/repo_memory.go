package reporting

import (
	"context"
	"sync"
	"time"

	"callserver/internal/session"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
type MemoryRepo struct {
	mu sync.Mutex

	Calls    []session.Call
	Sessions []session.Session
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func inRange(ts time.Time, from, to time.Time) bool {
	if ts.IsZero() {
		return true
	}
	return !ts.Before(from) && ts.Before(to)
}

func (r *MemoryRepo) ListCalls(ctx context.Context, campaignID int64, from, to time.Time) ([]session.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Call, 0)
	for _, c := range r.Calls {
		if c.CampaignID != campaignID || !inRange(c.Timestamp, from, to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListSessions(ctx context.Context, campaignID int64, from, to time.Time) ([]session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Session, 0)
	for _, s := range r.Sessions {
		if s.CampaignID != campaignID || !inRange(s.Timestamp, from, to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
