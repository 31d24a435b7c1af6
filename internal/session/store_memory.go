package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	nextSess int64
	nextCall int64
	sessions map[int64]*Session
	calls    []*Call
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Status == "" {
		sess.Status = StatusInitiated
	}
	if sess.Timestamp.IsZero() {
		sess.Timestamp = time.Now().UTC()
	}
	s.nextSess++
	sess.ID = s.nextSess
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id int64) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateSessionStatus(ctx context.Context, id int64, status string, duration int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.Status = status
	sess.Duration = duration
	return nil
}

func (s *MemoryStore) SetSessionLocation(ctx context.Context, id int64, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Location == "" {
		sess.Location = location
	}
	return nil
}

func (s *MemoryStore) LatestInboundSession(ctx context.Context, phoneHash string, campaignID int64, location string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Session
	for _, sess := range s.sessions {
		if sess.PhoneHash != phoneHash || sess.CampaignID != campaignID ||
			sess.Location != location || sess.Direction != DirectionInbound ||
			sess.Status != StatusInitiated {
			continue
		}
		if latest == nil || sess.Timestamp.After(latest.Timestamp) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) CreateCall(ctx context.Context, c *Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	s.nextCall++
	c.ID = s.nextCall
	cp := *c
	s.calls = append(s.calls, &cp)
	return nil
}

func (s *MemoryStore) CampaignStats(ctx context.Context, campaignID int64) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, sess := range s.sessions {
		if sess.CampaignID == campaignID {
			st.Sessions++
		}
	}
	for _, c := range s.calls {
		if c.CampaignID != campaignID {
			continue
		}
		st.Calls++
		st.TotalDuration += c.Duration
		if c.Status == "completed" {
			st.CompletedCalls++
		}
	}
	return st, nil
}

// Calls returns a copy of the recorded calls, oldest first.
func (s *MemoryStore) Calls() []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Call, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, *c)
	}
	return out
}
