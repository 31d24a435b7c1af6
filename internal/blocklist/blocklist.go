// Package blocklist keeps abusive callers away from the carrier
// boundary. Entries match on phone number or IP address and expire.
package blocklist

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Entry blocks a phone number and/or an IP address until it expires.
type Entry struct {
	ID          int64
	PhoneNumber string
	IPAddress   string
	CreatedAt   time.Time
	Expires     time.Duration
}

func (e Entry) ActiveAt(now time.Time) bool {
	return now.Before(e.CreatedAt.Add(e.Expires))
}

// Gate answers whether a caller is blocked. The call flow consults it
// before placing any outbound call.
type Gate interface {
	UserBlocked(ctx context.Context, phoneNumber, ipAddress string) (bool, error)
}

// Store manages entries and implements Gate.
type Store interface {
	Gate
	Add(ctx context.Context, e *Entry) error
	Remove(ctx context.Context, id int64) error
	Active(ctx context.Context) ([]Entry, error)
}

/* ===================== postgres ===================== */

type PGStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, now: time.Now}
}

func (s *PGStore) Add(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	const q = `
INSERT INTO blocklist (phone_number, ip_address, created_at, expires_seconds)
VALUES ($1, $2, $3, $4)
RETURNING id
`
	return s.db.QueryRowContext(ctx, q,
		e.PhoneNumber,
		e.IPAddress,
		e.CreatedAt,
		int64(e.Expires.Seconds()),
	).Scan(&e.ID)
}

func (s *PGStore) Remove(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blocklist WHERE id = $1`, id)
	return err
}

func (s *PGStore) Active(ctx context.Context) ([]Entry, error) {
	const q = `
SELECT id, phone_number, ip_address, created_at, expires_seconds
FROM blocklist
WHERE created_at + make_interval(secs => expires_seconds) > now()
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var secs int64
		if err := rows.Scan(&e.ID, &e.PhoneNumber, &e.IPAddress, &e.CreatedAt, &secs); err != nil {
			return nil, err
		}
		e.Expires = time.Duration(secs) * time.Second
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) UserBlocked(ctx context.Context, phoneNumber, ipAddress string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM blocklist
  WHERE created_at + make_interval(secs => expires_seconds) > now()
    AND (phone_number = $1 OR ip_address = $2)
)
`
	var blocked bool
	err := s.db.QueryRowContext(ctx, q, phoneNumber, ipAddress).Scan(&blocked)
	return blocked, err
}

/* ===================== memory ===================== */

type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[int64]Entry

	// Now is overridable in tests.
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]Entry), Now: time.Now}
}

func (s *MemoryStore) Add(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.Now().UTC()
	}
	s.nextID++
	e.ID = s.nextID
	s.entries[e.ID] = *e
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) Active(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.Now()
	var out []Entry
	for _, e := range s.entries {
		if e.ActiveAt(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) UserBlocked(ctx context.Context, phoneNumber, ipAddress string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.Now()
	for _, e := range s.entries {
		if !e.ActiveAt(now) {
			continue
		}
		if (e.PhoneNumber != "" && e.PhoneNumber == phoneNumber) ||
			(e.IPAddress != "" && e.IPAddress == ipAddress) {
			return true, nil
		}
	}
	return false, nil
}

// AllowAll is the Gate used when no blocklist backend is configured.
type AllowAll struct{}

func (AllowAll) UserBlocked(ctx context.Context, phoneNumber, ipAddress string) (bool, error) {
	return false, nil
}
