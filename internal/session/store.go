package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Stats aggregates a campaign's call activity for reporting.
type Stats struct {
	Sessions       int
	Calls          int
	CompletedCalls int
	TotalDuration  int
}

// Store persists sessions and calls.
//
// Status updates are last-writer-wins: carrier callbacks can arrive
// out of order, and the final callback for a session is the one that
// matters in practice.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id int64) (*Session, error)
	UpdateSessionStatus(ctx context.Context, id int64, status string, duration int) error

	// SetSessionLocation records the caller's parsed location once;
	// later writes to a session that already has one are dropped.
	SetSessionLocation(ctx context.Context, id int64, location string) error

	// LatestInboundSession finds the most recent still-initiated
	// inbound session for a caller, used to close out call-ins.
	LatestInboundSession(ctx context.Context, phoneHash string, campaignID int64, location string) (*Session, error)

	CreateCall(ctx context.Context, c *Call) error

	CampaignStats(ctx context.Context, campaignID int64) (Stats, error)
}

// PGStore is the Postgres-backed Store.
//
// Assumed tables: call_sessions, calls.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.Status == "" {
		sess.Status = StatusInitiated
	}
	if sess.Timestamp.IsZero() {
		sess.Timestamp = time.Now().UTC()
	}
	const q = `
INSERT INTO call_sessions (campaign_id, phone_hash, phone_number, from_number, direction, location, status, duration, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id
`
	return s.db.QueryRowContext(ctx, q,
		sess.CampaignID,
		sess.PhoneHash,
		sess.PhoneNumber,
		sess.FromNumber,
		sess.Direction,
		sess.Location,
		sess.Status,
		sess.Duration,
		sess.Timestamp,
	).Scan(&sess.ID)
}

func (s *PGStore) GetSession(ctx context.Context, id int64) (*Session, error) {
	const q = `
SELECT id, campaign_id, phone_hash, phone_number, from_number, direction, location, status, duration, created_at
FROM call_sessions
WHERE id = $1
`
	return scanSession(s.db.QueryRowContext(ctx, q, id))
}

func (s *PGStore) UpdateSessionStatus(ctx context.Context, id int64, status string, duration int) error {
	const q = `
UPDATE call_sessions
SET status = $2, duration = $3
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q, id, status, duration)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) SetSessionLocation(ctx context.Context, id int64, location string) error {
	const q = `
UPDATE call_sessions
SET location = $2
WHERE id = $1 AND (location IS NULL OR location = '')
`
	_, err := s.db.ExecContext(ctx, q, id, location)
	return err
}

func (s *PGStore) LatestInboundSession(ctx context.Context, phoneHash string, campaignID int64, location string) (*Session, error) {
	const q = `
SELECT id, campaign_id, phone_hash, phone_number, from_number, direction, location, status, duration, created_at
FROM call_sessions
WHERE phone_hash = $1 AND campaign_id = $2 AND location = $3
  AND direction = 'inbound' AND status = 'initiated'
ORDER BY created_at DESC
LIMIT 1
`
	return scanSession(s.db.QueryRowContext(ctx, q, phoneHash, campaignID, location))
}

func (s *PGStore) CreateCall(ctx context.Context, c *Call) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	const q = `
INSERT INTO calls (session_id, campaign_id, target_id, call_sid, status, duration, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`
	return s.db.QueryRowContext(ctx, q,
		c.SessionID,
		c.CampaignID,
		c.TargetID,
		c.CallSID,
		c.Status,
		c.Duration,
		c.Timestamp,
	).Scan(&c.ID)
}

func (s *PGStore) CampaignStats(ctx context.Context, campaignID int64) (Stats, error) {
	const q = `
SELECT
  (SELECT COUNT(*) FROM call_sessions WHERE campaign_id = $1),
  COUNT(*),
  COUNT(*) FILTER (WHERE status = 'completed'),
  COALESCE(SUM(duration), 0)
FROM calls
WHERE campaign_id = $1
`
	var st Stats
	err := s.db.QueryRowContext(ctx, q, campaignID).Scan(
		&st.Sessions,
		&st.Calls,
		&st.CompletedCalls,
		&st.TotalDuration,
	)
	return st, err
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	err := row.Scan(
		&sess.ID,
		&sess.CampaignID,
		&sess.PhoneHash,
		&sess.PhoneNumber,
		&sess.FromNumber,
		&sess.Direction,
		&sess.Location,
		&sess.Status,
		&sess.Duration,
		&sess.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
