package reporting

import (
	"context"
	"database/sql"
	"time"

	"callserver/internal/session"
)

// PGRepo reads the tables the call flow writes.
type PGRepo struct {
	db *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

func (r *PGRepo) ListCalls(ctx context.Context, campaignID int64, from, to time.Time) ([]session.Call, error) {
	const q = `
SELECT id, session_id, campaign_id, target_id, call_sid, status, duration, created_at
FROM calls
WHERE campaign_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, campaignID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Call
	for rows.Next() {
		var c session.Call
		err := rows.Scan(
			&c.ID,
			&c.SessionID,
			&c.CampaignID,
			&c.TargetID,
			&c.CallSID,
			&c.Status,
			&c.Duration,
			&c.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PGRepo) ListSessions(ctx context.Context, campaignID int64, from, to time.Time) ([]session.Session, error) {
	const q = `
SELECT id, campaign_id, phone_hash, phone_number, from_number, direction, location, status, duration, created_at
FROM call_sessions
WHERE campaign_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, campaignID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		var s session.Session
		err := rows.Scan(
			&s.ID,
			&s.CampaignID,
			&s.PhoneHash,
			&s.PhoneNumber,
			&s.FromNumber,
			&s.Direction,
			&s.Location,
			&s.Status,
			&s.Duration,
			&s.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
