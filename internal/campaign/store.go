package campaign

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
)

// Store loads campaigns for the call flow. The flow accepts either a
// numeric id or a campaign name in webhook parameters.
type Store interface {
	Get(ctx context.Context, id int64) (*Campaign, error)
	Lookup(ctx context.Context, idOrName string) (*Campaign, error)
}

// PGStore reads campaigns from Postgres.
//
// Assumed tables:
// - campaigns
// - campaign_phone_numbers (position-ordered caller ids)
// - campaign_target_sets (position-ordered custom target uids)
// - campaign_audio (selected prompt overrides)
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Get(ctx context.Context, id int64) (*Campaign, error) {
	const q = `
SELECT id, created_at, name, country_code, campaign_type, campaign_region, campaign_subtype,
       campaign_language, segment_by, locate_by, include_special, target_ordering,
       target_offices, call_maximum, allow_call_in, prompt_schedule, status_code,
       embed_script, embed_redirect
FROM campaigns
WHERE id = $1
`
	return s.scanCampaign(ctx, s.db.QueryRowContext(ctx, q, id))
}

func (s *PGStore) Lookup(ctx context.Context, idOrName string) (*Campaign, error) {
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		return s.Get(ctx, id)
	}
	const q = `
SELECT id, created_at, name, country_code, campaign_type, campaign_region, campaign_subtype,
       campaign_language, segment_by, locate_by, include_special, target_ordering,
       target_offices, call_maximum, allow_call_in, prompt_schedule, status_code,
       embed_script, embed_redirect
FROM campaigns
WHERE name = $1
`
	return s.scanCampaign(ctx, s.db.QueryRowContext(ctx, q, idOrName))
}

func (s *PGStore) scanCampaign(ctx context.Context, row *sql.Row) (*Campaign, error) {
	var c Campaign
	var callMax sql.NullInt64
	err := row.Scan(
		&c.ID,
		&c.CreatedAt,
		&c.Name,
		&c.CountryCode,
		&c.Type,
		&c.Region,
		&c.Subtype,
		&c.Language,
		&c.SegmentBy,
		&c.LocateBy,
		&c.IncludeSpecial,
		&c.TargetOrdering,
		&c.TargetOffices,
		&callMax,
		&c.AllowCallIn,
		&c.PromptSchedule,
		&c.StatusCode,
		&c.EmbedScript,
		&c.EmbedRedirect,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if callMax.Valid {
		c.CallMaximum = int(callMax.Int64)
	}

	if c.PhoneNumbers, err = s.phoneNumbers(ctx, c.ID); err != nil {
		return nil, err
	}
	if c.CustomTargets, err = s.customTargets(ctx, c.ID); err != nil {
		return nil, err
	}
	if c.Audio, err = s.audio(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PGStore) phoneNumbers(ctx context.Context, id int64) ([]string, error) {
	const q = `
SELECT number
FROM campaign_phone_numbers
WHERE campaign_id = $1
ORDER BY position
`
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PGStore) customTargets(ctx context.Context, id int64) ([]string, error) {
	const q = `
SELECT uid
FROM campaign_target_sets
WHERE campaign_id = $1
ORDER BY position
`
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

func (s *PGStore) audio(ctx context.Context, id int64) (map[string]Prompt, error) {
	const q = `
SELECT key, tts, file_url
FROM campaign_audio
WHERE campaign_id = $1 AND selected = true
`
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]Prompt{}
	for rows.Next() {
		var key string
		var p Prompt
		if err := rows.Scan(&key, &p.TTS, &p.FileURL); err != nil {
			return nil, err
		}
		out[key] = p
	}
	return out, rows.Err()
}
