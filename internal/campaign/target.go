package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"callserver/internal/cache"
	"callserver/internal/political/adapters"
)

// ErrTargetNotFound means the uid resolved to nothing in either the
// target table or the political data cache.
var ErrTargetNotFound = errors.New("campaign: target not found")

// Target is a materialized callee: a political data record adapted
// into a durable row the moment a campaign first needs it.
type Target struct {
	ID       int64
	UID      string
	Title    string
	Name     string
	District string
	Number   string
	Offices  []Office
}

func (t *Target) FullName() string {
	if t.Title == "" {
		return t.Name
	}
	return t.Title + " " + t.Name
}

// Office is a secondary phone number for a target, like a district
// office.
type Office struct {
	ID      int64
	UID     string
	Name    string
	Address string
	Number  string
}

// TargetStore persists materialized targets. Save upserts on uid, so
// materializing the same uid twice yields one row.
type TargetStore interface {
	LatestByUID(ctx context.Context, uid string) (*Target, error)
	Save(ctx context.Context, t *Target) error
}

// GetOrCacheTarget resolves a target uid, materializing it from the
// political data cache on first use. The bool reports whether a new
// row was created. Keys may carry an office suffix, like
// us:bioguide:L000551-oakland, which restricts the saved offices.
func GetOrCacheTarget(ctx context.Context, store TargetStore, c cache.Store, uid, prefix string, log *slog.Logger) (*Target, bool, error) {
	key := uid
	if prefix != "" {
		key = prefix + ":" + uid
	}

	t, err := store.LatestByUID(ctx, key)
	if err == nil {
		return t, false, nil
	}
	if !errors.Is(err, ErrTargetNotFound) {
		return nil, false, err
	}

	adapter := adapters.ByKey(key)
	base, suffix := adapter.SplitKey(key)

	recs, err := c.Get(ctx, base)
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup %s: %w", base, err)
	}
	if len(recs) == 0 {
		log.Warn("target uid not in political data cache", "key", base)
		return nil, false, ErrTargetNotFound
	}

	fields := adapter.Target(recs[0])
	t = &Target{
		UID:      key,
		Title:    fields.Title,
		Name:     fields.Name,
		District: fields.District,
		Number:   fields.Number,
	}
	for _, o := range adapter.Offices(recs[0]) {
		if suffix != "" && o.UID != suffix {
			continue
		}
		t.Offices = append(t.Offices, Office{
			UID:     o.UID,
			Name:    o.Name,
			Address: o.Address,
			Number:  o.Number,
		})
	}

	if err := store.Save(ctx, t); err != nil {
		return nil, false, fmt.Errorf("save target %s: %w", key, err)
	}
	return t, true, nil
}

/* ===================== postgres ===================== */

type PGTargetStore struct {
	db *sql.DB
}

func NewPGTargetStore(db *sql.DB) *PGTargetStore {
	return &PGTargetStore{db: db}
}

func (s *PGTargetStore) LatestByUID(ctx context.Context, uid string) (*Target, error) {
	const q = `
SELECT id, uid, title, name, district, number
FROM targets
WHERE uid = $1
ORDER BY id DESC
LIMIT 1
`
	var t Target
	err := s.db.QueryRowContext(ctx, q, uid).Scan(
		&t.ID,
		&t.UID,
		&t.Title,
		&t.Name,
		&t.District,
		&t.Number,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}

	const oq = `
SELECT id, uid, name, address, number
FROM target_offices
WHERE target_id = $1
ORDER BY id
`
	rows, err := s.db.QueryContext(ctx, oq, t.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o Office
		if err := rows.Scan(&o.ID, &o.UID, &o.Name, &o.Address, &o.Number); err != nil {
			return nil, err
		}
		t.Offices = append(t.Offices, o)
	}
	return &t, rows.Err()
}

func (s *PGTargetStore) Save(ctx context.Context, t *Target) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
INSERT INTO targets (uid, title, name, district, number)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (uid) DO UPDATE
SET title = EXCLUDED.title, name = EXCLUDED.name,
    district = EXCLUDED.district, number = EXCLUDED.number
RETURNING id
`
	if err := tx.QueryRowContext(ctx, q, t.UID, t.Title, t.Name, t.District, t.Number).Scan(&t.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM target_offices WHERE target_id = $1`, t.ID); err != nil {
		return err
	}
	const oq = `
INSERT INTO target_offices (target_id, uid, name, address, number)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`
	for i := range t.Offices {
		o := &t.Offices[i]
		if err := tx.QueryRowContext(ctx, oq, t.ID, o.UID, o.Name, o.Address, o.Number).Scan(&o.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

/* ===================== memory ===================== */

type MemoryTargetStore struct {
	mu      sync.RWMutex
	nextID  int64
	targets map[string]*Target
}

func NewMemoryTargetStore() *MemoryTargetStore {
	return &MemoryTargetStore{targets: make(map[string]*Target)}
}

func (s *MemoryTargetStore) LatestByUID(ctx context.Context, uid string) (*Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.targets[uid]; ok {
		cp := *t
		cp.Offices = append([]Office(nil), t.Offices...)
		return &cp, nil
	}
	return nil, ErrTargetNotFound
}

func (s *MemoryTargetStore) Save(ctx context.Context, t *Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.targets[t.UID]; ok {
		t.ID = prev.ID
	} else {
		s.nextID++
		t.ID = s.nextID
	}
	cp := *t
	cp.Offices = append([]Office(nil), t.Offices...)
	s.targets[t.UID] = &cp
	return nil
}

func (s *MemoryTargetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.targets)
}
