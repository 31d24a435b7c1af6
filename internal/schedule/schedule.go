// Package schedule manages recurring reminder-call subscriptions that
// callers opt into mid-call.
package schedule

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrNotFound = errors.New("schedule: not found")

// Subscription is one caller's recurring reminder for a campaign.
// Unsubscribing keeps the row for stats and flips the flag.
type Subscription struct {
	ID         int64
	CampaignID int64
	Phone      string
	Location   string
	Subscribed bool

	TimeToCall time.Time
	LastCalled time.Time
	NumCalls   int

	CreatedAt time.Time
}

// Store persists subscriptions keyed by campaign and phone.
type Store interface {
	GetOrCreate(ctx context.Context, campaignID int64, phone string) (*Subscription, bool, error)
	Update(ctx context.Context, sub *Subscription) error
	Find(ctx context.Context, campaignID int64, phone string) (*Subscription, error)
}

// Notifier is what the call flow invokes when a caller opts in or
// out during a call.
type Notifier interface {
	ScheduleCreated(ctx context.Context, campaignID int64, phone, location string) error
	ScheduleDeleted(ctx context.Context, campaignID int64, phone string) error
}

// Service implements Notifier over a Store.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log, now: time.Now}
}

func (s *Service) ScheduleCreated(ctx context.Context, campaignID int64, phone, location string) error {
	sub, created, err := s.store.GetOrCreate(ctx, campaignID, phone)
	if err != nil {
		return err
	}
	sub.Subscribed = true
	sub.TimeToCall = s.now().UTC()
	if location != "" {
		sub.Location = location
	}
	if err := s.store.Update(ctx, sub); err != nil {
		return err
	}
	s.log.Info("schedule created", "campaign", campaignID, "created", created,
		"time_to_call", sub.TimeToCall.Format(time.Kitchen))
	return nil
}

func (s *Service) ScheduleDeleted(ctx context.Context, campaignID int64, phone string) error {
	sub, err := s.store.Find(ctx, campaignID, phone)
	if err != nil {
		return err
	}
	sub.Subscribed = false
	if err := s.store.Update(ctx, sub); err != nil {
		return err
	}
	s.log.Info("schedule deleted", "campaign", campaignID)
	return nil
}

// IsSubscribed reports whether a caller currently has an active
// subscription for a campaign.
func (s *Service) IsSubscribed(ctx context.Context, campaignID int64, phone string) bool {
	sub, err := s.store.Find(ctx, campaignID, phone)
	if err != nil {
		return false
	}
	return sub.Subscribed
}

/* ===================== postgres ===================== */

type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) GetOrCreate(ctx context.Context, campaignID int64, phone string) (*Subscription, bool, error) {
	sub, err := s.Find(ctx, campaignID, phone)
	if err == nil {
		return sub, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	const q = `
INSERT INTO schedule_calls (campaign_id, phone_number, location, subscribed, time_to_call, num_calls, created_at)
VALUES ($1, $2, '', true, now(), 0, now())
ON CONFLICT (campaign_id, phone_number) DO UPDATE SET subscribed = true
RETURNING id, campaign_id, phone_number, location, subscribed, time_to_call, num_calls, created_at
`
	sub = &Subscription{}
	err = s.db.QueryRowContext(ctx, q, campaignID, phone).Scan(
		&sub.ID,
		&sub.CampaignID,
		&sub.Phone,
		&sub.Location,
		&sub.Subscribed,
		&sub.TimeToCall,
		&sub.NumCalls,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, false, err
	}
	return sub, true, nil
}

func (s *PGStore) Update(ctx context.Context, sub *Subscription) error {
	const q = `
UPDATE schedule_calls
SET location = $2, subscribed = $3, time_to_call = $4, last_called = $5, num_calls = $6
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q,
		sub.ID,
		sub.Location,
		sub.Subscribed,
		sub.TimeToCall,
		sql.NullTime{Time: sub.LastCalled, Valid: !sub.LastCalled.IsZero()},
		sub.NumCalls,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Find(ctx context.Context, campaignID int64, phone string) (*Subscription, error) {
	const q = `
SELECT id, campaign_id, phone_number, location, subscribed, time_to_call, num_calls, created_at
FROM schedule_calls
WHERE campaign_id = $1 AND phone_number = $2
`
	sub := &Subscription{}
	err := s.db.QueryRowContext(ctx, q, campaignID, phone).Scan(
		&sub.ID,
		&sub.CampaignID,
		&sub.Phone,
		&sub.Location,
		&sub.Subscribed,
		&sub.TimeToCall,
		&sub.NumCalls,
		&sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}

/* ===================== memory ===================== */

type key struct {
	campaignID int64
	phone      string
}

type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[key]*Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[key]*Subscription)}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, campaignID int64, phone string) (*Subscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{campaignID, phone}
	if sub, ok := s.subs[k]; ok {
		cp := *sub
		return &cp, false, nil
	}
	s.nextID++
	sub := &Subscription{
		ID:         s.nextID,
		CampaignID: campaignID,
		Phone:      phone,
		Subscribed: true,
		CreatedAt:  time.Now().UTC(),
	}
	s.subs[k] = sub
	cp := *sub
	return &cp, true, nil
}

func (s *MemoryStore) Update(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{sub.CampaignID, sub.Phone}
	if _, ok := s.subs[k]; !ok {
		return ErrNotFound
	}
	cp := *sub
	s.subs[k] = &cp
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, campaignID int64, phone string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.subs[key{campaignID, phone}]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, ErrNotFound
}
