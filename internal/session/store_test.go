package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestHashPhoneStable(t *testing.T) {
	a := HashPhone("+15105550100")
	b := HashPhone("+15105550100")
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex, got %d chars", len(a))
	}
	if a == HashPhone("+15105550101") {
		t.Fatal("different numbers must not collide")
	}
}

func TestMemorySessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sess := &Session{CampaignID: 1, PhoneHash: HashPhone("+15105550100"), Direction: DirectionOutbound}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if sess.ID == 0 || sess.Status != StatusInitiated {
		t.Fatalf("unexpected created session: %+v", sess)
	}

	// out-of-order callbacks: last writer wins
	if err := s.UpdateSessionStatus(ctx, sess.ID, "completed", 95); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateSessionStatus(ctx, sess.ID, "in-progress", 0); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "in-progress" {
		t.Fatalf("expected last write to win, got %q", got.Status)
	}
}

func TestMemorySetLocationOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := &Session{CampaignID: 1}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	if err := s.SetSessionLocation(ctx, sess.ID, "94612"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSessionLocation(ctx, sess.ID, "10001"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetSession(ctx, sess.ID)
	if got.Location != "94612" {
		t.Fatalf("first location must stick, got %q", got.Location)
	}
}

func TestMemoryLatestInboundSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	hash := HashPhone("+15105550100")

	old := &Session{CampaignID: 1, PhoneHash: hash, Direction: DirectionInbound, Location: "94612",
		Timestamp: time.Now().Add(-time.Hour)}
	recent := &Session{CampaignID: 1, PhoneHash: hash, Direction: DirectionInbound, Location: "94612"}
	done := &Session{CampaignID: 1, PhoneHash: hash, Direction: DirectionInbound, Location: "94612",
		Status: "completed"}
	for _, sess := range []*Session{old, recent, done} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.LatestInboundSession(ctx, hash, 1, "94612")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != recent.ID {
		t.Fatalf("expected most recent initiated session %d, got %d", recent.ID, got.ID)
	}

	if _, err := s.LatestInboundSession(ctx, hash, 2, "94612"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCampaignStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.CreateSession(ctx, &Session{CampaignID: 1}); err != nil {
		t.Fatal(err)
	}
	calls := []*Call{
		{CampaignID: 1, Status: "completed", Duration: 60},
		{CampaignID: 1, Status: "busy"},
		{CampaignID: 2, Status: "completed", Duration: 30},
	}
	for _, c := range calls {
		if err := s.CreateCall(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	st, err := s.CampaignStats(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if st.Sessions != 1 || st.Calls != 2 || st.CompletedCalls != 1 || st.TotalDuration != 60 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestPGCreateSession(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO call_sessions`).
		WithArgs(int64(1), "hash", "", "+15105550100", DirectionOutbound, "94612",
			StatusInitiated, 0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	store := NewPGStore(db)
	sess := &Session{
		CampaignID: 1,
		PhoneHash:  "hash",
		FromNumber: "+15105550100",
		Direction:  DirectionOutbound,
		Location:   "94612",
	}
	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	if sess.ID != 42 {
		t.Fatalf("expected returned id, got %d", sess.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGUpdateSessionStatusMissing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE call_sessions`).
		WithArgs(int64(7), "completed", 120).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	err = store.UpdateSessionStatus(context.Background(), 7, "completed", 120)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
