package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Audit is internal-only; these records never reach campaign embeds or
// callers. Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records an admin action against a campaign.
func (s *Service) LogAdminAction(ctx context.Context, actorUserID, actorRole, ip, message string, campaignID int64, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CampaignID:  campaignID,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogBlocklistChange records an addition to or removal from the
// blocklist.
func (s *Service) LogBlocklistChange(ctx context.Context, actorUserID, actorRole, ip, message string, entryID int64) error {
	return s.Append(ctx, Event{
		Type:             EventTypeBlocklistChange,
		ActorUserID:      actorUserID,
		ActorRole:        actorRole,
		IPAddress:        ip,
		BlocklistEntryID: entryID,
		Message:          message,
	})
}
