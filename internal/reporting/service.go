package reporting

import (
	"context"
	"errors"
	"time"

	"callserver/internal/session"
	"callserver/internal/telephony"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. Implementations read
// the same tables the call flow writes; reporting itself never writes.
type Repository interface {
	ListCalls(ctx context.Context, campaignID int64, from, to time.Time) ([]session.Call, error)
	ListSessions(ctx context.Context, campaignID int64, from, to time.Time) ([]session.Session, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.CampaignID <= 0 {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.CampaignID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{CampaignID: req.CampaignID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.Duration
		switch c.Status {
		case telephony.StatusCompleted:
			out.CompletedCalls++
		case telephony.StatusBusy:
			out.BusyCalls++
		case "no-answer":
			out.NoAnswerCalls++
		case telephony.StatusFailed:
			out.FailedCalls++
		case "canceled":
			out.CanceledCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) SessionsSummary(ctx context.Context, req SessionsSummaryRequest) (SessionsSummary, error) {
	if req.CampaignID <= 0 {
		return SessionsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return SessionsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return SessionsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListSessions(ctx, req.CampaignID, req.Range.From, req.Range.To)
	if err != nil {
		return SessionsSummary{}, err
	}

	out := SessionsSummary{CampaignID: req.CampaignID}
	for _, sess := range rows {
		out.TotalSessions++
		out.TotalDurationSeconds += sess.Duration
		if sess.Status == telephony.StatusCompleted {
			out.CompletedSessions++
		}
		if sess.Direction == session.DirectionInbound {
			out.InboundSessions++
		}
	}
	return out, nil
}
