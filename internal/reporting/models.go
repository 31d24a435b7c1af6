package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated target-call metrics for one
// campaign.
type CallsSummaryRequest struct {
	CampaignID int64     `json:"campaign_id"`
	Range      TimeRange `json:"range"`
}

// CallsSummary aggregates the individual target calls a campaign's
// sessions dialed through.
type CallsSummary struct {
	CampaignID int64 `json:"campaign_id"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	BusyCalls      int `json:"busy_calls"`
	NoAnswerCalls  int `json:"no_answer_calls"`
	FailedCalls    int `json:"failed_calls"`
	CanceledCalls  int `json:"canceled_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

// SessionsSummaryRequest requests caller-session metrics for one
// campaign. A session is the caller's whole journey; one session can
// produce several target calls.
type SessionsSummaryRequest struct {
	CampaignID int64     `json:"campaign_id"`
	Range      TimeRange `json:"range"`
}

type SessionsSummary struct {
	CampaignID int64 `json:"campaign_id"`

	TotalSessions     int `json:"total_sessions"`
	CompletedSessions int `json:"completed_sessions"`
	InboundSessions   int `json:"inbound_sessions"`

	TotalDurationSeconds int `json:"total_duration_seconds"`
}
