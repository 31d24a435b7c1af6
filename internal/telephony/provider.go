// Package telephony is the carrier boundary: placing outbound calls
// through the Twilio-compatible REST API.
package telephony

import (
	"context"
	"fmt"
)

// Carrier places outbound calls. Business logic never touches the
// carrier's wire format directly.
type Carrier interface {
	CreateCall(ctx context.Context, req CreateCallRequest) (CallInfo, error)
}

// CreateCallRequest describes one outbound call.
type CreateCallRequest struct {
	// To and From are E.164 where possible.
	To   string
	From string

	// URL is the webhook the carrier fetches for call instructions
	// once the callee answers.
	URL string

	// StatusCallback receives the asynchronous final call status.
	StatusCallback string

	// Timeout is how long to ring before giving up, in seconds.
	Timeout int

	Record bool
}

// CallInfo is the carrier's view of a placed call.
type CallInfo struct {
	SID    string
	Status string
}

// Call statuses the flow branches on. The carrier reports more; these
// are the ones with meaning here.
const (
	StatusQueued    = "queued"
	StatusInitiated = "initiated"
	StatusCompleted = "completed"
	StatusBusy      = "busy"
	StatusFailed    = "failed"
)

// Error is a structured carrier API error.
type Error struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("carrier: %s (code %d, http %d)", e.Message, e.Code, e.Status)
}
