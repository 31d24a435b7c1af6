package telephony

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config holds carrier API credentials and defaults.
type Config struct {
	AccountSID string
	AuthToken  string

	// BaseURL overrides the API endpoint, for tests.
	BaseURL string

	Timeout time.Duration
}

// Twilio talks to the Twilio voice REST API (or any API-compatible
// emulator).
type Twilio struct {
	http       *resty.Client
	accountSID string
}

func NewTwilio(cfg Config) *Twilio {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Twilio{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(cfg.Timeout).
			SetBasicAuth(cfg.AccountSID, cfg.AuthToken),
		accountSID: cfg.AccountSID,
	}
}

type callResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

func (t *Twilio) CreateCall(ctx context.Context, req CreateCallRequest) (CallInfo, error) {
	form := map[string]string{
		"To":   req.To,
		"From": req.From,
		"Url":  req.URL,
	}
	if req.StatusCallback != "" {
		form["StatusCallback"] = req.StatusCallback
	}
	if req.Timeout > 0 {
		form["Timeout"] = strconv.Itoa(req.Timeout)
	}
	if req.Record {
		form["Record"] = "true"
	}

	var out callResource
	var apiErr Error
	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&apiErr).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Calls.json", t.accountSID))
	if err != nil {
		return CallInfo{}, fmt.Errorf("carrier request: %w", err)
	}
	if resp.IsError() {
		if apiErr.Message == "" {
			return CallInfo{}, fmt.Errorf("carrier: http %d", resp.StatusCode())
		}
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode()
		}
		return CallInfo{}, &apiErr
	}
	return CallInfo{SID: out.SID, Status: out.Status}, nil
}
