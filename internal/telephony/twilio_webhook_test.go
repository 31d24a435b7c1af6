package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseWebhookForm(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&From=%2B15551234567&To=%2B15557654321&DialCallStatus=busy&DialCallDuration=12")
	r := httptest.NewRequest(http.MethodPost, "/call/complete", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseWebhook(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSID != "CA123" {
		t.Fatalf("expected CallSid, got %q", form.CallSID)
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}
	if form.DialCallStatus != "busy" || form.DialCallDuration != 12 {
		t.Fatalf("unexpected dial leg: %q %d", form.DialCallStatus, form.DialCallDuration)
	}
}

func TestParseWebhookQueryParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/call/complete_status?CallStatus=completed&CallDuration=95", nil)
	form, err := ParseWebhook(r)
	if err != nil {
		t.Fatal(err)
	}
	if form.CallStatus != "completed" || form.CallDuration != 95 {
		t.Fatalf("unexpected status: %q %d", form.CallStatus, form.CallDuration)
	}
}

func TestParseWebhookMissingFieldsZero(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/call/complete", strings.NewReader(""))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	form, err := ParseWebhook(r)
	if err != nil {
		t.Fatal(err)
	}
	if form.CallDuration != 0 || form.Digits != "" {
		t.Fatalf("expected zero values, got %+v", form)
	}
}
