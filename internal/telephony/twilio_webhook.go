package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// WebhookForm captures the subset of carrier voice webhook fields the
// call flow cares about. The carrier sends
// application/x-www-form-urlencoded by default, but GET query
// parameters are honored too.
type WebhookForm struct {
	CallSID    string
	From       string
	To         string
	Direction  string
	CallStatus string

	// CallDuration arrives on status callbacks, in seconds.
	CallDuration int

	// DialCallStatus and DialCallDuration describe the nested dial leg
	// on action callbacks.
	DialCallStatus   string
	DialCallDuration int

	// Digits is the keypad input collected by a gather.
	Digits string

	// QueueTime is the carrier's queue delay estimate, milliseconds.
	QueueTime int
}

// ParseWebhook reads the carrier webhook fields from a request. Form
// and query parameters are both accepted; missing fields stay zero.
func ParseWebhook(r *http.Request) (WebhookForm, error) {
	if err := r.ParseForm(); err != nil {
		return WebhookForm{}, err
	}
	f := WebhookForm{
		CallSID:          r.FormValue("CallSid"),
		From:             normalizePhone(r.FormValue("From")),
		To:               normalizePhone(r.FormValue("To")),
		Direction:        r.FormValue("Direction"),
		CallStatus:       r.FormValue("CallStatus"),
		CallDuration:     formInt(r, "CallDuration"),
		DialCallStatus:   r.FormValue("DialCallStatus"),
		DialCallDuration: formInt(r, "DialCallDuration"),
		Digits:           r.FormValue("Digits"),
		QueueTime:        formInt(r, "QueueTime"),
	}
	return f, nil
}

func formInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.FormValue(key))
	return n
}

func normalizePhone(s string) string {
	return strings.TrimSpace(s)
}
