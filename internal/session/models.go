// Package session tracks call sessions and the individual target
// calls made within them.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session: not found")

const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"

	// StatusInitiated is the state a session is created in; carrier
	// status callbacks overwrite it later.
	StatusInitiated = "initiated"
)

// Session is one caller's pass through a campaign: created when the
// outbound call is placed or the inbound call arrives, finalized by
// the carrier's status callback.
type Session struct {
	ID         int64
	CampaignID int64

	// PhoneHash is the hashed caller number. The raw number is only
	// stored when the deployment opts into phone number logging.
	PhoneHash   string
	PhoneNumber string

	FromNumber string
	Direction  string
	Location   string

	Status   string
	Duration int

	Timestamp time.Time
}

// Call is one dial to one target within a session.
type Call struct {
	ID         int64
	SessionID  int64
	CampaignID int64
	TargetID   int64

	CallSID  string
	Status   string
	Duration int

	Timestamp time.Time
}

// HashPhone hashes a phone number for storage. Sessions are
// correlated by hash so raw numbers never need to be kept.
func HashPhone(number string) string {
	sum := sha256.Sum256([]byte(number))
	return hex.EncodeToString(sum[:])
}
