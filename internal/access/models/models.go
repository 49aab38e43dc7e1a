// Package models holds the access gate's value types.
package models

import (
	"time"

	"beacon/pkg/domain"
)

// TierLimits is what one tier is allowed to do.
type TierLimits struct {
	DailyQuota int  `toml:"daily_quota"`
	MaxResults int  `toml:"max_results"`
	FanOut     bool `toml:"fan_out"`
	APIAccess  bool `toml:"api_access"`
}

// Identity is a caller after verification. Unverified callers are explorers
// keyed by client IP.
type Identity struct {
	// Key identifies the caller for quota accounting, e.g. "sub:acme" or "ip:203.0.113.7".
	Key      string
	Subject  string
	Tier     domain.Tier
	Verified bool
}

// RateLimitResult is the state of a caller's daily window after a check.
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Decision is an authorized request: who the caller is, what their tier
// permits and how much quota remains.
type Decision struct {
	Identity Identity
	Limits   TierLimits
	Quota    RateLimitResult
}

// DayWindow returns the UTC day containing now as [start, end).
func DayWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
