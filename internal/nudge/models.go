// Package nudge reminds operators of offline nodes by email.
//
// A node's offline period starts at S = lastHeartbeatAt + 30m. Reminders are
// due 24h, 7d and 30d after S; each (handle, kind, S) is sent at most once and
// a heartbeat starts a new period.
package nudge

import (
	"time"

	"beacon/internal/presence"
	"beacon/pkg/domain"
)

type Kind string

const (
	KindOffline24h Kind = "offline_24h"
	KindOffline7d  Kind = "offline_7d"
	KindOffline30d Kind = "offline_30d"
)

// Cadence is one reminder boundary measured from the start of the offline period.
type Cadence struct {
	Kind  Kind
	After time.Duration
}

// Cadences in boundary order.
var Cadences = []Cadence{
	{KindOffline24h, 24 * time.Hour},
	{KindOffline7d, 7 * 24 * time.Hour},
	{KindOffline30d, 30 * 24 * time.Hour},
}

// OfflineSince returns when the offline period that includes lastHeartbeatAt began.
func OfflineSince(lastHeartbeatAt time.Time) time.Time {
	return lastHeartbeatAt.Add(presence.OfflineAfter)
}

// Reached returns the cadences whose boundary is at or before now, in order.
func Reached(offlineSince, now time.Time) []Cadence {
	var out []Cadence
	for _, c := range Cadences {
		if !now.Before(offlineSince.Add(c.After)) {
			out = append(out, c)
		}
	}
	return out
}

// Record marks a cadence as handled for one offline period. Skipped records
// were never sent because a later boundary had already been reached.
type Record struct {
	Handle       domain.Handle
	Kind         Kind
	OfflineSince time.Time
	SentAt       time.Time
	Skipped      bool
	SearchCount  int
}

// Message is a composed reminder.
type Message struct {
	To      string
	Subject string
	Body    string
}
