// Package presence classifies node liveness from heartbeat age.
//
// Presence is never stored. It is a step function of now - lastHeartbeatAt:
//
//	ONLINE   elapsed <= 5m
//	AWAY     5m  < elapsed <= 30m
//	OFFLINE  30m < elapsed <= 7d
//	GHOST    elapsed > 7d
package presence

import "time"

type State string

const (
	Online  State = "online"
	Away    State = "away"
	Offline State = "offline"
	Ghost   State = "ghost"
)

const (
	AwayAfter    = 5 * time.Minute
	OfflineAfter = 30 * time.Minute
	GhostAfter   = 7 * 24 * time.Hour
)

var rank = map[State]int{
	Online:  0,
	Away:    1,
	Offline: 2,
	Ghost:   3,
}

// Rank orders states from most to least reachable. Lower is better.
func (s State) Rank() int {
	if r, ok := rank[s]; ok {
		return r
	}
	return len(rank)
}

func (s State) String() string {
	return string(s)
}

// Searchable reports whether nodes in this state appear in tag and vector search.
func (s State) Searchable() bool {
	return s != Ghost
}

// Classify maps heartbeat age to a state. Negative ages (clock skew) count as ONLINE.
func Classify(elapsed time.Duration) State {
	switch {
	case elapsed <= AwayAfter:
		return Online
	case elapsed <= OfflineAfter:
		return Away
	case elapsed <= GhostAfter:
		return Offline
	default:
		return Ghost
	}
}

// At classifies a node whose last heartbeat was at lastHeartbeat, as seen at now.
func At(lastHeartbeat, now time.Time) State {
	return Classify(now.Sub(lastHeartbeat))
}

// OfflineSince is the instant a node with this last heartbeat became OFFLINE.
// It is fixed for a given heartbeat, so a new heartbeat starts a new offline period.
func OfflineSince(lastHeartbeat time.Time) time.Time {
	return lastHeartbeat.Add(OfflineAfter)
}
