package models

import (
	"slices"
	"time"

	"beacon/internal/presence"
	"beacon/pkg/domain"
)

// TimestampPrecision is the resolution node timestamps are kept at. Postgres
// timestamptz stores microseconds.
const TimestampPrecision = time.Microsecond

// Node is the registry's record of one independently-run node.
// Invariant: LastHeartbeatAt >= RegisteredAt. Nodes are never deleted.
type Node struct {
	Handle          domain.Handle
	Endpoint        string
	Tags            domain.Tags
	RegisteredAt    time.Time
	LastHeartbeatAt time.Time
	UptimeHours     float64
	DataSince       *time.Time
	Tier            domain.Tier
	ContactEmail    string

	// Revision increases on every applied change. The tag index uses it to drop
	// out-of-order replacements.
	Revision int64
}

// Registration is a validated register request.
type Registration struct {
	Handle       domain.Handle
	Endpoint     string
	Tags         domain.Tags
	UptimeHours  float64
	DataSince    *time.Time
	ContactEmail string
	Tier         domain.Tier
}

// Heartbeat is a validated liveness report. Timestamp is already clamped to
// the registry clock.
type Heartbeat struct {
	Handle      domain.Handle
	Endpoint    string
	Tags        domain.Tags
	UptimeHours float64
	Timestamp   time.Time
}

// HeartbeatOutcome says what applying a heartbeat did.
type HeartbeatOutcome string

const (
	HeartbeatApplied HeartbeatOutcome = "applied"
	HeartbeatReplay  HeartbeatOutcome = "replay"
	HeartbeatStale   HeartbeatOutcome = "stale"
)

// NewNode creates the record for a first registration at now.
func NewNode(reg Registration, now time.Time) *Node {
	return &Node{
		Handle:          reg.Handle,
		Endpoint:        reg.Endpoint,
		Tags:            reg.Tags,
		RegisteredAt:    now,
		LastHeartbeatAt: now,
		UptimeHours:     reg.UptimeHours,
		DataSince:       reg.DataSince,
		Tier:            reg.Tier,
		ContactEmail:    reg.ContactEmail,
		Revision:        1,
	}
}

// ApplyRegistration re-registers an existing node: mutable fields are replaced,
// the registration counts as a heartbeat at now, and uptime never decreases.
func (n *Node) ApplyRegistration(reg Registration, now time.Time) {
	n.Endpoint = reg.Endpoint
	n.Tags = reg.Tags
	n.Tier = reg.Tier
	if reg.ContactEmail != "" {
		n.ContactEmail = reg.ContactEmail
	}
	if reg.DataSince != nil {
		n.DataSince = reg.DataSince
	}
	if now.After(n.LastHeartbeatAt) {
		n.LastHeartbeatAt = now
	}
	n.UptimeHours = max(n.UptimeHours, reg.UptimeHours)
	n.Revision++
}

// ApplyHeartbeat folds a heartbeat into the record. A heartbeat older than the
// stored one is a stale replay and changes nothing; one with the same timestamp
// is an idempotent replay.
func (n *Node) ApplyHeartbeat(hb Heartbeat) HeartbeatOutcome {
	switch {
	case hb.Timestamp.Before(n.LastHeartbeatAt):
		return HeartbeatStale
	case hb.Timestamp.Equal(n.LastHeartbeatAt):
		return HeartbeatReplay
	}
	n.Endpoint = hb.Endpoint
	n.Tags = hb.Tags
	n.LastHeartbeatAt = hb.Timestamp
	n.UptimeHours = max(n.UptimeHours, hb.UptimeHours)
	n.Revision++
	return HeartbeatApplied
}

// Presence classifies the node as seen at now.
func (n *Node) Presence(now time.Time) presence.State {
	return presence.At(n.LastHeartbeatAt, now)
}

// Clone returns a deep copy safe to hand out of a store.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Tags = slices.Clone(n.Tags)
	if n.DataSince != nil {
		ds := *n.DataSince
		c.DataSince = &ds
	}
	return &c
}
