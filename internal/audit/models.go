// Package audit keeps the append-only trail of searches: who asked, with
// which tier, for what, and which nodes were returned.
package audit

import (
	"time"

	"github.com/google/uuid"

	"beacon/pkg/domain"
)

// Entry is one recorded search. Entries are never updated or deleted.
type Entry struct {
	ID             uuid.UUID
	Caller         string
	Tier           domain.Tier
	QueryText      string
	Tags           domain.Tags
	MatchedHandles []domain.Handle
	Degraded       bool
	ClientAgent    string
	RequestID      string
	CreatedAt      time.Time
}
