// Package models holds discovery query and result types.
package models

import (
	"encoding/json"
	"time"

	accessmodels "beacon/internal/access/models"
	"beacon/internal/presence"
	"beacon/pkg/domain"
)

// Query is a validated search. At least one of Text and Tags is set.
// A zero Limit means the tier's maximum.
type Query struct {
	Text  string
	Tags  domain.Tags
	Limit int
}

// EnrichmentStatus says what happened when the node was asked for a preview.
type EnrichmentStatus string

const (
	EnrichmentNotAttempted EnrichmentStatus = "not_attempted"
	EnrichmentOK           EnrichmentStatus = "ok"
	EnrichmentUnreachable  EnrichmentStatus = "endpoint_unreachable"
)

// Item is one discovered node. Endpoint is empty unless the caller's tier
// permits fan-out; Similarity is nil for tag-only matches.
type Item struct {
	Handle          domain.Handle
	Endpoint        string
	MatchedTags     domain.Tags
	Similarity      *float64
	Presence        presence.State
	LastHeartbeatAt time.Time
	Preview         json.RawMessage
	Enrichment      EnrichmentStatus
}

// Result is the merged discovery answer.
type Result struct {
	Items             []Item
	Degraded          bool
	PartialEnrichment bool
	Tier              domain.Tier
	Quota             accessmodels.RateLimitResult
}
