package domain

import (
	"strings"

	dErrors "beacon/pkg/domain-errors"
)

// Tier is the access tier a caller or node holds.
type Tier string

const (
	TierExplorer   Tier = "explorer"
	TierRecruiter  Tier = "recruiter"
	TierEnterprise Tier = "enterprise"
)

var knownTiers = map[Tier]struct{}{
	TierExplorer:   {},
	TierRecruiter:  {},
	TierEnterprise: {},
}

// ParseTier validates a tier name. Matching is case-insensitive.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown tier: "+s)
	}
	return t, nil
}

func (t Tier) IsValid() bool {
	_, ok := knownTiers[t]
	return ok
}

func (t Tier) String() string {
	return string(t)
}
