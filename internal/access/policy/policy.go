// Package policy maps access tiers to their limits.
package policy

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"beacon/internal/access/models"
	"beacon/pkg/domain"
)

// Table maps each tier to its limits.
type Table map[domain.Tier]models.TierLimits

// Default returns the built-in tier table.
func Default() Table {
	return Table{
		domain.TierExplorer:   {DailyQuota: 20, MaxResults: 5, FanOut: false, APIAccess: false},
		domain.TierRecruiter:  {DailyQuota: 500, MaxResults: 50, FanOut: true, APIAccess: false},
		domain.TierEnterprise: {DailyQuota: 10000, MaxResults: 500, FanOut: true, APIAccess: true},
	}
}

// Limits returns the limits for tier. Unknown tiers get explorer limits.
func (t Table) Limits(tier domain.Tier) models.TierLimits {
	if l, ok := t[tier]; ok {
		return l
	}
	return t[domain.TierExplorer]
}

// Current returns t itself, so a fixed table can serve wherever a live one is accepted.
func (t Table) Current() Table {
	return t
}

// LoadFile reads a tier table from a TOML file. An empty path returns the defaults.
func LoadFile(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier policy file: %w", err)
	}
	return Parse(string(content))
}

// Parse reads a tier table from TOML. Tiers not mentioned keep their defaults:
//
//	[recruiter]
//	daily_quota = 1000
//	max_results = 50
//	fan_out = true
func Parse(content string) (Table, error) {
	var raw map[string]models.TierLimits
	md, err := toml.Decode(content, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tier policy: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown tier policy keys: %v", undecoded)
	}

	table := Default()
	for name, limits := range raw {
		tier, err := domain.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("tier policy: %w", err)
		}
		if limits.DailyQuota < 0 || limits.MaxResults <= 0 {
			return nil, fmt.Errorf("tier policy %s: daily_quota must be >= 0 and max_results > 0", tier)
		}
		table[tier] = limits
	}
	return table, nil
}
