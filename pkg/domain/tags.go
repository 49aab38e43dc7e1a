package domain

import (
	"sort"

	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/platform/strings"
)

const (
	maxTags      = 64
	maxTagLength = 64
)

// Tags is a normalized capability tag set: lower-case, trimmed, deduplicated and sorted.
type Tags []string

// ParseTags normalizes raw tags.
//
// Errors: returns CodeInvalidInput when there are too many tags or one is too long.
func ParseTags(raw []string) (Tags, error) {
	if len(raw) > maxTags {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "too many tags")
	}
	out := strings.NormalizeSet(raw)
	for _, t := range out {
		if len(t) > maxTagLength {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "tag too long: "+t)
		}
	}
	return Tags(out), nil
}

// Contains reports whether tag is in the set. The set must be normalized.
func (t Tags) Contains(tag string) bool {
	i := sort.SearchStrings(t, tag)
	return i < len(t) && t[i] == tag
}

// Intersect returns the tags present in both sets, sorted.
func (t Tags) Intersect(other Tags) Tags {
	var out Tags
	for _, tag := range other {
		if t.Contains(tag) {
			out = append(out, tag)
		}
	}
	return out
}

// Equal reports whether both normalized sets hold the same tags.
func (t Tags) Equal(other Tags) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}
