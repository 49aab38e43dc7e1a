package domain

import (
	"regexp"
	"strings"

	dErrors "beacon/pkg/domain-errors"
)

// Handle is the unique, immutable name a node registers under.
// Invariant: lower-case, 2-64 characters, starts with a letter or digit.
//
// Handles are stored without the leading "@" that users type; String renders
// the bare form and Display the "@" form.
type Handle string

var handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

// ParseHandle normalizes and validates a handle from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or malformed.
func ParseHandle(s string) (Handle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "@")
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "handle is required")
	}
	if !handlePattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "handle must match [a-z0-9][a-z0-9_-]{1,63}")
	}
	return Handle(s), nil
}

func (h Handle) String() string {
	return string(h)
}

// Display renders the handle the way users refer to it.
func (h Handle) Display() string {
	return "@" + string(h)
}
