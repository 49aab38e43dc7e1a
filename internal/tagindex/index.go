// Package tagindex maps capability tags to the handles advertising them.
//
// The index is derived data: the node record is authoritative, and callers
// re-check index hits against the record before reporting a tag match.
package tagindex

import (
	"context"

	"beacon/pkg/domain"
)

// Index is the tag → handles lookup.
type Index interface {
	// Replace sets the tags of handle. Replacements carrying a revision not newer
	// than the last applied one are ignored.
	Replace(ctx context.Context, handle domain.Handle, tags domain.Tags, revision int64) error
	// Lookup returns, for each handle having ANY of tags, which of tags it has.
	Lookup(ctx context.Context, tags domain.Tags) (map[domain.Handle]domain.Tags, error)
}
