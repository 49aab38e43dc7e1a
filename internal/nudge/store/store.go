// Package store persists nudge records. Saving a duplicate
// (handle, kind, offline_since) returns sentinel.ErrConflict.
package store

import (
	"slices"

	"beacon/internal/nudge"
)

func sortRecords(records []nudge.Record) {
	slices.SortFunc(records, func(a, b nudge.Record) int {
		if c := a.OfflineSince.Compare(b.OfflineSince); c != 0 {
			return c
		}
		return kindOrder(a.Kind) - kindOrder(b.Kind)
	})
}

func kindOrder(k nudge.Kind) int {
	for i, c := range nudge.Cadences {
		if c.Kind == k {
			return i
		}
	}
	return len(nudge.Cadences)
}
