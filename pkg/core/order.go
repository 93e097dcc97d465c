package core

import "sort"

// SortNotes orders notes in place for display:
//  1. pinned before unpinned
//  2. pinned by PinnedAt, most recent first
//  3. then by UpdatedAt, most recent first
//
// ID breaks remaining ties so the order is deterministic.
func SortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		return noteLess(notes[i], notes[j])
	})
}

func noteLess(a, b Note) bool {
	if a.IsPinned != b.IsPinned {
		return a.IsPinned
	}
	if a.IsPinned && a.PinnedAt != nil && b.PinnedAt != nil && !a.PinnedAt.Equal(*b.PinnedAt) {
		return a.PinnedAt.After(*b.PinnedAt)
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}

// Sorted reports whether notes already satisfy the display order.
func Sorted(notes []Note) bool {
	for i := 1; i < len(notes); i++ {
		if noteLess(notes[i], notes[i-1]) {
			return false
		}
	}
	return true
}
