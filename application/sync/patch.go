package sync

import (
	"starmap/domain/core/entities"
)

// Patchable is the constraint for collections driven by change records
type Patchable[T any] interface {
	entities.Keyed
	WithField(entities.FieldUpdate) T
}

// ChangeKind identifies what a change record does to its entity
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeRemove
	ChangeReplace
	ChangeUpdate
	ChangeReset
)

// Change is an ordered, typed change record. Records for the same id
// apply in arrival order; a remove or replace makes earlier queued
// records for that id moot.
type Change[T Patchable[T]] struct {
	ID    string
	Kind  ChangeKind
	Item  T                    // payload for add, replace, reset
	Index int                  // splice index for add; -1 appends
	Field entities.FieldUpdate // payload for update
}

// Add creates an append-at-end add record
func Add[T Patchable[T]](item T) Change[T] {
	return Change[T]{ID: item.Key(), Kind: ChangeAdd, Item: item, Index: -1}
}

// AddAt creates an add record spliced at the given index
func AddAt[T Patchable[T]](item T, index int) Change[T] {
	return Change[T]{ID: item.Key(), Kind: ChangeAdd, Item: item, Index: index}
}

// Remove creates a remove record
func Remove[T Patchable[T]](id string) Change[T] {
	return Change[T]{ID: id, Kind: ChangeRemove, Index: -1}
}

// Replace creates a full-entity replace record
func Replace[T Patchable[T]](item T) Change[T] {
	return Change[T]{ID: item.Key(), Kind: ChangeReplace, Item: item, Index: -1}
}

// Update creates a field-update record
func Update[T Patchable[T]](id string, field entities.FieldUpdate) Change[T] {
	return Change[T]{ID: id, Kind: ChangeUpdate, Field: field, Index: -1}
}

// Reset creates a full-replace record. A change list containing any
// reset yields exactly the reset payloads, in order.
func Reset[T Patchable[T]](item T) Change[T] {
	return Change[T]{ID: item.Key(), Kind: ChangeReset, Item: item, Index: -1}
}

// ApplyChanges folds an ordered list of change records into a keyed
// collection and returns the patched collection. The input slice is
// never mutated; untouched entities pass through without copying so
// memoized consumers can rely on unchanged entries. Removes and updates
// against unknown ids are no-ops.
func ApplyChanges[T Patchable[T]](changes []Change[T], collection []T) []T {
	if len(changes) == 0 {
		return collection
	}

	// Reset short-circuit: the force-resync path ignores everything else
	if resets := collectResets(changes); resets != nil {
		return resets
	}

	// Partition: adds are deferred; the rest queue per id in arrival
	// order. A remove or replace clears whatever was queued before it.
	var adds []Change[T]
	byID := make(map[string][]Change[T])
	for _, ch := range changes {
		switch ch.Kind {
		case ChangeAdd:
			adds = append(adds, ch)
		case ChangeRemove, ChangeReplace:
			byID[ch.ID] = []Change[T]{ch}
		case ChangeUpdate:
			byID[ch.ID] = append(byID[ch.ID], ch)
		}
	}

	result := make([]T, 0, len(collection)+len(adds))
	for _, item := range collection {
		queued, ok := byID[item.Key()]
		if !ok {
			result = append(result, item)
			continue
		}

		removed := false
		for _, ch := range queued {
			switch ch.Kind {
			case ChangeRemove:
				removed = true
			case ChangeReplace:
				item = ch.Item
				removed = false
			case ChangeUpdate:
				if !removed {
					item = item.WithField(ch.Field)
				}
			}
		}
		if !removed {
			result = append(result, item)
		}
	}

	// Adds apply last so splice indexes are computed against the fully
	// patched set. Re-adding an existing id replaces it in place to keep
	// the one-entity-per-id invariant.
	for _, ch := range adds {
		if idx := indexOf(result, ch.ID); idx >= 0 {
			result[idx] = ch.Item
			continue
		}
		if ch.Index >= 0 && ch.Index < len(result) {
			result = append(result[:ch.Index], append([]T{ch.Item}, result[ch.Index:]...)...)
		} else {
			result = append(result, ch.Item)
		}
	}

	return result
}

func collectResets[T Patchable[T]](changes []Change[T]) []T {
	var resets []T
	for _, ch := range changes {
		if ch.Kind == ChangeReset {
			resets = append(resets, ch.Item)
		}
	}
	return resets
}

func indexOf[T Patchable[T]](collection []T, id string) int {
	for i, item := range collection {
		if item.Key() == id {
			return i
		}
	}
	return -1
}
