package sync

import (
	"reflect"
	"sort"
	"strings"

	"starmap/domain/core/entities"
)

// Scannable is the constraint for entities the reconciler merges:
// anything carrying a ScanRecord (signatures, structures)
type Scannable[T any] interface {
	entities.Keyed
	Record() entities.ScanRecord
	WithRecord(entities.ScanRecord) T
}

// ReconcileOptions tunes a reconciliation pass
type ReconcileOptions struct {
	// UpdateOnly suppresses removals of old entities absent from the
	// authoritative snapshot. Used for paste/import driven passes that
	// should only ever add or upgrade.
	UpdateOnly bool

	// SkipUnchanged leaves untouched matches out of Updated, so callers
	// that key on stable rows see no churn.
	SkipUnchanged bool
}

// ReconcileResult partitions the delta between an authoritative snapshot
// and the locally-held list. Added, Updated and Removed are pairwise
// disjoint by the identity they reference.
type ReconcileResult[T any] struct {
	Added   []T
	Updated []T
	Removed []T
}

// Reconcile computes {added, updated, removed} between the local list
// and an authoritative snapshot.
//
// Correlation is by exact id, except for partial identifiers (shorter
// than a fully-resolved id): those match by case-insensitive prefix,
// modelling a sensor upgrading a partial reading into a full one. A
// prefix promotion is a replace, not an update: the old identity is
// removed and the new identity added, carrying over the locally-assigned
// name. When several new ids share the prefix, the smallest lexicographic
// full id wins.
//
// Exact matches merge field by field: classification and name upgrade
// only when the incoming information rank is strictly higher, free-text
// description is last-write-wins, the custom metadata blob merges per
// key, and updatedAt always follows the snapshot.
func Reconcile[T Scannable[T]](old, fresh []T, opts ReconcileOptions) ReconcileResult[T] {
	var result ReconcileResult[T]

	freshByID := make(map[string]T, len(fresh))
	for _, item := range fresh {
		freshByID[item.Key()] = item
	}
	consumed := make(map[string]bool, len(fresh))

	// Exact matches claim their fresh entity up front so a partial
	// reading never promotes into an id that also exists locally in full
	for _, oldItem := range old {
		if _, ok := freshByID[oldItem.Key()]; ok {
			consumed[oldItem.Key()] = true
		}
	}

	for _, oldItem := range old {
		oldRec := oldItem.Record()

		if freshItem, ok := freshByID[oldItem.Key()]; ok {
			merged, changed := mergeRecords(oldRec, freshItem.Record())
			consumed[freshItem.Key()] = true
			if changed || !opts.SkipUnchanged {
				result.Updated = append(result.Updated, oldItem.WithRecord(merged))
			}
			continue
		}

		if oldRec.Partial() {
			if promoted, ok := promote(oldItem, fresh, consumed); ok {
				// Identity changed: replace, not update
				result.Added = append(result.Added, promoted)
				result.Removed = append(result.Removed, oldItem)
				continue
			}
		}

		if !opts.UpdateOnly {
			result.Removed = append(result.Removed, oldItem)
		}
	}

	for _, item := range fresh {
		if !consumed[item.Key()] {
			result.Added = append(result.Added, item)
		}
	}

	return result
}

// promote finds the full identity a partial reading resolved into and
// synthesizes the merged record. Candidates are unconsumed fresh entities
// whose id the old id strictly prefixes, case-insensitive; ties break on
// the smallest lexicographic full id.
func promote[T Scannable[T]](oldItem T, fresh []T, consumed map[string]bool) (T, bool) {
	oldID := strings.ToLower(oldItem.Key())

	var candidates []T
	for _, item := range fresh {
		id := item.Key()
		if consumed[id] || len(id) <= len(oldItem.Key()) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(id), oldID) {
			candidates = append(candidates, item)
		}
	}

	if len(candidates) == 0 {
		var zero T
		return zero, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Key() < candidates[j].Key()
	})
	match := candidates[0]
	consumed[match.Key()] = true

	// New full identity, old locally-assigned name
	merged := match.Record()
	if name := oldItem.Record().Name; name != "" {
		merged.Name = name
	}
	return match.WithRecord(merged), true
}

// mergeRecords folds an authoritative record into the local one and
// reports whether anything actually changed
func mergeRecords(oldRec, freshRec entities.ScanRecord) (entities.ScanRecord, bool) {
	merged := oldRec
	changed := false

	// A more specific local reading never regresses
	if freshRec.Rank() > oldRec.Rank() {
		if merged.Group != freshRec.Group {
			merged.Group = freshRec.Group
			changed = true
		}
		if merged.Name != freshRec.Name {
			merged.Name = freshRec.Name
			changed = true
		}
	}

	// Free-text description is last-write-wins
	if freshRec.Description != "" && freshRec.Description != oldRec.Description {
		merged.Description = freshRec.Description
		changed = true
	}

	if custom, customChanged := mergeCustom(oldRec.Custom, freshRec.Custom); customChanged {
		merged.Custom = custom
		changed = true
	}

	if !freshRec.UpdatedAt.Equal(oldRec.UpdatedAt) {
		merged.UpdatedAt = freshRec.UpdatedAt
		changed = true
	}

	return merged, changed
}

// mergeCustom merges the structured metadata blob key by key: per-key
// last-write-wins, so unrelated locally-set keys survive a refresh
func mergeCustom(oldCustom, freshCustom map[string]any) (map[string]any, bool) {
	if len(freshCustom) == 0 {
		return oldCustom, false
	}

	changed := false
	merged := oldCustom
	for key, value := range freshCustom {
		current, ok := merged[key]
		if ok && reflect.DeepEqual(current, value) {
			continue
		}
		if !changed {
			// Copy on first difference; the old blob stays untouched
			copied := make(map[string]any, len(merged)+len(freshCustom))
			for k, v := range merged {
				copied[k] = v
			}
			merged = copied
			changed = true
		}
		merged[key] = value
	}

	return merged, changed
}
