package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starmap/domain/core/entities"
)

func testSig(id, group, name string) entities.Signature {
	return entities.Signature{
		ScanRecord: entities.ScanRecord{ID: id, Group: group, Name: name},
		SystemID:   "J123456",
	}
}

func sigIDs(sigs []entities.Signature) []string {
	ids := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		ids = append(ids, sig.ID)
	}
	return ids
}

func TestReconcile_AddsUnmatchedFresh(t *testing.T) {
	old := []entities.Signature{testSig("ABC-123", "Data", "Sparking Site")}
	fresh := []entities.Signature{
		testSig("ABC-123", "Data", "Sparking Site"),
		testSig("DEF-456", "Relic", "Ruined Outpost"),
	}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	assert.Equal(t, []string{"DEF-456"}, sigIDs(result.Added))
	assert.Empty(t, result.Updated)
	assert.Empty(t, result.Removed)
}

func TestReconcile_RemovesEntriesMissingFromSnapshot(t *testing.T) {
	old := []entities.Signature{
		testSig("ABC-123", "Data", "Sparking Site"),
		testSig("DEF-456", "Relic", "Ruined Outpost"),
	}
	fresh := []entities.Signature{testSig("ABC-123", "Data", "Sparking Site")}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	assert.Equal(t, []string{"DEF-456"}, sigIDs(result.Removed))
}

func TestReconcile_UpdateOnlySuppressesRemovals(t *testing.T) {
	old := []entities.Signature{
		testSig("ABC-123", "Data", "Sparking Site"),
		testSig("DEF-456", "Relic", "Ruined Outpost"),
	}
	fresh := []entities.Signature{testSig("ABC-123", "Data", "Sparking Site")}

	result := Reconcile(old, fresh, ReconcileOptions{UpdateOnly: true, SkipUnchanged: true})

	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Added)
}

func TestReconcile_HigherRankUpgradesClassification(t *testing.T) {
	// Rank 0 locally, rank 2 incoming
	old := []entities.Signature{testSig("ABC-123", "", "")}
	fresh := []entities.Signature{testSig("ABC-123", "Wormhole", "K162")}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	require.Len(t, result.Updated, 1)
	assert.Equal(t, "Wormhole", result.Updated[0].Group)
	assert.Equal(t, "K162", result.Updated[0].Name)
}

func TestReconcile_UnnamedEntryTakesIncomingName(t *testing.T) {
	// Rank 1 locally (classified, unnamed), rank 2 incoming
	old := []entities.Signature{testSig("ABC-123", "Wormhole", "")}
	fresh := []entities.Signature{testSig("ABC-123", "Wormhole", "K346")}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	require.Len(t, result.Updated, 1)
	assert.Equal(t, "Wormhole", result.Updated[0].Group)
	assert.Equal(t, "K346", result.Updated[0].Name)
}

func TestReconcile_LowerRankNeverRegresses(t *testing.T) {
	// Rank 2 locally, rank 1 incoming ("Unknown" placeholder)
	old := []entities.Signature{testSig("ABC-123", "Wormhole", "K162")}
	fresh := []entities.Signature{testSig("ABC-123", "Data", entities.UnknownName)}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	assert.Empty(t, result.Updated)
}

func TestReconcile_EqualRankKeepsLocalReading(t *testing.T) {
	old := []entities.Signature{testSig("ABC-123", "Wormhole", "K162")}
	fresh := []entities.Signature{testSig("ABC-123", "Gas", "Vital Core Reservoir")}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	assert.Empty(t, result.Updated)
}

func TestReconcile_DescriptionIsLastWriteWins(t *testing.T) {
	old := []entities.Signature{testSig("ABC-123", "Wormhole", "K162")}
	old[0].Description = "leads home"
	fresh := []entities.Signature{testSig("ABC-123", "", "")}
	fresh[0].Description = "collapsed"

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	require.Len(t, result.Updated, 1)
	assert.Equal(t, "collapsed", result.Updated[0].Description)
	// Classification untouched: incoming rank was lower
	assert.Equal(t, "K162", result.Updated[0].Name)
}

func TestReconcile_CustomMetadataMergesPerKey(t *testing.T) {
	old := []entities.Signature{testSig("ABC-123", "Wormhole", "K162")}
	old[0].Custom = map[string]any{"color": "red", "note": "watch this"}
	fresh := []entities.Signature{testSig("ABC-123", "", "")}
	fresh[0].Custom = map[string]any{"color": "blue", "shared": true}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	require.Len(t, result.Updated, 1)
	merged := result.Updated[0].Custom
	assert.Equal(t, "blue", merged["color"])
	assert.Equal(t, "watch this", merged["note"])
	assert.Equal(t, true, merged["shared"])

	// The local blob itself stays untouched
	assert.Equal(t, "red", old[0].Custom["color"])
}

func TestReconcile_UpdatedAtFollowsSnapshot(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	old := []entities.Signature{testSig("ABC-123", "Wormhole", "K162")}
	fresh := []entities.Signature{testSig("ABC-123", "", "")}
	fresh[0].UpdatedAt = stamp

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	require.Len(t, result.Updated, 1)
	assert.True(t, result.Updated[0].UpdatedAt.Equal(stamp))
}

func TestReconcile_SkipUnchangedDropsIdenticalMatches(t *testing.T) {
	old := []entities.Signature{testSig("ABC-123", "Data", "Sparking Site")}
	fresh := []entities.Signature{testSig("ABC-123", "Data", "Sparking Site")}

	withSkip := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})
	withoutSkip := Reconcile(old, fresh, ReconcileOptions{})

	assert.Empty(t, withSkip.Updated)
	assert.Len(t, withoutSkip.Updated, 1)
}

func TestReconcile_PartialIDPromotes(t *testing.T) {
	old := []entities.Signature{testSig("ABC", "Wormhole", "my hole")}
	fresh := []entities.Signature{testSig("ABC-123", "Wormhole", "K162")}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	// Identity change surfaces as remove plus add, never an update
	require.Equal(t, []string{"ABC"}, sigIDs(result.Removed))
	require.Equal(t, []string{"ABC-123"}, sigIDs(result.Added))
	assert.Empty(t, result.Updated)

	// The locally-assigned name rides along to the new identity
	assert.Equal(t, "my hole", result.Added[0].Name)
}

func TestReconcile_PromotionIsCaseInsensitive(t *testing.T) {
	old := []entities.Signature{testSig("abc", "", "")}
	fresh := []entities.Signature{testSig("ABC-123", "Data", "Sparking Site")}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	require.Equal(t, []string{"ABC-123"}, sigIDs(result.Added))
	assert.Equal(t, []string{"abc"}, sigIDs(result.Removed))
	// No local name to carry, so the snapshot's name stands
	assert.Equal(t, "Sparking Site", result.Added[0].Name)
}

func TestReconcile_AmbiguousPromotionPicksSmallestID(t *testing.T) {
	old := []entities.Signature{testSig("ABC", "", "tagged")}
	fresh := []entities.Signature{
		testSig("ABC-900", "Relic", "Ruined Outpost"),
		testSig("ABC-123", "Data", "Sparking Site"),
	}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	require.Len(t, result.Removed, 1)
	promotedIDs := sigIDs(result.Added)
	require.Contains(t, promotedIDs, "ABC-123")
	require.Contains(t, promotedIDs, "ABC-900")

	for _, sig := range result.Added {
		if sig.ID == "ABC-123" {
			assert.Equal(t, "tagged", sig.Name, "smallest id wins the promotion")
		}
		if sig.ID == "ABC-900" {
			assert.Equal(t, "Ruined Outpost", sig.Name, "loser enters as a plain add")
		}
	}
}

func TestReconcile_ExactMatchClaimsBeforePromotion(t *testing.T) {
	// Both the partial and the full id exist locally: the full entry must
	// keep its exact match, the partial is simply gone from the snapshot
	old := []entities.Signature{
		testSig("ABC", "", ""),
		testSig("ABC-123", "Wormhole", "K162"),
	}
	fresh := []entities.Signature{testSig("ABC-123", "Wormhole", "K162")}

	result := Reconcile(old, fresh, ReconcileOptions{SkipUnchanged: true})

	assert.Empty(t, result.Added)
	assert.Equal(t, []string{"ABC"}, sigIDs(result.Removed))
}

func TestReconcile_PartialWithoutCandidateKeptUnderUpdateOnly(t *testing.T) {
	old := []entities.Signature{testSig("ABC", "", "")}
	fresh := []entities.Signature{testSig("XYZ-789", "Combat", "Den")}

	result := Reconcile(old, fresh, ReconcileOptions{UpdateOnly: true, SkipUnchanged: true})

	assert.Equal(t, []string{"XYZ-789"}, sigIDs(result.Added))
	assert.Empty(t, result.Removed)
}

func TestReconcile_PromotionRemovalEmittedEvenUnderUpdateOnly(t *testing.T) {
	old := []entities.Signature{testSig("ABC", "", "")}
	fresh := []entities.Signature{testSig("ABC-123", "Data", "Sparking Site")}

	result := Reconcile(old, fresh, ReconcileOptions{UpdateOnly: true, SkipUnchanged: true})

	// The removal half of a promotion is part of the identity change, not
	// a deletion of a missing entry
	assert.Equal(t, []string{"ABC"}, sigIDs(result.Removed))
	assert.Equal(t, []string{"ABC-123"}, sigIDs(result.Added))
}

func TestReconcile_PartitionsAreDisjoint(t *testing.T) {
	old := []entities.Signature{
		testSig("ABC", "", ""),
		testSig("DEF-456", "Relic", "Ruined Outpost"),
		testSig("GHI-789", "Gas", "Reservoir"),
	}
	fresh := []entities.Signature{
		testSig("ABC-123", "Data", "Sparking Site"),
		testSig("DEF-456", "Relic", "Ruined Outpost"),
		testSig("JKL-012", "Combat", "Den"),
	}

	result := Reconcile(old, fresh, ReconcileOptions{})

	seen := make(map[string]int)
	for _, id := range sigIDs(result.Added) {
		seen[id]++
	}
	for _, id := range sigIDs(result.Updated) {
		seen[id]++
	}
	for _, id := range sigIDs(result.Removed) {
		seen[id]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "id %s appears in more than one bucket", id)
	}
}
