package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"starmap/domain/core/entities"
	pkgerrors "starmap/pkg/errors"
	"starmap/pkg/observability"
	"starmap/pkg/scheduler"
	"starmap/pkg/store"
)

// removeRecorder stands in for the command bridge's remove dispatch
type removeRecorder struct {
	ids []string
	err error
}

func (r *removeRecorder) dispatch(ctx context.Context, id string) error {
	r.ids = append(r.ids, id)
	return r.err
}

type pendingFixture struct {
	collection *store.Store[[]entities.Signature]
	sched      *scheduler.Manual
	remover    *removeRecorder
	manager    *PendingManager[entities.Signature]
}

func newPendingFixture(t *testing.T, cfg PendingConfig) *pendingFixture {
	t.Helper()

	f := &pendingFixture{
		collection: store.New([]entities.Signature{}),
		sched:      scheduler.NewManual(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		remover:    &removeRecorder{},
	}
	f.manager = NewPendingManager(
		f.collection,
		f.sched,
		f.remover.dispatch,
		cfg,
		observability.NewNopMetrics(),
		zap.NewNop(),
	)
	return f
}

func (f *pendingFixture) seed(sigs ...entities.Signature) {
	f.collection.Set(sigs)
}

func (f *pendingFixture) find(t *testing.T, id string) entities.Signature {
	t.Helper()
	for _, sig := range f.collection.Get() {
		if sig.ID == id {
			return sig
		}
	}
	t.Fatalf("signature %s not in collection", id)
	return entities.Signature{}
}

func defaultPendingConfig() PendingConfig {
	return PendingConfig{
		AddGrace:    5 * time.Second,
		RemoveGrace: 10 * time.Second,
	}
}

func TestPendingManager_StageAdd_ConfirmsAfterGrace(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())

	f.manager.StageAdd(testSig("ABC-123", "Data", "Sparking Site"))

	staged := f.find(t, "ABC-123")
	assert.Equal(t, entities.PendingAdd, staged.Pending.State)
	assert.Equal(t, f.sched.Now().Add(5*time.Second), staged.Pending.Until)

	f.sched.Advance(5 * time.Second)

	assert.Equal(t, entities.Confirmed, f.find(t, "ABC-123").Pending.State)
	assert.Empty(t, f.remover.ids, "expiring an add never contacts the server")
}

func TestPendingManager_Confirm_SupersedesPayloadKeepsMarker(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())
	f.manager.StageAdd(testSig("ABC-123", "", ""))

	canonical := testSig("ABC-123", "Wormhole", "K162")
	f.manager.Confirm(canonical)

	confirmed := f.find(t, "ABC-123")
	assert.Equal(t, "K162", confirmed.Name)
	assert.Equal(t, entities.PendingAdd, confirmed.Pending.State, "marker expires on its own schedule")

	f.sched.Advance(5 * time.Second)
	assert.Equal(t, entities.Confirmed, f.find(t, "ABC-123").Pending.State)
}

func TestPendingManager_StageRemove_FinalizesAfterGrace(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())
	f.seed(testSig("ABC-123", "Data", "Sparking Site"))

	err := f.manager.StageRemove(context.Background(), "ABC-123")
	require.NoError(t, err)

	// Still present, only flagged
	assert.Equal(t, entities.PendingRemove, f.find(t, "ABC-123").Pending.State)
	assert.Empty(t, f.remover.ids)

	f.sched.Advance(10 * time.Second)

	assert.Empty(t, f.collection.Get())
	assert.Equal(t, []string{"ABC-123"}, f.remover.ids)
}

func TestPendingManager_StageRemove_ZeroGraceIsSynchronous(t *testing.T) {
	f := newPendingFixture(t, PendingConfig{AddGrace: 5 * time.Second})
	f.seed(testSig("ABC-123", "Data", "Sparking Site"))

	err := f.manager.StageRemove(context.Background(), "ABC-123")
	require.NoError(t, err)

	assert.Empty(t, f.collection.Get())
	assert.Equal(t, []string{"ABC-123"}, f.remover.ids)
	assert.Equal(t, 0, f.sched.Pending(), "no timer for a synchronous remove")
}

func TestPendingManager_StageRemove_UnknownID(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())

	err := f.manager.StageRemove(context.Background(), "missing")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestPendingManager_Undo_RestoresWithoutDispatch(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())
	f.seed(testSig("ABC-123", "Data", "Sparking Site"))
	require.NoError(t, f.manager.StageRemove(context.Background(), "ABC-123"))

	undone := f.manager.Undo("ABC-123")

	assert.True(t, undone)
	assert.Equal(t, entities.Confirmed, f.find(t, "ABC-123").Pending.State)

	// The finalize timer is gone; advancing past the deadline must not fire
	f.sched.Advance(time.Minute)
	assert.Empty(t, f.remover.ids)
	assert.Len(t, f.collection.Get(), 1)
}

func TestPendingManager_Undo_NothingPending(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())
	f.seed(testSig("ABC-123", "Data", "Sparking Site"))

	assert.False(t, f.manager.Undo("ABC-123"))
	assert.False(t, f.manager.Undo("missing"))
}

func TestPendingManager_RearmCancelsPriorTimer(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())

	f.manager.StageAdd(testSig("ABC-123", "", ""))
	f.manager.StageAdd(testSig("ABC-123", "Data", ""))

	assert.Equal(t, 1, f.sched.Pending(), "re-arming replaces the timer, never stacks")

	f.sched.Advance(5 * time.Second)
	assert.Equal(t, entities.Confirmed, f.find(t, "ABC-123").Pending.State)
}

func TestPendingManager_FinalizeRemove_RollsBackOnDispatchFailure(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())
	f.remover.err = pkgerrors.NewUnavailableError("map server connection")
	f.seed(testSig("ABC-123", "Data", "Sparking Site"))
	require.NoError(t, f.manager.StageRemove(context.Background(), "ABC-123"))

	f.sched.Advance(10 * time.Second)

	// The deletion did not take effect, so the entity comes back
	restored := f.find(t, "ABC-123")
	assert.Equal(t, entities.Confirmed, restored.Pending.State)
}

func TestPendingManager_MergeRefresh_NeverResurrectsPendingRemove(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())
	f.seed(
		testSig("ABC-123", "Data", "Sparking Site"),
		testSig("DEF-456", "Relic", "Ruined Outpost"),
	)
	require.NoError(t, f.manager.StageRemove(context.Background(), "ABC-123"))

	// A stale snapshot still lists the entity as alive
	f.manager.MergeRefresh([]entities.Signature{
		testSig("ABC-123", "Data", "Sparking Site"),
		testSig("DEF-456", "Relic", "Ruined Outpost"),
	})

	assert.Equal(t, entities.PendingRemove, f.find(t, "ABC-123").Pending.State)
	assert.Equal(t, entities.Confirmed, f.find(t, "DEF-456").Pending.State)
}

func TestPendingManager_MergeRefresh_KeepsOptimisticAdds(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())
	f.manager.StageAdd(testSig("NEW-001", "Data", "Fresh Site"))

	f.manager.MergeRefresh([]entities.Signature{
		testSig("DEF-456", "Relic", "Ruined Outpost"),
	})

	assert.Equal(t, []string{"DEF-456", "NEW-001"}, sigIDs(f.collection.Get()))
	assert.Equal(t, entities.PendingAdd, f.find(t, "NEW-001").Pending.State)
}

func TestPendingManager_Close_CancelsOutstandingTimers(t *testing.T) {
	f := newPendingFixture(t, defaultPendingConfig())
	f.seed(testSig("DEF-456", "Relic", "Ruined Outpost"))
	f.manager.StageAdd(testSig("ABC-123", "", ""))
	require.NoError(t, f.manager.StageRemove(context.Background(), "DEF-456"))

	f.manager.Close()

	assert.Equal(t, 0, f.sched.Pending())
	f.sched.Advance(time.Minute)
	assert.Empty(t, f.remover.ids)
}
