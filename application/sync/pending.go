package sync

import (
	"context"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"starmap/domain/core/entities"
	pkgerrors "starmap/pkg/errors"
	"starmap/pkg/observability"
	"starmap/pkg/scheduler"
	"starmap/pkg/store"
)

// Pendable is the constraint for entities the pending manager tracks
type Pendable[T any] interface {
	entities.Keyed
	PendingInfo() entities.Pending
	WithPending(entities.Pending) T
}

// RemoveFunc dispatches a confirmed removal to the server. The manager
// calls it when a pending deletion finalizes.
type RemoveFunc func(ctx context.Context, id string) error

// PendingConfig holds the grace periods for optimistic transitions.
// A zero RemoveGrace means deletions dispatch synchronously with no
// pending phase.
type PendingConfig struct {
	AddGrace    time.Duration
	RemoveGrace time.Duration
}

// PendingManager tracks entities whose add or remove is locally asserted
// but not yet confirmed. Every armed timer is tracked by entity id;
// re-arming cancels the prior timer first, so duplicate finalization
// cannot happen. Close cancels everything outstanding.
type PendingManager[T Pendable[T]] struct {
	mu         stdsync.Mutex
	collection *store.Store[[]T]
	sched      scheduler.Scheduler
	tasks      map[string]scheduler.Task
	remove     RemoveFunc
	cfg        PendingConfig
	metrics    *observability.Metrics
	logger     *zap.Logger
	closed     bool
}

// NewPendingManager creates a manager over the given collection
func NewPendingManager[T Pendable[T]](
	collection *store.Store[[]T],
	sched scheduler.Scheduler,
	remove RemoveFunc,
	cfg PendingConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PendingManager[T] {
	return &PendingManager[T]{
		collection: collection,
		sched:      sched,
		tasks:      make(map[string]scheduler.Task),
		remove:     remove,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// StageAdd inserts the entity immediately with a pendingAdd marker and
// arms the grace timer. When the timer fires the marker clears and the
// entity becomes ordinary confirmed state.
func (m *PendingManager[T]) StageAdd(item T) {
	id := item.Key()
	deadline := m.sched.Now().Add(m.cfg.AddGrace)
	staged := item.WithPending(entities.Pending{State: entities.PendingAdd, Until: deadline})

	m.collection.Update(func(items []T) []T {
		return upsert(items, staged)
	})

	m.arm(id, m.cfg.AddGrace, func() {
		m.finalizeAdd(id)
	})

	m.logger.Debug("staged optimistic add",
		zap.String("id", id),
		zap.Time("deadline", deadline),
	)
}

// Confirm applies the server's canonical state for an entity. The
// confirmed payload supersedes the optimistic one, but a pendingAdd
// marker is left to expire naturally (the clear is idempotent).
func (m *PendingManager[T]) Confirm(item T) {
	m.collection.Update(func(items []T) []T {
		for i, existing := range items {
			if existing.Key() == item.Key() {
				updated := append([]T{}, items...)
				updated[i] = item.WithPending(existing.PendingInfo())
				return updated
			}
		}
		return upsert(items, item)
	})
}

// StageRemove flags the entity pendingRemove and arms the finalize
// timer. With a zero grace period there is no pending phase: the remove
// dispatches synchronously and the entity is stripped on success.
func (m *PendingManager[T]) StageRemove(ctx context.Context, id string) error {
	if !m.contains(id) {
		return pkgerrors.NewNotFoundError("entity")
	}

	if m.cfg.RemoveGrace <= 0 {
		if err := m.remove(ctx, id); err != nil {
			return pkgerrors.Wrap(err, "remove dispatch failed")
		}
		m.strip(id)
		return nil
	}

	deadline := m.sched.Now().Add(m.cfg.RemoveGrace)
	m.setPending(id, entities.Pending{State: entities.PendingRemove, Until: deadline})

	m.arm(id, m.cfg.RemoveGrace, func() {
		m.finalizeRemove(id)
	})

	m.logger.Debug("staged optimistic remove",
		zap.String("id", id),
		zap.Time("deadline", deadline),
	)
	return nil
}

// Undo cancels a pending deletion before its deadline and restores the
// entity to confirmed without contacting the server. It reports whether
// anything was undone.
func (m *PendingManager[T]) Undo(id string) bool {
	found := false
	for _, item := range m.collection.Get() {
		if item.Key() == id && item.PendingInfo().State == entities.PendingRemove {
			found = true
			break
		}
	}
	if !found {
		return false
	}

	m.disarm(id)
	m.setPending(id, entities.ConfirmedPending())

	m.logger.Debug("undid pending remove", zap.String("id", id))
	return true
}

// MergeRefresh replaces the collection with a fresh authoritative
// snapshot, except that entities currently pending deletion keep their
// local state (a stale snapshot must not resurrect them) and optimistic
// adds the server does not know yet survive at the end.
func (m *PendingManager[T]) MergeRefresh(fresh []T) {
	m.collection.Update(func(items []T) []T {
		pendingRemove := make(map[string]T)
		var pendingAdds []T
		seen := make(map[string]bool, len(fresh))

		for _, item := range fresh {
			seen[item.Key()] = true
		}
		for _, item := range items {
			switch item.PendingInfo().State {
			case entities.PendingRemove:
				pendingRemove[item.Key()] = item
			case entities.PendingAdd:
				if !seen[item.Key()] {
					pendingAdds = append(pendingAdds, item)
				}
			}
		}

		merged := make([]T, 0, len(fresh)+len(pendingAdds))
		for _, item := range fresh {
			if local, ok := pendingRemove[item.Key()]; ok {
				merged = append(merged, local)
				continue
			}
			merged = append(merged, item)
		}
		return append(merged, pendingAdds...)
	})
}

// Close cancels every outstanding timer. Called on view teardown so no
// finalize callback fires against a discarded collection.
func (m *PendingManager[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for id, task := range m.tasks {
		if task.Cancel() && m.metrics != nil {
			m.metrics.PendingTimers.Dec()
		}
		delete(m.tasks, id)
	}
}

// finalizeAdd clears a pendingAdd marker once the grace period elapses.
// A no-op if the entity is gone or already confirmed.
func (m *PendingManager[T]) finalizeAdd(id string) {
	m.dropTask(id)

	m.collection.Update(func(items []T) []T {
		for i, item := range items {
			if item.Key() == id && item.PendingInfo().State == entities.PendingAdd {
				updated := append([]T{}, items...)
				updated[i] = item.WithPending(entities.ConfirmedPending())
				return updated
			}
		}
		return items
	})
}

// finalizeRemove dispatches the deletion and strips the entity. A failed
// dispatch rolls the entity back to confirmed, since the deletion did
// not take effect.
func (m *PendingManager[T]) finalizeRemove(id string) {
	m.dropTask(id)

	if !m.contains(id) {
		return
	}

	if err := m.remove(context.Background(), id); err != nil {
		m.logger.Warn("pending remove finalization failed, rolling back",
			zap.String("id", id),
			zap.Error(err),
		)
		m.setPending(id, entities.ConfirmedPending())
		return
	}

	m.strip(id)
}

// arm cancels any prior timer for the id and schedules a new one
func (m *PendingManager[T]) arm(id string, d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if prior, ok := m.tasks[id]; ok {
		if prior.Cancel() && m.metrics != nil {
			m.metrics.PendingTimers.Dec()
		}
	}
	m.tasks[id] = m.sched.Schedule(d, fn)
	if m.metrics != nil {
		m.metrics.PendingTimers.Inc()
	}
}

// disarm cancels and forgets the timer for the id, if any
func (m *PendingManager[T]) disarm(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[id]; ok {
		if task.Cancel() && m.metrics != nil {
			m.metrics.PendingTimers.Dec()
		}
		delete(m.tasks, id)
	}
}

// dropTask forgets a fired timer's record
func (m *PendingManager[T]) dropTask(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; ok {
		delete(m.tasks, id)
		if m.metrics != nil {
			m.metrics.PendingTimers.Dec()
		}
	}
}

func (m *PendingManager[T]) contains(id string) bool {
	for _, item := range m.collection.Get() {
		if item.Key() == id {
			return true
		}
	}
	return false
}

func (m *PendingManager[T]) setPending(id string, p entities.Pending) {
	m.collection.Update(func(items []T) []T {
		for i, item := range items {
			if item.Key() == id {
				updated := append([]T{}, items...)
				updated[i] = item.WithPending(p)
				return updated
			}
		}
		return items
	})
}

func (m *PendingManager[T]) strip(id string) {
	m.collection.Update(func(items []T) []T {
		result := make([]T, 0, len(items))
		for _, item := range items {
			if item.Key() != id {
				result = append(result, item)
			}
		}
		return result
	})
}

func upsert[T Pendable[T]](items []T, item T) []T {
	for i, existing := range items {
		if existing.Key() == item.Key() {
			updated := append([]T{}, items...)
			updated[i] = item
			return updated
		}
	}
	return append(append([]T{}, items...), item)
}
