package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"starmap/application/commands"
	"starmap/application/commands/bus"
	"starmap/application/stream"
	"starmap/application/sync"
	"starmap/domain/core/entities"
	"starmap/domain/events"
	pkgerrors "starmap/pkg/errors"
	"starmap/pkg/flight"
	"starmap/pkg/observability"
	"starmap/pkg/scheduler"
	"starmap/pkg/store"
)

const snapshotFlightKey = "snapshot"

// Config holds the session's optimistic-state tuning, sourced from the
// local settings store
type Config struct {
	SystemPending     sync.PendingConfig
	ConnectionPending sync.PendingConfig
	SignaturePending  sync.PendingConfig
}

// Session owns the canonical collections and runs the synchronization
// core: push events flow through the channel buffer into the diff and
// reconciliation engines, mutation intents flow out through the command
// bridge, and optimistic state is tracked per collection. Presentation
// reads the collections through their stores and never mutates them.
type Session struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	bridge  *bus.Bridge

	systems     *store.Store[[]entities.System]
	connections *store.Store[[]entities.Connection]
	signatures  *store.Store[[]entities.Signature]
	structures  *store.Store[[]entities.Structure]
	kills       *store.Store[[]entities.KillEntry]

	buffer             *stream.Buffer
	pendingSystems     *sync.PendingManager[entities.System]
	pendingConnections *sync.PendingManager[entities.Connection]
	pendingSignatures  *sync.PendingManager[entities.Signature]
	fetches            *flight.Group
}

// New creates a session over the given bridge and scheduler
func New(
	bridge *bus.Bridge,
	sched scheduler.Scheduler,
	cfg Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Session {
	s := &Session{
		logger:      logger,
		metrics:     metrics,
		bridge:      bridge,
		systems:     store.New([]entities.System{}),
		connections: store.New([]entities.Connection{}),
		signatures:  store.New([]entities.Signature{}),
		structures:  store.New([]entities.Structure{}),
		kills:       store.New([]entities.KillEntry{}),
		fetches:     flight.NewGroup(),
	}

	s.buffer = stream.NewBuffer(s.apply, s.Resync, logger.Named("buffer"))

	s.pendingSystems = sync.NewPendingManager(
		s.systems, sched,
		func(ctx context.Context, id string) error {
			_, err := bridge.Send(ctx, commands.RemoveSystemCommand{SystemID: id})
			return err
		},
		cfg.SystemPending, metrics, logger.Named("pending.systems"),
	)
	s.pendingConnections = sync.NewPendingManager(
		s.connections, sched,
		func(ctx context.Context, id string) error {
			_, err := bridge.Send(ctx, commands.RemoveConnectionCommand{ConnectionID: id})
			return err
		},
		cfg.ConnectionPending, metrics, logger.Named("pending.connections"),
	)
	s.pendingSignatures = sync.NewPendingManager(
		s.signatures, sched,
		func(ctx context.Context, id string) error {
			for _, sig := range s.signatures.Get() {
				if sig.ID == id {
					_, err := bridge.Send(ctx, commands.RemoveSignatureCommand{
						SystemID:    sig.SystemID,
						SignatureID: id,
					})
					return err
				}
			}
			return nil
		},
		cfg.SignaturePending, metrics, logger.Named("pending.signatures"),
	)

	return s
}

// Collection accessors for presentation (read-only by convention;
// all writes pass through the core)

// Systems returns the system collection store
func (s *Session) Systems() *store.Store[[]entities.System] { return s.systems }

// Connections returns the connection collection store
func (s *Session) Connections() *store.Store[[]entities.Connection] { return s.connections }

// Signatures returns the signature collection store
func (s *Session) Signatures() *store.Store[[]entities.Signature] { return s.signatures }

// Structures returns the structure collection store
func (s *Session) Structures() *store.Store[[]entities.Structure] { return s.structures }

// Kills returns the kill-feed collection store
func (s *Session) Kills() *store.Store[[]entities.KillEntry] { return s.kills }

// HandleFrame ingests a raw push frame from the transport. Malformed
// frames are logged and dropped; they never corrupt collections.
func (s *Session) HandleFrame(raw []byte) {
	evt, err := events.Decode(raw)
	if err != nil {
		s.metrics.EventsDropped.Inc()
		s.logger.Warn("dropping malformed push event", zap.Error(err))
		return
	}
	s.buffer.Publish(evt)
}

// HandleEvent ingests an already-decoded push event
func (s *Session) HandleEvent(evt events.Event) {
	s.buffer.Publish(evt)
}

// SetVisible gates event delivery on view visibility. Hiding the view
// suspends the buffer; showing it flushes and requests a resync.
func (s *Session) SetVisible(visible bool) {
	if visible {
		s.buffer.Resume()
	} else {
		s.buffer.Suspend()
	}
}

// Resync requests a fresh full-state snapshot through the bridge,
// single-flighted so repeated triggers coalesce
func (s *Session) Resync() {
	s.fetches.Trigger(snapshotFlightKey, func(ctx context.Context) {
		resp, err := s.bridge.Send(ctx, commands.FetchSnapshotCommand{})
		if err != nil {
			s.logger.Warn("snapshot fetch failed", zap.Error(err))
			return
		}
		if len(resp.Snapshot) == 0 {
			return
		}
		var snap events.MapSnapshot
		if err := json.Unmarshal(resp.Snapshot, &snap); err != nil {
			s.logger.Warn("malformed snapshot payload", zap.Error(err))
			return
		}
		s.applySnapshot(snap)
	})
}

// RefreshKills requests the kill feed for a system. Repeated triggers
// while a fetch is in flight coalesce into one trailing refetch.
func (s *Session) RefreshKills(systemID string) {
	s.fetches.Trigger("kills:"+systemID, func(ctx context.Context) {
		resp, err := s.bridge.Send(ctx, commands.FetchKillsCommand{SystemID: systemID})
		if err != nil {
			s.logger.Warn("kill feed fetch failed",
				zap.String("systemID", systemID),
				zap.Error(err),
			)
			return
		}
		s.setKills(systemID, resp.Kills)
	})
}

// AddSystem optimistically places a system and dispatches the add. On
// success the echoed canonical state supersedes the optimistic payload;
// on failure the optimistic entity stays visible for manual retry.
func (s *Session) AddSystem(ctx context.Context, system entities.System) error {
	s.pendingSystems.StageAdd(system)

	resp, err := s.bridge.Send(ctx, commands.AddSystemCommand{System: system})
	if err != nil {
		return pkgerrors.Wrap(err, "add system")
	}
	if resp.System != nil {
		s.pendingSystems.Confirm(*resp.System)
	}
	return nil
}

// UpdateSystem pushes edited system attributes and applies the echo
func (s *Session) UpdateSystem(ctx context.Context, system entities.System) error {
	resp, err := s.bridge.Send(ctx, commands.UpdateSystemCommand{System: system})
	if err != nil {
		return pkgerrors.Wrap(err, "update system")
	}
	if resp.System != nil {
		s.pendingSystems.Confirm(*resp.System)
	}
	return nil
}

// RemoveSystem optimistically removes a system. With a nonzero grace
// period the entity is only flagged until the deadline; Undo can still
// bring it back.
func (s *Session) RemoveSystem(ctx context.Context, id string) error {
	return s.pendingSystems.StageRemove(ctx, id)
}

// UndoRemoveSystem cancels a pending system removal
func (s *Session) UndoRemoveSystem(id string) bool {
	return s.pendingSystems.Undo(id)
}

// SelectSystem toggles a system's selection flag locally
func (s *Session) SelectSystem(id string, selected bool) {
	s.systems.Update(func(items []entities.System) []entities.System {
		return sync.ApplyChanges([]sync.Change[entities.System]{
			sync.Update[entities.System](id, entities.SelectUpdate{Selected: selected}),
		}, items)
	})
}

// MoveSystem updates a system's position locally (drag in progress)
func (s *Session) MoveSystem(id string, pos entities.Position, dragging bool) {
	s.systems.Update(func(items []entities.System) []entities.System {
		return sync.ApplyChanges([]sync.Change[entities.System]{
			sync.Update[entities.System](id, entities.PositionUpdate{Position: pos, Dragging: dragging}),
		}, items)
	})
}

// ResizeSystem updates a system's measured size locally
func (s *Session) ResizeSystem(id string, dim entities.Dimensions, resizing bool) {
	s.systems.Update(func(items []entities.System) []entities.System {
		return sync.ApplyChanges([]sync.Change[entities.System]{
			sync.Update[entities.System](id, entities.DimensionsUpdate{Dimensions: dim, Resizing: resizing}),
		}, items)
	})
}

// AddConnection optimistically links two systems
func (s *Session) AddConnection(ctx context.Context, conn entities.Connection) error {
	s.pendingConnections.StageAdd(conn)

	resp, err := s.bridge.Send(ctx, commands.AddConnectionCommand{Connection: conn})
	if err != nil {
		return pkgerrors.Wrap(err, "add connection")
	}
	if resp.Connection != nil {
		s.pendingConnections.Confirm(*resp.Connection)
	}
	return nil
}

// RemoveConnection optimistically removes a connection
func (s *Session) RemoveConnection(ctx context.Context, id string) error {
	return s.pendingConnections.StageRemove(ctx, id)
}

// UndoRemoveConnection cancels a pending connection removal
func (s *Session) UndoRemoveConnection(id string) bool {
	return s.pendingConnections.Undo(id)
}

// ImportSignatures reconciles a pasted scan against the local list for
// one system and dispatches the delta. Import passes never delete:
// entries missing from the paste survive.
func (s *Session) ImportSignatures(ctx context.Context, systemID string, pasted []entities.Signature) error {
	local := filterBySystem(s.signatures.Get(), systemID)
	delta := sync.Reconcile(local, pasted, sync.ReconcileOptions{
		UpdateOnly:    true,
		SkipUnchanged: true,
	})
	s.countReconcile(len(delta.Added), len(delta.Updated), len(delta.Removed))

	if len(delta.Added) == 0 && len(delta.Updated) == 0 && len(delta.Removed) == 0 {
		return nil
	}

	s.applySignatureDelta(systemID, delta)

	removed := make([]string, 0, len(delta.Removed))
	for _, sig := range delta.Removed {
		removed = append(removed, sig.ID)
	}
	resp, err := s.bridge.Send(ctx, commands.UpdateSignaturesCommand{
		SystemID: systemID,
		Added:    delta.Added,
		Updated:  delta.Updated,
		Removed:  removed,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "import signatures")
	}
	if resp.Signatures != nil {
		s.replaceSystemSignatures(systemID, resp.Signatures)
	}
	return nil
}

// RemoveSignature optimistically removes a signature
func (s *Session) RemoveSignature(ctx context.Context, id string) error {
	return s.pendingSignatures.StageRemove(ctx, id)
}

// UndoRemoveSignature cancels a pending signature removal
func (s *Session) UndoRemoveSignature(id string) bool {
	return s.pendingSignatures.Undo(id)
}

// Close cancels every outstanding timer and in-flight fetch. The
// session must not be used afterwards.
func (s *Session) Close() {
	s.pendingSystems.Close()
	s.pendingConnections.Close()
	s.pendingSignatures.Close()
	s.fetches.Close()
}

// apply folds one push event into the collections, in receipt order
func (s *Session) apply(evt events.Event) {
	s.metrics.EventsApplied.WithLabelValues(evt.EventName()).Inc()

	switch e := evt.(type) {
	case events.MapSnapshot:
		s.applySnapshot(e)

	case events.SystemAdded:
		change := sync.Add(e.System)
		if e.Index != nil {
			change = sync.AddAt(e.System, *e.Index)
		}
		s.systems.Update(func(items []entities.System) []entities.System {
			return sync.ApplyChanges([]sync.Change[entities.System]{change}, items)
		})

	case events.SystemUpdated:
		if s.pendingRemoveSystem(e.System.ID) {
			return // never resurrect a pending deletion from server state
		}
		s.pendingSystems.Confirm(e.System)

	case events.SystemRemoved:
		s.systems.Update(func(items []entities.System) []entities.System {
			return sync.ApplyChanges([]sync.Change[entities.System]{
				sync.Remove[entities.System](e.ID),
			}, items)
		})

	case events.ConnectionAdded:
		s.connections.Update(func(items []entities.Connection) []entities.Connection {
			return sync.ApplyChanges([]sync.Change[entities.Connection]{
				sync.Add(e.Connection),
			}, items)
		})

	case events.ConnectionUpdated:
		if s.pendingRemoveConnection(e.Connection.ID) {
			return
		}
		s.pendingConnections.Confirm(e.Connection)

	case events.ConnectionRemoved:
		s.connections.Update(func(items []entities.Connection) []entities.Connection {
			return sync.ApplyChanges([]sync.Change[entities.Connection]{
				sync.Remove[entities.Connection](e.ID),
			}, items)
		})

	case events.SignaturesUpdated:
		local := filterBySystem(s.signatures.Get(), e.SystemID)
		delta := sync.Reconcile(local, e.Signatures, sync.ReconcileOptions{SkipUnchanged: true})
		s.countReconcile(len(delta.Added), len(delta.Updated), len(delta.Removed))
		s.applySignatureDelta(e.SystemID, delta)

	case events.StructuresUpdated:
		local := filterStructures(s.structures.Get(), e.SystemID)
		delta := sync.Reconcile(local, e.Structures, sync.ReconcileOptions{SkipUnchanged: true})
		s.countReconcile(len(delta.Added), len(delta.Updated), len(delta.Removed))
		s.applyStructureDelta(e.SystemID, delta)

	case events.KillsUpdated:
		s.setKills(e.SystemID, e.Kills)
	}
}

// applySnapshot fully replaces the collections (reset semantics),
// honoring pending-deletion and optimistic-add entities
func (s *Session) applySnapshot(snap events.MapSnapshot) {
	s.pendingSystems.MergeRefresh(snap.Systems)
	s.pendingConnections.MergeRefresh(snap.Connections)
	s.pendingSignatures.MergeRefresh(snap.Signatures)
	s.structures.Set(snap.Structures)
}

// applySignatureDelta folds a reconciliation result into the signature
// collection, touching only the given system's entries. Entities pending
// deletion keep their local state.
func (s *Session) applySignatureDelta(systemID string, delta sync.ReconcileResult[entities.Signature]) {
	removed := make(map[string]bool, len(delta.Removed))
	for _, sig := range delta.Removed {
		removed[sig.ID] = true
	}
	updated := make(map[string]entities.Signature, len(delta.Updated))
	for _, sig := range delta.Updated {
		updated[sig.ID] = sig
	}

	s.signatures.Update(func(items []entities.Signature) []entities.Signature {
		result := make([]entities.Signature, 0, len(items)+len(delta.Added))
		for _, sig := range items {
			if sig.SystemID != systemID {
				result = append(result, sig)
				continue
			}
			if sig.Pending.State == entities.PendingRemove {
				result = append(result, sig)
				continue
			}
			if removed[sig.ID] {
				continue
			}
			if merged, ok := updated[sig.ID]; ok {
				result = append(result, merged)
				continue
			}
			result = append(result, sig)
		}
		for _, sig := range delta.Added {
			if sig.SystemID == "" {
				sig.SystemID = systemID
			}
			result = append(result, sig)
		}
		return result
	})
}

// applyStructureDelta folds a reconciliation result into the structure
// collection for one system
func (s *Session) applyStructureDelta(systemID string, delta sync.ReconcileResult[entities.Structure]) {
	removed := make(map[string]bool, len(delta.Removed))
	for _, st := range delta.Removed {
		removed[st.ID] = true
	}
	updated := make(map[string]entities.Structure, len(delta.Updated))
	for _, st := range delta.Updated {
		updated[st.ID] = st
	}

	s.structures.Update(func(items []entities.Structure) []entities.Structure {
		result := make([]entities.Structure, 0, len(items)+len(delta.Added))
		for _, st := range items {
			if st.SystemID != systemID {
				result = append(result, st)
				continue
			}
			if removed[st.ID] {
				continue
			}
			if merged, ok := updated[st.ID]; ok {
				result = append(result, merged)
				continue
			}
			result = append(result, st)
		}
		for _, st := range delta.Added {
			if st.SystemID == "" {
				st.SystemID = systemID
			}
			result = append(result, st)
		}
		return result
	})
}

// replaceSystemSignatures swaps in the server's canonical list for one
// system, preserving pending-deletion entries
func (s *Session) replaceSystemSignatures(systemID string, canonical []entities.Signature) {
	s.signatures.Update(func(items []entities.Signature) []entities.Signature {
		result := make([]entities.Signature, 0, len(items)+len(canonical))
		pendingRemove := make(map[string]entities.Signature)
		for _, sig := range items {
			if sig.SystemID != systemID {
				result = append(result, sig)
				continue
			}
			if sig.Pending.State == entities.PendingRemove {
				pendingRemove[sig.ID] = sig
			}
		}
		for _, sig := range canonical {
			if local, ok := pendingRemove[sig.ID]; ok {
				result = append(result, local)
				continue
			}
			if sig.SystemID == "" {
				sig.SystemID = systemID
			}
			result = append(result, sig)
		}
		return result
	})
}

func (s *Session) setKills(systemID string, kills []entities.KillEntry) {
	s.kills.Update(func(items []entities.KillEntry) []entities.KillEntry {
		result := make([]entities.KillEntry, 0, len(items)+len(kills))
		for _, k := range items {
			if k.SystemID != systemID {
				result = append(result, k)
			}
		}
		return append(result, kills...)
	})
}

func (s *Session) pendingRemoveSystem(id string) bool {
	for _, sys := range s.systems.Get() {
		if sys.ID == id {
			return sys.Pending.State == entities.PendingRemove
		}
	}
	return false
}

func (s *Session) pendingRemoveConnection(id string) bool {
	for _, conn := range s.connections.Get() {
		if conn.ID == id {
			return conn.Pending.State == entities.PendingRemove
		}
	}
	return false
}

func (s *Session) countReconcile(added, updated, removed int) {
	s.metrics.ReconcileResults.WithLabelValues("added").Add(float64(added))
	s.metrics.ReconcileResults.WithLabelValues("updated").Add(float64(updated))
	s.metrics.ReconcileResults.WithLabelValues("removed").Add(float64(removed))
}

func filterBySystem(sigs []entities.Signature, systemID string) []entities.Signature {
	var result []entities.Signature
	for _, sig := range sigs {
		if sig.SystemID == systemID {
			result = append(result, sig)
		}
	}
	return result
}

func filterStructures(sts []entities.Structure, systemID string) []entities.Structure {
	var result []entities.Structure
	for _, st := range sts {
		if st.SystemID == systemID {
			result = append(result, st)
		}
	}
	return result
}
