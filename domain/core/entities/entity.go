package entities

import "time"

// Keyed is implemented by every entity tracked in a collection.
// At most one entity per key exists in a collection at any instant.
type Keyed interface {
	Key() string
}

// PendingState marks an entity whose add or remove is locally asserted
// but not yet confirmed by the server. It is local-only and never
// serialized outbound.
type PendingState int

const (
	Confirmed PendingState = iota
	PendingAdd
	PendingRemove
)

// String returns a readable name for logging
func (s PendingState) String() string {
	switch s {
	case PendingAdd:
		return "pending_add"
	case PendingRemove:
		return "pending_remove"
	default:
		return "confirmed"
	}
}

// Pending carries an entity's optimistic state and its auto-resolve
// deadline. Until is zero while confirmed.
type Pending struct {
	State PendingState
	Until time.Time
}

// ConfirmedPending is the zero pending marker
func ConfirmedPending() Pending {
	return Pending{State: Confirmed}
}

// Position is a map coordinate pair
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	return p.X == other.X && p.Y == other.Y
}

// Dimensions is a measured widget size
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Equals checks if two dimension pairs are equal
func (d Dimensions) Equals(other Dimensions) bool {
	return d.Width == other.Width && d.Height == other.Height
}

// FieldUpdate is a closed union of in-place entity mutations carried by
// change records. Entities fold recognized updates and pass through the
// rest unchanged.
type FieldUpdate interface {
	isFieldUpdate()
}

// SelectUpdate toggles an entity's selection flag
type SelectUpdate struct {
	Selected bool
}

// PositionUpdate moves an entity and tracks whether a drag is in progress
type PositionUpdate struct {
	Position Position
	Dragging bool
}

// DimensionsUpdate records a measured size and whether a resize is in
// progress
type DimensionsUpdate struct {
	Dimensions Dimensions
	Resizing   bool
}

func (SelectUpdate) isFieldUpdate()     {}
func (PositionUpdate) isFieldUpdate()   {}
func (DimensionsUpdate) isFieldUpdate() {}
