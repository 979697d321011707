package entities

import "time"

// ShipSize classifies the largest hull a system or connection admits
type ShipSize string

const (
	ShipSizeSmall   ShipSize = "small"
	ShipSizeMedium  ShipSize = "medium"
	ShipSizeLarge   ShipSize = "large"
	ShipSizeCapital ShipSize = "capital"
)

// SystemStatus is the user-assigned status of a mapped system
type SystemStatus string

const (
	StatusUnknown  SystemStatus = "unknown"
	StatusFriendly SystemStatus = "friendly"
	StatusHostile  SystemStatus = "hostile"
	StatusOccupied SystemStatus = "occupied"
	StatusEmpty    SystemStatus = "empty"
)

// System is a node on the map: a mapped location plus its view state.
// Systems have value semantics; the patch engine copies before mutating
// so untouched entries keep reference identity for memoized consumers.
type System struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Alias       string         `json:"alias,omitempty"`
	Position    Position       `json:"position"`
	Dimensions  Dimensions     `json:"dimensions,omitempty"`
	ShipSize    ShipSize       `json:"ship_size,omitempty"`
	Status      SystemStatus   `json:"status,omitempty"`
	Locked      bool           `json:"locked,omitempty"`
	Labels      []string       `json:"labels,omitempty"`
	Description string         `json:"description,omitempty"`
	Custom      map[string]any `json:"custom,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// View flags toggled by field updates, never sent to the server
	Selected bool `json:"-"`
	Dragging bool `json:"-"`
	Resizing bool `json:"-"`

	// Optimistic state, local-only
	Pending Pending `json:"-"`
}

// Key returns the system's collection key
func (s System) Key() string {
	return s.ID
}

// WithField folds a field update into a copy of the system.
// Unrecognized updates are no-ops.
func (s System) WithField(update FieldUpdate) System {
	switch u := update.(type) {
	case SelectUpdate:
		s.Selected = u.Selected
	case PositionUpdate:
		s.Position = u.Position
		s.Dragging = u.Dragging
	case DimensionsUpdate:
		s.Dimensions = u.Dimensions
		s.Resizing = u.Resizing
	}
	return s
}

// PendingInfo returns the system's optimistic state
func (s System) PendingInfo() Pending {
	return s.Pending
}

// WithPending returns a copy carrying the given optimistic state
func (s System) WithPending(p Pending) System {
	s.Pending = p
	return s
}

// DisplayName prefers the user-assigned alias over the server name
func (s System) DisplayName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}
