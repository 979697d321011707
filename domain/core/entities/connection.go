package entities

import "time"

// MassStatus tracks how much of a wormhole's mass budget is spent
type MassStatus string

const (
	MassFresh    MassStatus = "fresh"
	MassReduced  MassStatus = "reduced"
	MassCritical MassStatus = "critical"
)

// TimeStatus tracks a wormhole's remaining lifetime
type TimeStatus string

const (
	TimeStable    TimeStatus = "stable"
	TimeEndOfLife TimeStatus = "eol"
)

// Connection is an edge on the map between two systems
type Connection struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	Target       string     `json:"target"`
	Mass         MassStatus `json:"mass,omitempty"`
	Time         TimeStatus `json:"time,omitempty"`
	ShipSize     ShipSize   `json:"ship_size,omitempty"`
	WormholeType string     `json:"wormhole_type,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Selected bool `json:"-"`

	// Optimistic state, local-only
	Pending Pending `json:"-"`
}

// Key returns the connection's collection key
func (c Connection) Key() string {
	return c.ID
}

// WithField folds a field update into a copy of the connection.
// Only selection applies to edges; the rest are no-ops.
func (c Connection) WithField(update FieldUpdate) Connection {
	if u, ok := update.(SelectUpdate); ok {
		c.Selected = u.Selected
	}
	return c
}

// PendingInfo returns the connection's optimistic state
func (c Connection) PendingInfo() Pending {
	return c.Pending
}

// WithPending returns a copy carrying the given optimistic state
func (c Connection) WithPending(p Pending) Connection {
	c.Pending = p
	return c
}

// Links reports whether the connection touches the given system
func (c Connection) Links(systemID string) bool {
	return c.Source == systemID || c.Target == systemID
}
