package entities

import "time"

// KillEntry is a read-only kill-feed record for a system
type KillEntry struct {
	ID       string    `json:"id"`
	SystemID string    `json:"system_id"`
	ShipType string    `json:"ship_type,omitempty"`
	Victim   string    `json:"victim,omitempty"`
	Value    float64   `json:"value,omitempty"`
	NPC      bool      `json:"npc,omitempty"`
	Time     time.Time `json:"time"`
}

// Key returns the kill entry's collection key
func (k KillEntry) Key() string {
	return k.ID
}
