package entities

import (
	"strings"
	"time"
)

const (
	// FullScanIDLength is the length of a fully-resolved sensor
	// identifier, e.g. "ABC-123". Shorter identifiers are partial
	// readings that a later scan may upgrade.
	FullScanIDLength = 7

	// UnknownName is the sentinel the sensor reports for entries it has
	// classified but not yet resolved to a meaningful name
	UnknownName = "Unknown"
)

// ScanRecord holds the fields the reconciliation engine merges.
// Signature and Structure both embed it.
type ScanRecord struct {
	ID          string         `json:"id"`
	Group       string         `json:"group,omitempty"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Custom      map[string]any `json:"custom,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Rank is the record's information rank: 0 when the classification is
// entirely unknown, 1 when classified but unnamed (or carrying the
// "Unknown" placeholder), 2 when classified and meaningfully named.
// An incoming record may only overwrite classification and name when
// its rank is strictly higher.
func (r ScanRecord) Rank() int {
	if r.Group == "" {
		return 0
	}
	if r.Name == "" || strings.EqualFold(r.Name, UnknownName) {
		return 1
	}
	return 2
}

// Partial reports whether the identifier is a truncated reading
func (r ScanRecord) Partial() bool {
	return len(r.ID) < FullScanIDLength
}

// Signature is a scan result tied to a system
type Signature struct {
	ScanRecord
	SystemID string `json:"system_id"`

	// Optimistic state, local-only
	Pending Pending `json:"-"`
}

// Key returns the signature's collection key
func (s Signature) Key() string {
	return s.ID
}

// Record returns the mergeable fields
func (s Signature) Record() ScanRecord {
	return s.ScanRecord
}

// WithRecord returns a copy carrying the merged fields
func (s Signature) WithRecord(r ScanRecord) Signature {
	s.ScanRecord = r
	return s
}

// PendingInfo returns the signature's optimistic state
func (s Signature) PendingInfo() Pending {
	return s.Pending
}

// WithPending returns a copy carrying the given optimistic state
func (s Signature) WithPending(p Pending) Signature {
	s.Pending = p
	return s
}

// Structure is a scanned installation in a system. It reconciles under
// the same rules as signatures.
type Structure struct {
	ScanRecord
	SystemID string `json:"system_id"`
	TypeID   string `json:"type_id,omitempty"`

	// Optimistic state, local-only
	Pending Pending `json:"-"`
}

// Key returns the structure's collection key
func (s Structure) Key() string {
	return s.ID
}

// Record returns the mergeable fields
func (s Structure) Record() ScanRecord {
	return s.ScanRecord
}

// WithRecord returns a copy carrying the merged fields
func (s Structure) WithRecord(r ScanRecord) Structure {
	s.ScanRecord = r
	return s
}

// PendingInfo returns the structure's optimistic state
func (s Structure) PendingInfo() Pending {
	return s.Pending
}

// WithPending returns a copy carrying the given optimistic state
func (s Structure) WithPending(p Pending) Structure {
	s.Pending = p
	return s
}
