package events

import (
	"encoding/json"
	"fmt"

	"starmap/domain/core/entities"
	pkgerrors "starmap/pkg/errors"
)

// Event is the closed union of push events the server can deliver.
// Each event names itself; payload shapes are fixed per name, which
// removes the "unexpected response shape" checks an untyped payload
// would need.
type Event interface {
	EventName() string
}

// Event names form a closed set. Anything else is malformed and dropped.
const (
	NameMapSnapshot       = "map.snapshot"
	NameSystemAdded       = "system.added"
	NameSystemUpdated     = "system.updated"
	NameSystemRemoved     = "system.removed"
	NameConnectionAdded   = "connection.added"
	NameConnectionUpdated = "connection.updated"
	NameConnectionRemoved = "connection.removed"
	NameSignaturesUpdated = "signatures.updated"
	NameStructuresUpdated = "structures.updated"
	NameKillsUpdated      = "kills.updated"
)

// Envelope is the wire shape of a push event
type Envelope struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// MapSnapshot is the full-state init event. It fully replaces the local
// collections (reset semantics).
type MapSnapshot struct {
	Systems     []entities.System     `json:"systems"`
	Connections []entities.Connection `json:"connections"`
	Signatures  []entities.Signature  `json:"signatures"`
	Structures  []entities.Structure  `json:"structures"`
}

// SystemAdded announces a new system on the map
type SystemAdded struct {
	System entities.System `json:"system"`
	Index  *int            `json:"index,omitempty"`
}

// SystemUpdated replaces a system's authoritative state
type SystemUpdated struct {
	System entities.System `json:"system"`
}

// SystemRemoved announces a system leaving the map
type SystemRemoved struct {
	ID string `json:"id"`
}

// ConnectionAdded announces a new connection
type ConnectionAdded struct {
	Connection entities.Connection `json:"connection"`
}

// ConnectionUpdated replaces a connection's authoritative state
type ConnectionUpdated struct {
	Connection entities.Connection `json:"connection"`
}

// ConnectionRemoved announces a connection leaving the map
type ConnectionRemoved struct {
	ID string `json:"id"`
}

// SignaturesUpdated carries the authoritative signature snapshot for one
// system; the session reconciles it against the local list
type SignaturesUpdated struct {
	SystemID   string               `json:"system_id"`
	Signatures []entities.Signature `json:"signatures"`
}

// StructuresUpdated carries the authoritative structure snapshot for one
// system
type StructuresUpdated struct {
	SystemID   string               `json:"system_id"`
	Structures []entities.Structure `json:"structures"`
}

// KillsUpdated carries the kill feed for one system
type KillsUpdated struct {
	SystemID string               `json:"system_id"`
	Kills    []entities.KillEntry `json:"kills"`
}

func (MapSnapshot) EventName() string       { return NameMapSnapshot }
func (SystemAdded) EventName() string       { return NameSystemAdded }
func (SystemUpdated) EventName() string     { return NameSystemUpdated }
func (SystemRemoved) EventName() string     { return NameSystemRemoved }
func (ConnectionAdded) EventName() string   { return NameConnectionAdded }
func (ConnectionUpdated) EventName() string { return NameConnectionUpdated }
func (ConnectionRemoved) EventName() string { return NameConnectionRemoved }
func (SignaturesUpdated) EventName() string { return NameSignaturesUpdated }
func (StructuresUpdated) EventName() string { return NameStructuresUpdated }
func (KillsUpdated) EventName() string      { return NameKillsUpdated }

// Decode parses a raw frame into a typed event. Malformed frames return
// an error; callers log and drop them without touching collections.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, pkgerrors.NewValidationError("malformed event frame").WithCause(err)
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope parses an already-split envelope into a typed event
func DecodeEnvelope(env Envelope) (Event, error) {
	if env.Name == "" {
		return nil, pkgerrors.NewValidationError("event frame has no name")
	}

	var (
		evt Event
		err error
	)

	switch env.Name {
	case NameMapSnapshot:
		evt, err = decodeAs[MapSnapshot](env.Data)
	case NameSystemAdded:
		evt, err = decodeAs[SystemAdded](env.Data)
	case NameSystemUpdated:
		evt, err = decodeAs[SystemUpdated](env.Data)
	case NameSystemRemoved:
		evt, err = decodeAs[SystemRemoved](env.Data)
	case NameConnectionAdded:
		evt, err = decodeAs[ConnectionAdded](env.Data)
	case NameConnectionUpdated:
		evt, err = decodeAs[ConnectionUpdated](env.Data)
	case NameConnectionRemoved:
		evt, err = decodeAs[ConnectionRemoved](env.Data)
	case NameSignaturesUpdated:
		evt, err = decodeAs[SignaturesUpdated](env.Data)
	case NameStructuresUpdated:
		evt, err = decodeAs[StructuresUpdated](env.Data)
	case NameKillsUpdated:
		evt, err = decodeAs[KillsUpdated](env.Data)
	default:
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown event name %q", env.Name))
	}

	if err != nil {
		return nil, err
	}
	return evt, nil
}

func decodeAs[T Event](data json.RawMessage) (Event, error) {
	var evt T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, pkgerrors.NewValidationError(
				fmt.Sprintf("malformed %q payload", evt.EventName())).WithCause(err)
		}
	}
	return evt, nil
}
