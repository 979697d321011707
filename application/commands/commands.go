package commands

import (
	"encoding/json"

	"starmap/domain/core/entities"
)

// Command is a mutation intent sent to the server. The set of commands
// is closed; each names its wire type and validates itself before
// dispatch.
type Command interface {
	CommandType() string
	Validate() error
}

// Command wire types
const (
	TypeAddSystem        = "system.add"
	TypeUpdateSystem     = "system.update"
	TypeRemoveSystem     = "system.remove"
	TypeAddConnection    = "connection.add"
	TypeRemoveConnection = "connection.remove"
	TypeUpdateSignatures = "signatures.update"
	TypeRemoveSignature  = "signature.remove"
	TypeFetchSnapshot    = "map.fetch"
	TypeFetchKills       = "kills.fetch"
)

// AddSystemCommand places a new system on the map
type AddSystemCommand struct {
	System entities.System `json:"system" validate:"required"`
}

// UpdateSystemCommand pushes edited system attributes
type UpdateSystemCommand struct {
	System entities.System `json:"system" validate:"required"`
}

// RemoveSystemCommand deletes a system from the map
type RemoveSystemCommand struct {
	SystemID string `json:"system_id" validate:"required"`
}

// AddConnectionCommand links two systems
type AddConnectionCommand struct {
	Connection entities.Connection `json:"connection" validate:"required"`
}

// RemoveConnectionCommand deletes a connection
type RemoveConnectionCommand struct {
	ConnectionID string `json:"connection_id" validate:"required"`
}

// UpdateSignaturesCommand pushes a reconciled signature delta for one
// system
type UpdateSignaturesCommand struct {
	SystemID string               `json:"system_id" validate:"required"`
	Added    []entities.Signature `json:"added,omitempty"`
	Updated  []entities.Signature `json:"updated,omitempty"`
	Removed  []string             `json:"removed,omitempty"`
}

// RemoveSignatureCommand deletes a single signature
type RemoveSignatureCommand struct {
	SystemID    string `json:"system_id" validate:"required"`
	SignatureID string `json:"signature_id" validate:"required"`
}

// FetchSnapshotCommand requests a fresh full-state snapshot
type FetchSnapshotCommand struct{}

// FetchKillsCommand requests the kill feed for one system
type FetchKillsCommand struct {
	SystemID string `json:"system_id" validate:"required"`
}

func (AddSystemCommand) CommandType() string        { return TypeAddSystem }
func (UpdateSystemCommand) CommandType() string     { return TypeUpdateSystem }
func (RemoveSystemCommand) CommandType() string     { return TypeRemoveSystem }
func (AddConnectionCommand) CommandType() string    { return TypeAddConnection }
func (RemoveConnectionCommand) CommandType() string { return TypeRemoveConnection }
func (UpdateSignaturesCommand) CommandType() string { return TypeUpdateSignatures }
func (RemoveSignatureCommand) CommandType() string  { return TypeRemoveSignature }
func (FetchSnapshotCommand) CommandType() string    { return TypeFetchSnapshot }
func (FetchKillsCommand) CommandType() string       { return TypeFetchKills }

// Response carries the server's echoed canonical state. Only the fields
// relevant to the command are populated; the session applies whatever is
// present, superseding optimistic payloads.
type Response struct {
	System     *entities.System     `json:"system,omitempty"`
	Connection *entities.Connection `json:"connection,omitempty"`
	Signatures []entities.Signature `json:"signatures,omitempty"`
	Structures []entities.Structure `json:"structures,omitempty"`
	Kills      []entities.KillEntry `json:"kills,omitempty"`
	Snapshot   json.RawMessage      `json:"snapshot,omitempty"`
}
