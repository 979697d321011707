package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"starmap/domain/core/entities"
	pkgerrors "starmap/pkg/errors"
)

func TestCommandValidation(t *testing.T) {
	valid := []Command{
		AddSystemCommand{System: entities.System{ID: "J123456"}},
		UpdateSystemCommand{System: entities.System{ID: "J123456"}},
		RemoveSystemCommand{SystemID: "J123456"},
		AddConnectionCommand{Connection: entities.Connection{ID: "c1", Source: "a", Target: "b"}},
		RemoveConnectionCommand{ConnectionID: "c1"},
		UpdateSignaturesCommand{SystemID: "J123456", Removed: []string{"ABC-123"}},
		RemoveSignatureCommand{SystemID: "J123456", SignatureID: "ABC-123"},
		FetchSnapshotCommand{},
		FetchKillsCommand{SystemID: "J123456"},
	}
	for _, cmd := range valid {
		assert.NoError(t, cmd.Validate(), "command %s", cmd.CommandType())
	}

	invalid := []Command{
		AddSystemCommand{},
		UpdateSystemCommand{},
		RemoveSystemCommand{},
		AddConnectionCommand{Connection: entities.Connection{ID: "c1"}},
		AddConnectionCommand{Connection: entities.Connection{Source: "a", Target: "b"}},
		RemoveConnectionCommand{},
		UpdateSignaturesCommand{SystemID: "J123456"},
		RemoveSignatureCommand{SystemID: "J123456"},
		FetchKillsCommand{},
	}
	for _, cmd := range invalid {
		err := cmd.Validate()
		assert.Error(t, err, "command %s", cmd.CommandType())
		assert.True(t, pkgerrors.IsValidation(err), "command %s", cmd.CommandType())
	}
}

func TestCommandTypesAreStable(t *testing.T) {
	assert.Equal(t, "system.add", AddSystemCommand{}.CommandType())
	assert.Equal(t, "system.remove", RemoveSystemCommand{}.CommandType())
	assert.Equal(t, "signatures.update", UpdateSignaturesCommand{}.CommandType())
	assert.Equal(t, "map.fetch", FetchSnapshotCommand{}.CommandType())
}
