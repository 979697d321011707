package commands

import (
	"github.com/go-playground/validator/v10"

	pkgerrors "starmap/pkg/errors"
)

var validate = validator.New()

func structError(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.NewValidationError(err.Error())
}

// Validate checks the command before dispatch
func (c AddSystemCommand) Validate() error {
	if c.System.ID == "" {
		return pkgerrors.NewValidationError("system id cannot be empty")
	}
	return structError(validate.Struct(c))
}

// Validate checks the command before dispatch
func (c UpdateSystemCommand) Validate() error {
	if c.System.ID == "" {
		return pkgerrors.NewValidationError("system id cannot be empty")
	}
	return structError(validate.Struct(c))
}

// Validate checks the command before dispatch
func (c RemoveSystemCommand) Validate() error {
	return structError(validate.Struct(c))
}

// Validate checks the command before dispatch
func (c AddConnectionCommand) Validate() error {
	if c.Connection.ID == "" {
		return pkgerrors.NewValidationError("connection id cannot be empty")
	}
	if c.Connection.Source == "" || c.Connection.Target == "" {
		return pkgerrors.NewValidationError("connection must link two systems")
	}
	return structError(validate.Struct(c))
}

// Validate checks the command before dispatch
func (c RemoveConnectionCommand) Validate() error {
	return structError(validate.Struct(c))
}

// Validate checks the command before dispatch
func (c UpdateSignaturesCommand) Validate() error {
	if len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0 {
		return pkgerrors.NewValidationError("signature delta is empty")
	}
	return structError(validate.Struct(c))
}

// Validate checks the command before dispatch
func (c RemoveSignatureCommand) Validate() error {
	return structError(validate.Struct(c))
}

// Validate checks the command before dispatch
func (c FetchSnapshotCommand) Validate() error {
	return nil
}

// Validate checks the command before dispatch
func (c FetchKillsCommand) Validate() error {
	return structError(validate.Struct(c))
}
