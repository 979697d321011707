//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"starmap/application/commands/bus"
	"starmap/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideScheduler,
	ProvideSettingsStore,
	ProvideRateLimiter,
	ProvideBridge,
	ProvideSessionConfig,
	ProvideSession,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(cfg *config.Config, caller bus.Caller) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
