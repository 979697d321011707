package di

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"starmap/application/commands/bus"
	"starmap/application/session"
	"starmap/application/sync"
	"starmap/infrastructure/config"
	"starmap/infrastructure/persistence/local"
	"starmap/pkg/auth"
	"starmap/pkg/observability"
	"starmap/pkg/scheduler"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics
	Scheduler scheduler.Scheduler
	Settings  *local.Store
	Limiter   auth.RateLimiter
	Bridge    *bus.Bridge
	Session   *session.Session
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideRegistry creates the metrics registry
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates and registers the metric set
func ProvideMetrics(reg *prometheus.Registry) *observability.Metrics {
	return observability.NewMetrics(reg)
}

// ProvideScheduler creates the wall-clock scheduler
func ProvideScheduler() scheduler.Scheduler {
	return scheduler.New()
}

// ProvideSettingsStore opens the local settings database
func ProvideSettingsStore(cfg *config.Config, logger *zap.Logger) (*local.Store, error) {
	return local.Open(cfg.SettingsPath, logger.Named("settings"))
}

// ProvideRateLimiter creates the client-side command throttle
func ProvideRateLimiter(cfg *config.Config) auth.RateLimiter {
	return auth.NewTokenBucketLimiter(cfg.Tunables.CommandRateBurst, time.Second)
}

// ProvideBridge creates the command dispatch bridge
func ProvideBridge(
	caller bus.Caller,
	limiter auth.RateLimiter,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *bus.Bridge {
	return bus.NewBridge(caller, limiter, metrics, logger.Named("bridge"))
}

// ProvideSessionConfig builds the session tuning from the settings
// store, falling back to the config file's defaults
func ProvideSessionConfig(cfg *config.Config, settings *local.Store) (session.Config, error) {
	timings, err := settings.LoadTimings(local.Timings{
		AddGraceMS:    cfg.Tunables.AddGraceMS,
		RemoveGraceMS: cfg.Tunables.RemoveGraceMS,
	})
	if err != nil {
		return session.Config{}, err
	}

	pending := sync.PendingConfig{
		AddGrace:    time.Duration(timings.AddGraceMS) * time.Millisecond,
		RemoveGrace: time.Duration(timings.RemoveGraceMS) * time.Millisecond,
	}

	return session.Config{
		SystemPending:     pending,
		ConnectionPending: pending,
		SignaturePending:  pending,
	}, nil
}

// ProvideSession creates the synchronization session
func ProvideSession(
	bridge *bus.Bridge,
	sched scheduler.Scheduler,
	cfg session.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *session.Session {
	return session.New(bridge, sched, cfg, metrics, logger.Named("session"))
}
