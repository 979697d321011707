package bus

import (
	"context"
	"encoding/json"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"starmap/application/commands"
	"starmap/pkg/auth"
	pkgerrors "starmap/pkg/errors"
	"starmap/pkg/observability"
)

// Caller is the transport-level request/response primitive the bridge
// dispatches through
type Caller interface {
	Call(ctx context.Context, req Request) (json.RawMessage, error)
}

// Request is the outbound wire shape of a command
type Request struct {
	RequestID string      `json:"request_id"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
}

// wireResponse is the envelope the server answers with. A populated
// error field marks a rejection; rate-limit rejections carry a cooldown
// in seconds.
type wireResponse struct {
	Error    string          `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
	Cooldown int             `json:"cooldown,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Bridge funnels every mutation intent to the server: it validates the
// command, throttles, sends through a circuit breaker, and decodes the
// echoed canonical state. Failures surface to the caller; the bridge
// itself never touches collections.
type Bridge struct {
	caller  Caller
	breaker *gobreaker.CircuitBreaker
	limiter auth.RateLimiter
	metrics *observability.Metrics
	logger  *zap.Logger

	mu            stdsync.Mutex
	cooldownUntil time.Time
}

// NewBridge creates a command bridge over the given transport caller
func NewBridge(caller Caller, limiter auth.RateLimiter, metrics *observability.Metrics, logger *zap.Logger) *Bridge {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "command-bridge",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Bridge{
		caller:  caller,
		breaker: breaker,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// Send dispatches a command and returns the server's echoed canonical
// state. A rate-limited server answer arms a local cooldown; sends
// before it elapses fail fast without touching the wire.
func (b *Bridge) Send(ctx context.Context, cmd commands.Command) (commands.Response, error) {
	var resp commands.Response

	if err := cmd.Validate(); err != nil {
		return resp, pkgerrors.Wrap(err, "command validation failed")
	}

	if remaining, active := b.activeCooldown(); active {
		return resp, pkgerrors.NewRateLimitError(remaining)
	}

	if b.limiter != nil {
		allowed, err := b.limiter.Allow(ctx, cmd.CommandType())
		if err == nil && !allowed {
			return resp, pkgerrors.NewRateLimitError(time.Second)
		}
	}

	req := Request{
		RequestID: uuid.New().String(),
		Type:      cmd.CommandType(),
		Data:      cmd,
	}

	b.metrics.CommandsSent.WithLabelValues(cmd.CommandType()).Inc()
	started := time.Now()

	raw, err := b.breaker.Execute(func() (interface{}, error) {
		return b.caller.Call(ctx, req)
	})
	b.metrics.CommandDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		b.metrics.CommandFailures.WithLabelValues(cmd.CommandType()).Inc()
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return resp, pkgerrors.NewUnavailableError("command bridge")
		}
		return resp, pkgerrors.NewTransportError("command dispatch failed", err)
	}

	payload, _ := raw.(json.RawMessage)
	decoded, err := b.decode(cmd, payload)
	if err != nil {
		b.metrics.CommandFailures.WithLabelValues(cmd.CommandType()).Inc()
		return resp, err
	}
	return decoded, nil
}

// decode interprets the server envelope: rejection payloads become typed
// errors, anything else decodes into the canonical response
func (b *Bridge) decode(cmd commands.Command, payload json.RawMessage) (commands.Response, error) {
	var resp commands.Response
	if len(payload) == 0 {
		return resp, nil
	}

	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return resp, pkgerrors.NewTransportError("malformed command response", err)
	}

	if wire.Error != "" {
		if wire.Cooldown > 0 {
			cooldown := time.Duration(wire.Cooldown) * time.Second
			b.armCooldown(cooldown)
			b.logger.Warn("server rate limited command",
				zap.String("type", cmd.CommandType()),
				zap.Duration("cooldown", cooldown),
			)
			return resp, pkgerrors.NewRateLimitError(cooldown)
		}
		return resp, pkgerrors.NewRemoteError(wire.Error, wire.Message)
	}

	if len(wire.Data) > 0 {
		if err := json.Unmarshal(wire.Data, &resp); err != nil {
			return resp, pkgerrors.NewTransportError("malformed canonical state in response", err)
		}
	}
	return resp, nil
}

func (b *Bridge) armCooldown(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(b.cooldownUntil) {
		b.cooldownUntil = until
	}
}

func (b *Bridge) activeCooldown() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := time.Until(b.cooldownUntil)
	return remaining, remaining > 0
}
