package registry

import (
	"context"
	"time"

	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/telemetry"
	"github.com/yairfalse/vahti/types"
)

const (
	defaultHealthInterval = 60 * time.Second
	defaultHealthTimeout  = 10 * time.Second
)

// HealthChecker periodically probes registered connections and moves
// them between active and error based on the probe outcome. Inactive
// connections are administratively parked and never probed.
type HealthChecker struct {
	registry *Registry
	factory  connector.Factory
	interval time.Duration
	timeout  time.Duration
	logger   *telemetry.Logger
}

// NewHealthChecker builds a health loop over the registry. A zero
// interval or timeout falls back to the defaults.
func NewHealthChecker(r *Registry, factory connector.Factory, interval, timeout time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	return &HealthChecker{
		registry: r,
		factory:  factory,
		interval: interval,
		timeout:  timeout,
		logger:   telemetry.NewLogger("health-checker"),
	}
}

// Run probes until the context is cancelled. One sweep runs
// immediately, then every interval.
func (h *HealthChecker) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

// Sweep probes every non-inactive connection once. Probe failures move
// active connections to error; successful probes recover errored ones.
func (h *HealthChecker) Sweep(ctx context.Context) {
	conns, err := h.registry.List()
	if err != nil {
		h.logger.WithContext(ctx).Error().Err(err).Msg("health sweep cannot list connections")
		return
	}

	for _, c := range conns {
		if c.Status == types.ConnectionInactive {
			continue
		}
		h.probe(ctx, c)
	}
}

func (h *HealthChecker) probe(ctx context.Context, c types.Connection) {
	probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	healthy := h.probeOnce(probeCtx, c)

	if err := h.registry.RecordHealthCheck(ctx, c.Name, time.Now()); err != nil {
		h.logger.WithContext(ctx).Error().Err(err).
			Str("connection", c.Name).
			Msg("cannot record health check")
	}

	switch {
	case !healthy && c.Status == types.ConnectionActive:
		if err := h.registry.MarkStatus(ctx, c.Name, types.ConnectionError); err != nil {
			h.logger.WithContext(ctx).Error().Err(err).
				Str("connection", c.Name).
				Msg("cannot mark connection errored")
		}
	case healthy && c.Status == types.ConnectionError:
		if err := h.registry.MarkStatus(ctx, c.Name, types.ConnectionActive); err != nil {
			h.logger.WithContext(ctx).Error().Err(err).
				Str("connection", c.Name).
				Msg("cannot recover connection")
		}
	}
}

func (h *HealthChecker) probeOnce(ctx context.Context, c types.Connection) bool {
	conn, err := h.factory(c)
	if err != nil {
		h.logger.WithContext(ctx).Warn().Err(err).
			Str("connection", c.Name).
			Msg("no connector for connection")
		return false
	}
	defer conn.Close()

	if err := conn.Connect(ctx); err != nil {
		return false
	}
	status, err := conn.HealthCheck(ctx)
	if err != nil {
		return false
	}
	return status.Healthy
}
