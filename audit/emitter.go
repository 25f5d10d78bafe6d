// Package audit records governance activity in an append-only trail.
// Events land in two places: the queryable store and an on-disk
// JSON-lines journal.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/telemetry"
	"github.com/yairfalse/vahti/types"
)

const persistMaxTries = 4

// Emitter validates and persists audit events. The store insert is
// retried with bounded backoff; exhaustion surfaces as a
// PersistenceError. Journal failures after a successful store insert
// are logged, not returned: the queryable record is the source of
// truth and a degraded journal must not fail governance work.
type Emitter struct {
	storage *storage.Store
	journal *Journal
	logger  *telemetry.Logger
	metrics *telemetry.GovernanceMetrics
	source  string
}

// NewEmitter builds an audit emitter. journal may be nil when no
// on-disk trail is wanted (tests, one-shot runs).
func NewEmitter(s *storage.Store, journal *Journal, metrics *telemetry.GovernanceMetrics, source string) *Emitter {
	return &Emitter{
		storage: s,
		journal: journal,
		logger:  telemetry.NewLogger("audit-emitter"),
		metrics: metrics,
		source:  source,
	}
}

// Emit validates and appends one audit event. A zero event id or
// timestamp is filled in; a missing event type or source is the
// caller's bug and comes back as InvalidEvent.
func (e *Emitter) Emit(ctx context.Context, event types.AuditEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Source == "" {
		event.Source = e.source
	}

	if err := event.Validate(); err != nil {
		return err
	}

	op := func() (struct{}, error) {
		return struct{}{}, e.storage.AppendAuditEvent(event)
	}
	if _, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(persistMaxTries),
	); err != nil {
		return fmt.Errorf("%w: appending audit event %s: %v", types.ErrPersistence, event.EventID, err)
	}

	if e.journal != nil {
		if err := e.journal.Append(event); err != nil {
			e.logger.WithContext(ctx).Error().Err(err).
				Str("event_id", event.EventID).
				Msg("journal append failed")
		}
	}

	if e.metrics != nil {
		e.metrics.RecordAuditEvent(ctx, event.Action)
	}
	return nil
}

// Record is the common-case helper: builds an event of the given type
// and action against a target and emits it.
func (e *Emitter) Record(ctx context.Context, eventType, action, target string, details map[string]any) error {
	return e.Emit(ctx, types.AuditEvent{
		EventType: eventType,
		Action:    action,
		Target:    target,
		Details:   details,
	})
}

// List queries the persisted audit trail
func (e *Emitter) List(filter storage.AuditFilter) ([]types.AuditEvent, error) {
	return e.storage.ListAuditEvents(filter)
}
