package types

import (
	"fmt"
	"time"
)

// Audit actions emitted by the engine and ledger
const (
	ActionDatabaseRegistered  = "database_registered"
	ActionViolationDetected   = "violation_detected"
	ActionViolationConfirmed  = "violation_confirmed"
	ActionViolationReopened   = "violation_reopened"
	ActionViolationTransition = "violation_transition"
	ActionEvaluationCompleted = "evaluation_completed"
	ActionPoliciesSeeded      = "policies_seeded"
	ActionStatusChanged       = "status_changed"
)

// AuditEvent is one immutable entry in the audit trail.
// Events are append-only; nothing in the engine mutates or deletes them.
type AuditEvent struct {
	EventID             string         `json:"event_id"`
	EventType           string         `json:"event_type"`
	Timestamp           time.Time      `json:"timestamp"`
	Source              string         `json:"source"`
	Actor               string         `json:"actor,omitempty"`
	Target              string         `json:"target,omitempty"`
	Action              string         `json:"action,omitempty"`
	Details             map[string]any `json:"details,omitempty"`
	ComplianceFramework string         `json:"compliance_framework,omitempty"`
}

// Validate checks the required audit fields
func (e *AuditEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	}
	if e.EventType == "" {
		return fmt.Errorf("%w: event_type is required", ErrInvalidEvent)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}
	if e.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidEvent)
	}
	return nil
}
