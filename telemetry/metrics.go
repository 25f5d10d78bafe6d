package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GovernanceMetrics holds operational metrics using OTEL semantic conventions
type GovernanceMetrics struct {
	evaluations        metric.Int64Counter
	evaluationDuration metric.Float64Histogram
	findings           metric.Int64Counter
	violations         metric.Int64Counter
	auditEvents        metric.Int64Counter
	storageOperations  metric.Int64Counter
}

// NewGovernanceMetrics creates engine metrics following OTEL conventions
func NewGovernanceMetrics() (*GovernanceMetrics, error) {
	meter := otel.Meter("vahti.engine")

	evaluations, err := meter.Int64Counter(
		"vahti.engine.evaluations",
		metric.WithDescription("Number of per-connection evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, err
	}

	evaluationDuration, err := meter.Float64Histogram(
		"vahti.engine.evaluation.duration",
		metric.WithDescription("Duration of per-connection evaluations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	findings, err := meter.Int64Counter(
		"vahti.engine.findings",
		metric.WithDescription("Number of rule findings produced"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, err
	}

	violations, err := meter.Int64Counter(
		"vahti.ledger.violations",
		metric.WithDescription("Number of violation upserts by outcome"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, err
	}

	auditEvents, err := meter.Int64Counter(
		"vahti.audit.events",
		metric.WithDescription("Number of audit events emitted"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	storageOperations, err := meter.Int64Counter(
		"vahti.storage.operations",
		metric.WithDescription("Number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	return &GovernanceMetrics{
		evaluations:        evaluations,
		evaluationDuration: evaluationDuration,
		findings:           findings,
		violations:         violations,
		auditEvents:        auditEvents,
		storageOperations:  storageOperations,
	}, nil
}

// RecordEvaluation records a per-connection evaluation with its outcome
func (m *GovernanceMetrics) RecordEvaluation(ctx context.Context, state string, dbType string) {
	m.evaluations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("state", state),
			attribute.String("db.type", dbType),
		),
	)
}

// RecordEvaluationDuration records how long an evaluation took
func (m *GovernanceMetrics) RecordEvaluationDuration(ctx context.Context, seconds float64, state string) {
	m.evaluationDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordFindings records findings produced for a policy
func (m *GovernanceMetrics) RecordFindings(ctx context.Context, count int64, policyID string, dbType string) {
	m.findings.Add(ctx, count,
		metric.WithAttributes(
			attribute.String("policy.id", policyID),
			attribute.String("db.type", dbType),
		),
	)
}

// RecordViolationUpsert records a ledger upsert outcome
func (m *GovernanceMetrics) RecordViolationUpsert(ctx context.Context, outcome string, severity string) {
	m.violations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("severity", severity),
		),
	)
}

// RecordAuditEvent records an emitted audit event
func (m *GovernanceMetrics) RecordAuditEvent(ctx context.Context, action string) {
	m.auditEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("action", action)),
	)
}

// RecordStorageOperation records a storage operation
func (m *GovernanceMetrics) RecordStorageOperation(ctx context.Context, operation string, status string) {
	m.storageOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}
