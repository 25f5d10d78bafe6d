// Package ledger owns the violation lifecycle: fingerprint-based
// deduplication on detection and the status state machine after it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/telemetry"
	"github.com/yairfalse/vahti/types"
)

// Outcome classifies what Upsert did with a detected violation
type Outcome string

const (
	// OutcomeCreated means no violation existed for the fingerprint
	OutcomeCreated Outcome = "created"
	// OutcomeConfirmed means an open or in-progress violation was
	// re-detected and its detection time refreshed
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeReopened means a resolved violation recurred
	OutcomeReopened Outcome = "reopened"
	// OutcomeSuppressed means the violation is ignored and the
	// detection was dropped
	OutcomeSuppressed Outcome = "suppressed"
)

// legal status transitions; everything else is InvalidTransition
var legalTransitions = map[types.ViolationStatus][]types.ViolationStatus{
	types.ViolationOpen:       {types.ViolationInProgress, types.ViolationResolved, types.ViolationIgnored},
	types.ViolationInProgress: {types.ViolationResolved, types.ViolationIgnored},
}

const persistMaxTries = 4

// Ledger deduplicates violations by fingerprint and drives their
// status lifecycle.
type Ledger struct {
	storage *storage.Store
	logger  *telemetry.Logger
	metrics *telemetry.GovernanceMetrics

	// locks serializes upserts per fingerprint so concurrent
	// evaluations of the same target cannot double-create
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger builds a violation ledger over the persistence layer
func NewLedger(s *storage.Store, metrics *telemetry.GovernanceMetrics) *Ledger {
	return &Ledger{
		storage: s,
		logger:  telemetry.NewLogger("violation-ledger"),
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Upsert records a detected violation. The fingerprint decides the
// outcome: unknown fingerprints create an open violation, known open
// or in-progress ones are confirmed, resolved ones reopen, ignored
// ones are suppressed without touching the record.
func (l *Ledger) Upsert(ctx context.Context, candidate types.Violation) (Outcome, types.Violation, error) {
	if candidate.Fingerprint == "" {
		candidate.Fingerprint = types.ComputeFingerprint(
			candidate.DatabaseName, candidate.PolicyID, candidate.ViolationData)
	}

	lock := l.fingerprintLock(candidate.Fingerprint)
	lock.Lock()
	defer lock.Unlock()

	existing, err := l.storage.GetViolationByFingerprint(candidate.Fingerprint)
	switch {
	case errors.Is(err, types.ErrNotFound):
		return l.create(ctx, candidate)
	case err != nil:
		return "", types.Violation{}, err
	}

	switch existing.Status {
	case types.ViolationIgnored:
		return OutcomeSuppressed, existing, nil

	case types.ViolationResolved:
		existing.Status = types.ViolationOpen
		existing.DetectedAt = time.Now()
		existing.ResolvedAt = time.Time{}
		existing.ResolvedBy = ""
		existing.Severity = candidate.Severity
		existing.Description = candidate.Description
		existing.ViolationData = candidate.ViolationData
		if err := l.persist(ctx, existing); err != nil {
			return "", types.Violation{}, err
		}
		l.observe(ctx, string(OutcomeReopened), existing)
		return OutcomeReopened, existing, nil

	default: // open, in_progress
		existing.DetectedAt = time.Now()
		existing.Severity = candidate.Severity
		existing.Description = candidate.Description
		existing.ViolationData = candidate.ViolationData
		if err := l.persist(ctx, existing); err != nil {
			return "", types.Violation{}, err
		}
		l.observe(ctx, string(OutcomeConfirmed), existing)
		return OutcomeConfirmed, existing, nil
	}
}

func (l *Ledger) create(ctx context.Context, v types.Violation) (Outcome, types.Violation, error) {
	if v.ViolationID == "" {
		v.ViolationID = uuid.NewString()
	}
	if v.DetectedAt.IsZero() {
		v.DetectedAt = time.Now()
	}
	v.Status = types.ViolationOpen

	if err := v.Validate(); err != nil {
		return "", types.Violation{}, err
	}

	op := func() (struct{}, error) {
		return struct{}{}, l.storage.CreateViolation(v)
	}
	if _, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(persistMaxTries),
	); err != nil {
		return "", types.Violation{}, fmt.Errorf("%w: creating violation %s: %v",
			types.ErrPersistence, v.ViolationID, err)
	}

	l.observe(ctx, string(OutcomeCreated), v)
	return OutcomeCreated, v, nil
}

// Transition moves a violation through its status machine. Resolving
// stamps resolved_at and resolved_by.
func (l *Ledger) Transition(ctx context.Context, violationID string, to types.ViolationStatus, actor string) (types.Violation, error) {
	if !to.Valid() {
		return types.Violation{}, fmt.Errorf("unknown violation status %q", to)
	}

	v, err := l.storage.GetViolation(violationID)
	if err != nil {
		return types.Violation{}, err
	}

	if !transitionAllowed(v.Status, to) {
		return types.Violation{}, fmt.Errorf("%w: violation %s cannot go %s -> %s",
			types.ErrInvalidTransition, violationID, v.Status, to)
	}

	v.Status = to
	if to == types.ViolationResolved {
		v.ResolvedAt = time.Now()
		v.ResolvedBy = actor
	}

	if err := l.persist(ctx, v); err != nil {
		return types.Violation{}, err
	}

	l.logger.WithContext(ctx).Info().
		Str("violation_id", violationID).
		Str("status", string(to)).
		Str("actor", actor).
		Msg("violation transitioned")
	return v, nil
}

// Get loads one violation by id
func (l *Ledger) Get(violationID string) (types.Violation, error) {
	return l.storage.GetViolation(violationID)
}

// List queries violations by filter
func (l *Ledger) List(filter storage.ViolationFilter) ([]types.Violation, error) {
	return l.storage.ListViolations(filter)
}

func (l *Ledger) persist(ctx context.Context, v types.Violation) error {
	op := func() (struct{}, error) {
		return struct{}{}, l.storage.UpdateViolation(v)
	}
	if _, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(persistMaxTries),
	); err != nil {
		return fmt.Errorf("%w: updating violation %s: %v", types.ErrPersistence, v.ViolationID, err)
	}
	return nil
}

func (l *Ledger) fingerprintLock(fingerprint string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[fingerprint]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[fingerprint] = lock
	}
	return lock
}

func (l *Ledger) observe(ctx context.Context, outcome string, v types.Violation) {
	l.logger.LogViolationUpsert(ctx, v.Fingerprint, outcome)
	if l.metrics != nil {
		l.metrics.RecordViolationUpsert(ctx, outcome, string(v.Severity))
	}
}

func transitionAllowed(from, to types.ViolationStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
