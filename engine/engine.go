// Package engine orchestrates governance evaluation: it pulls the
// applicable policies for each registered connection, inspects the
// target through its connector, runs the rule evaluators over the
// snapshot and feeds flagged findings into the violation ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/vahti/audit"
	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/evaluator"
	"github.com/yairfalse/vahti/ledger"
	"github.com/yairfalse/vahti/policy"
	"github.com/yairfalse/vahti/registry"
	"github.com/yairfalse/vahti/telemetry"
	"github.com/yairfalse/vahti/types"
)

const (
	defaultWorkers     = 4
	defaultCallTimeout = 30 * time.Second
)

// Engine drives governance evaluation runs
type Engine struct {
	policies *policy.Store
	registry *registry.Registry
	ledger   *ledger.Ledger
	emitter  *audit.Emitter
	rego     *policy.RegoEvaluator
	factory  connector.Factory

	workers     int
	callTimeout time.Duration

	logger  *telemetry.Logger
	metrics *telemetry.GovernanceMetrics
	tracer  trace.Tracer
}

// Options tunes engine concurrency and timeouts
type Options struct {
	// Workers bounds how many connections evaluate concurrently
	Workers int
	// CallTimeout bounds each connector call (connect, inspect).
	// Expiry is treated as connector unavailability.
	CallTimeout time.Duration
}

// New builds an evaluation engine. metrics may be nil.
func New(policies *policy.Store, reg *registry.Registry, led *ledger.Ledger,
	emitter *audit.Emitter, factory connector.Factory,
	metrics *telemetry.GovernanceMetrics, opts Options) *Engine {

	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if factory == nil {
		factory = connector.New
	}

	return &Engine{
		policies:    policies,
		registry:    reg,
		ledger:      led,
		emitter:     emitter,
		rego:        policy.NewRegoEvaluator(),
		factory:     factory,
		workers:     opts.Workers,
		callTimeout: opts.CallTimeout,
		logger:      telemetry.NewLogger("governance-engine"),
		metrics:     metrics,
		tracer:      otel.Tracer("vahti.engine"),
	}
}

// EvaluateAll runs every active connection through evaluation with
// bounded concurrency. Failures are isolated per connection: one
// failing run never stops the others. Cancelling the context stops
// scheduling new connections; runs already in flight finish.
func (e *Engine) EvaluateAll(ctx context.Context) ([]RunResult, error) {
	conns, err := e.registry.ListActive()
	if err != nil {
		return nil, fmt.Errorf("listing active connections: %w", err)
	}

	var (
		mu      sync.Mutex
		results = make([]RunResult, 0, len(conns))
	)

	g := &errgroup.Group{}
	g.SetLimit(e.workers)

	for _, conn := range conns {
		if ctx.Err() != nil {
			break
		}
		conn := conn
		g.Go(func() error {
			// in-flight work runs to completion even when the parent
			// context is cancelled mid-run
			res := e.EvaluateConnection(context.WithoutCancel(ctx), conn)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results, ctx.Err()
}

// EvaluateConnection runs one connection through its applicable
// policies. Connector unavailability fails the whole run and marks the
// connection errored; a single policy's evaluation error degrades to a
// synthetic finding and the run continues.
func (e *Engine) EvaluateConnection(ctx context.Context, conn types.Connection) RunResult {
	ctx, span := e.tracer.Start(ctx, "engine.evaluate_connection",
		trace.WithAttributes(
			attribute.String("connection", conn.Name),
			attribute.String("db_type", string(conn.DBType)),
		))
	defer span.End()

	start := time.Now()
	result := RunResult{
		Connection: conn.Name,
		State:      StatePending,
		Outcomes:   make(map[ledger.Outcome]int),
	}

	policies, err := e.policies.FindApplicable(conn.DBType)
	if err != nil {
		return e.fail(ctx, conn, result, start, fmt.Errorf("loading policies: %w", err))
	}
	result.Policies = len(policies)
	result.State = StateEvaluating

	e.logger.LogEvaluationStart(ctx, conn.Name, string(conn.DBType), len(policies))

	snap, err := e.inspect(ctx, conn)
	if err != nil {
		return e.fail(ctx, conn, result, start, err)
	}

	for _, p := range policies {
		findings, err := e.evaluatePolicy(ctx, snap, p)
		if err != nil {
			if errors.Is(err, types.ErrConnectorUnavailable) {
				return e.fail(ctx, conn, result, start, err)
			}
			// a broken policy must not block the rest of the run
			findings = []types.Finding{{
				Rule:        "evaluation_error",
				Severity:    types.SeverityHigh,
				Description: fmt.Sprintf("policy %s could not be evaluated: %v", p.PolicyID, err),
			}}
		}
		result.Findings += len(findings)

		if e.metrics != nil {
			e.metrics.RecordFindings(ctx, int64(len(findings)), p.PolicyID, string(conn.DBType))
		}

		for _, f := range findings {
			if !f.ClearsThreshold(p.EnforcementLevel) {
				continue
			}
			result.Flagged++
			outcome, err := e.recordViolation(ctx, conn, p, f)
			if err != nil {
				return e.fail(ctx, conn, result, start, err)
			}
			result.Outcomes[outcome]++
		}
	}

	result.State = StateCompleted
	result.Duration = time.Since(start)

	e.observeRun(ctx, conn, result)
	e.logger.LogEvaluationComplete(ctx, conn.Name, result.Findings, result.Flagged)
	return result
}

// inspect connects and snapshots the target, bounding each call
func (e *Engine) inspect(ctx context.Context, conn types.Connection) (*connector.Snapshot, error) {
	c, err := e.factory(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrConnectorUnavailable, conn.Name, err)
	}
	defer c.Close()

	connectCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	if err := c.Connect(connectCtx); err != nil {
		return nil, timeoutAsUnavailable(conn, err, connectCtx)
	}

	inspectCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	snap, err := c.Inspect(inspectCtx)
	if err != nil {
		return nil, timeoutAsUnavailable(conn, err, inspectCtx)
	}
	return snap, nil
}

func (e *Engine) evaluatePolicy(ctx context.Context, snap *connector.Snapshot, p types.Policy) ([]types.Finding, error) {
	ev, err := evaluator.ForType(snap.DBType)
	if err != nil {
		return nil, err
	}

	findings, err := ev.Evaluate(ctx, snap, p)
	if err != nil {
		return nil, err
	}

	if p.RegoModule != "" {
		if err := e.rego.Ensure(ctx, p); err != nil {
			return nil, err
		}
		input := map[string]any{"snapshot": snap, "connection": snap.Connection}
		custom, err := e.rego.Evaluate(ctx, p, input)
		if err != nil {
			return nil, err
		}
		findings = append(findings, custom...)
	}
	return findings, nil
}

func (e *Engine) recordViolation(ctx context.Context, conn types.Connection, p types.Policy, f types.Finding) (ledger.Outcome, error) {
	payload := map[string]any{"rule": f.Rule}
	for k, v := range f.Data {
		payload[k] = v
	}

	outcome, v, err := e.ledger.Upsert(ctx, types.Violation{
		DatabaseName:         conn.Name,
		PolicyID:             p.PolicyID,
		Severity:             f.Severity,
		Description:          f.Description,
		ViolationData:        payload,
		RemediationSuggested: f.Remediation,
	})
	if err != nil {
		return "", err
	}

	action := ""
	switch outcome {
	case ledger.OutcomeCreated:
		action = types.ActionViolationDetected
	case ledger.OutcomeConfirmed:
		action = types.ActionViolationConfirmed
	case ledger.OutcomeReopened:
		action = types.ActionViolationReopened
	case ledger.OutcomeSuppressed:
		return outcome, nil
	}

	err = e.emitter.Record(ctx, "governance_evaluation", action, conn.Name, map[string]any{
		"violation_id": v.ViolationID,
		"policy_id":    p.PolicyID,
		"rule":         f.Rule,
		"severity":     string(f.Severity),
		"fingerprint":  v.Fingerprint,
	})
	return outcome, err
}

func (e *Engine) fail(ctx context.Context, conn types.Connection, result RunResult, start time.Time, err error) RunResult {
	result.State = StateFailed
	result.Err = err
	result.Duration = time.Since(start)

	if errors.Is(err, types.ErrConnectorUnavailable) {
		e.logger.LogConnectorUnavailable(ctx, conn.Name, err)
		if markErr := e.registry.MarkStatus(ctx, conn.Name, types.ConnectionError); markErr != nil &&
			!errors.Is(markErr, types.ErrInvalidTransition) {
			e.logger.WithContext(ctx).Error().Err(markErr).
				Str("connection", conn.Name).
				Msg("cannot mark connection errored")
		}
	} else {
		e.logger.WithContext(ctx).Error().Err(err).
			Str("connection", conn.Name).
			Msg("evaluation failed")
	}

	e.observeRun(ctx, conn, result)
	return result
}

func (e *Engine) observeRun(ctx context.Context, conn types.Connection, result RunResult) {
	if e.metrics != nil {
		e.metrics.RecordEvaluation(ctx, string(result.State), string(conn.DBType))
		e.metrics.RecordEvaluationDuration(ctx, result.Duration.Seconds(), string(result.State))
	}

	details := map[string]any{
		"state":    string(result.State),
		"policies": result.Policies,
		"findings": result.Findings,
		"flagged":  result.Flagged,
	}
	if result.Err != nil {
		details["error"] = result.Err.Error()
	}
	if err := e.emitter.Record(ctx, "governance_evaluation",
		types.ActionEvaluationCompleted, conn.Name, details); err != nil {
		e.logger.WithContext(ctx).Error().Err(err).
			Str("connection", conn.Name).
			Msg("cannot audit evaluation completion")
	}
}

func timeoutAsUnavailable(conn types.Connection, err error, ctx context.Context) error {
	if errors.Is(err, types.ErrConnectorUnavailable) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: call timed out: %v", types.ErrConnectorUnavailable, conn.Name, err)
	}
	return fmt.Errorf("%w: %s: %v", types.ErrConnectorUnavailable, conn.Name, err)
}
