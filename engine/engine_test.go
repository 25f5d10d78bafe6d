package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/vahti/audit"
	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/ledger"
	"github.com/yairfalse/vahti/policy"
	"github.com/yairfalse/vahti/registry"
	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/types"
)

type harness struct {
	store    *storage.Store
	policies *policy.Store
	registry *registry.Registry
	ledger   *ledger.Ledger
	emitter  *audit.Emitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	policies := policy.NewStore(store)
	_, err = policy.Seed(context.Background(), policies)
	require.NoError(t, err)

	return &harness{
		store:    store,
		policies: policies,
		registry: registry.NewRegistry(store),
		ledger:   ledger.NewLedger(store, nil),
		emitter:  audit.NewEmitter(store, nil, nil, "engine-test"),
	}
}

func (h *harness) engine(factory connector.Factory, opts Options) *Engine {
	return New(h.policies, h.registry, h.ledger, h.emitter, factory, nil, opts)
}

func (h *harness) register(t *testing.T, name string, dbType types.DBType) types.Connection {
	t.Helper()
	conn := types.Connection{Name: name, DBType: dbType, Environment: types.EnvDevelopment}
	require.NoError(t, h.registry.Register(context.Background(), conn))
	got, err := h.registry.Get(name)
	require.NoError(t, err)
	return got
}

func staticFactory(snapFor func(types.Connection) *connector.Snapshot) connector.Factory {
	return func(c types.Connection) (connector.Connector, error) {
		return connector.NewStatic(c, snapFor(c)), nil
	}
}

func mongoSnapshotMissingValidator(c types.Connection) *connector.Snapshot {
	return &connector.Snapshot{
		Connection: c.Name,
		DBType:     types.DBTypeMongoDB,
		TakenAt:    time.Now(),
		Document: &connector.DocumentStoreSnapshot{
			Collections: []connector.CollectionInfo{
				{Name: "orders", HasValidator: false, IndexCount: 2, DocumentCount: 10},
			},
		},
	}
}

func TestEvaluateConnectionDetectsViolation(t *testing.T) {
	h := newHarness(t)
	conn := h.register(t, "orders_db", types.DBTypeMongoDB)

	eng := h.engine(staticFactory(mongoSnapshotMissingValidator), Options{})
	result := eng.EvaluateConnection(context.Background(), conn)

	require.NoError(t, result.Err)
	assert.Equal(t, StateCompleted, result.State)
	// mongodb_schema_validation plus data_quality_standards apply
	assert.Equal(t, 2, result.Policies)
	assert.Positive(t, result.Findings)
	assert.Equal(t, 1, result.Outcomes[ledger.OutcomeCreated])

	violations, err := h.ledger.List(storage.ViolationFilter{DatabaseName: "orders_db"})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "mongodb_schema_validation", violations[0].PolicyID)
	assert.Equal(t, types.ViolationOpen, violations[0].Status)

	detected, err := h.emitter.List(storage.AuditFilter{Action: types.ActionViolationDetected})
	require.NoError(t, err)
	assert.Len(t, detected, 1)
	completed, err := h.emitter.List(storage.AuditFilter{Action: types.ActionEvaluationCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestEvaluateConnectionSecondRunConfirms(t *testing.T) {
	h := newHarness(t)
	conn := h.register(t, "orders_db", types.DBTypeMongoDB)
	eng := h.engine(staticFactory(mongoSnapshotMissingValidator), Options{})

	first := eng.EvaluateConnection(context.Background(), conn)
	require.NoError(t, first.Err)
	second := eng.EvaluateConnection(context.Background(), conn)
	require.NoError(t, second.Err)

	assert.Equal(t, 1, second.Outcomes[ledger.OutcomeConfirmed])
	assert.Zero(t, second.Outcomes[ledger.OutcomeCreated])

	// still one violation on record
	violations, err := h.ledger.List(storage.ViolationFilter{})
	require.NoError(t, err)
	assert.Len(t, violations, 1)

	confirmed, err := h.emitter.List(storage.AuditFilter{Action: types.ActionViolationConfirmed})
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)
}

func TestEvaluateConnectionUnavailableMarksError(t *testing.T) {
	h := newHarness(t)
	conn := h.register(t, "down_db", types.DBTypeRedis)

	refused := errors.New("connection refused")
	factory := func(c types.Connection) (connector.Connector, error) {
		sc := connector.NewStatic(c, nil)
		sc.ConnectErr = refused
		return sc, nil
	}

	eng := h.engine(factory, Options{})
	result := eng.EvaluateConnection(context.Background(), conn)

	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, types.ErrConnectorUnavailable)

	got, err := h.registry.Get("down_db")
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionError, got.Status)

	// no violations from a run that never inspected anything
	violations, err := h.ledger.List(storage.ViolationFilter{})
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEvaluateConnectionCallTimeout(t *testing.T) {
	h := newHarness(t)
	conn := h.register(t, "slow_db", types.DBTypeRedis)

	factory := func(c types.Connection) (connector.Connector, error) {
		return slowConnector{conn: c}, nil
	}

	eng := h.engine(factory, Options{CallTimeout: 20 * time.Millisecond})
	result := eng.EvaluateConnection(context.Background(), conn)

	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, types.ErrConnectorUnavailable)
}

// slowConnector blocks in Connect until the context expires
type slowConnector struct {
	conn types.Connection
}

func (s slowConnector) Connect(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s slowConnector) HealthCheck(ctx context.Context) (connector.HealthStatus, error) {
	return connector.HealthStatus{}, nil
}

func (s slowConnector) Inspect(ctx context.Context) (*connector.Snapshot, error) {
	return nil, ctx.Err()
}

func (s slowConnector) Close() error { return nil }

func TestEvaluateAllIsolatesFailures(t *testing.T) {
	h := newHarness(t)
	h.register(t, "good_db", types.DBTypeMongoDB)
	h.register(t, "bad_db", types.DBTypeRedis)

	refused := errors.New("connection refused")
	factory := func(c types.Connection) (connector.Connector, error) {
		sc := connector.NewStatic(c, mongoSnapshotMissingValidator(c))
		if c.Name == "bad_db" {
			sc.ConnectErr = refused
		}
		return sc, nil
	}

	eng := h.engine(factory, Options{Workers: 2})
	results, err := eng.EvaluateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	states := map[string]State{}
	for _, r := range results {
		states[r.Connection] = r.State
	}
	assert.Equal(t, StateCompleted, states["good_db"])
	assert.Equal(t, StateFailed, states["bad_db"])
}

func TestEvaluateAllCancelledSchedulesNothing(t *testing.T) {
	h := newHarness(t)
	h.register(t, "a", types.DBTypeMongoDB)
	h.register(t, "b", types.DBTypeMongoDB)

	var evaluated int
	factory := func(c types.Connection) (connector.Connector, error) {
		evaluated++
		return connector.NewStatic(c, mongoSnapshotMissingValidator(c)), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := h.engine(factory, Options{})
	results, err := eng.EvaluateAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Zero(t, evaluated)
}

func TestEvaluateConnectionRegoPolicy(t *testing.T) {
	h := newHarness(t)
	conn := h.register(t, "cache", types.DBTypeRedis)

	custom := types.Policy{
		PolicyID:          "redis_key_budget",
		Name:              "Redis Key Budget",
		ApplicableDBTypes: []types.DBType{types.DBTypeRedis},
		EnforcementLevel:  types.EnforcementBlocking,
		ValidationRules:   map[string]any{},
		RegoModule: `package vahti

import rego.v1

findings contains f if {
	input.snapshot.key_value.key_count > 1000
	f := {
		"rule": "key_budget",
		"severity": "high",
		"description": "key count over budget",
	}
}
`,
	}
	require.NoError(t, h.policies.Register(context.Background(), custom))

	snap := &connector.Snapshot{
		Connection: "cache",
		DBType:     types.DBTypeRedis,
		TakenAt:    time.Now(),
		KeyValue:   &connector.KeyValueSnapshot{KeyCount: 5000},
	}
	eng := h.engine(staticFactory(func(types.Connection) *connector.Snapshot { return snap }), Options{})

	result := eng.EvaluateConnection(context.Background(), conn)
	require.NoError(t, result.Err)
	assert.Equal(t, StateCompleted, result.State)

	violations, err := h.ledger.List(storage.ViolationFilter{PolicyID: "redis_key_budget"})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, types.SeverityHigh, violations[0].Severity)
}
