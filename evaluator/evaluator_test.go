package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/policy"
	"github.com/yairfalse/vahti/types"
)

func seedPolicy(t *testing.T, id string) types.Policy {
	t.Helper()
	for _, p := range policy.DefaultPolicies() {
		if p.PolicyID == id {
			return p
		}
	}
	t.Fatalf("no default policy %s", id)
	return types.Policy{}
}

func TestForTypeCoversEveryDBType(t *testing.T) {
	for _, dt := range types.AllDBTypes {
		ev, err := ForType(dt)
		require.NoError(t, err, "db type %s", dt)
		require.NotNil(t, ev)
	}

	_, err := ForType("cassandra")
	assert.ErrorIs(t, err, types.ErrEvaluation)
}

func TestNilSnapshotIsEvaluationError(t *testing.T) {
	ev, err := ForType(types.DBTypeMongoDB)
	require.NoError(t, err)
	_, err = ev.Evaluate(context.Background(), nil, seedPolicy(t, "mongodb_schema_validation"))
	assert.ErrorIs(t, err, types.ErrEvaluation)
}

func TestDocumentMissingValidator(t *testing.T) {
	snap := &connector.Snapshot{
		Connection: "orders_db",
		DBType:     types.DBTypeMongoDB,
		Document: &connector.DocumentStoreSnapshot{
			Collections: []connector.CollectionInfo{
				{Name: "orders", HasValidator: false, IndexCount: 3, DocumentCount: 100},
				{Name: "users", HasValidator: true, IndexCount: 2, DocumentCount: 50},
			},
		},
	}

	findings, err := documentEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "mongodb_schema_validation"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "require_schema", findings[0].Rule)
	assert.Equal(t, types.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "orders", findings[0].Data["collection"])
	assert.Contains(t, findings[0].Remediation, "Add JSON schema validation to collections")
}

func TestDocumentIndexCoverage(t *testing.T) {
	snap := &connector.Snapshot{
		DBType: types.DBTypeMongoDB,
		Document: &connector.DocumentStoreSnapshot{
			Collections: []connector.CollectionInfo{
				{Name: "events", HasValidator: true, IndexCount: 1, DocumentCount: 10000},
			},
		},
	}

	findings, err := documentEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "mongodb_schema_validation"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "check_index_coverage", findings[0].Rule)
}

func TestRelationalMissingForeignKey(t *testing.T) {
	snap := &connector.Snapshot{
		Connection: "billing",
		DBType:     types.DBTypePostgreSQL,
		Relational: &connector.RelationalSnapshot{
			Tables: []connector.TableInfo{
				{Name: "invoices", ForeignKeyCount: 0},
				{Name: "customers", ForeignKeyCount: 2},
			},
		},
	}

	findings, err := relationalEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "postgresql_referential_integrity"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "require_foreign_keys", findings[0].Rule)
	assert.Equal(t, types.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "invoices", findings[0].Data["table"])
}

func TestRelationalNotNullBreach(t *testing.T) {
	snap := &connector.Snapshot{
		DBType: types.DBTypePostgreSQL,
		Relational: &connector.RelationalSnapshot{
			Tables: []connector.TableInfo{
				{Name: "ledger", ForeignKeyCount: 1, NullsSampled: true, NullsInNotNull: 7},
			},
		},
	}

	findings, err := relationalEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "postgresql_referential_integrity"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "enforce_not_null", findings[0].Rule)
	assert.Equal(t, types.SeverityCritical, findings[0].Severity)
}

func TestRelationalAbsentDataFailsClosed(t *testing.T) {
	snap := &connector.Snapshot{DBType: types.DBTypePostgreSQL}

	findings, err := relationalEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "postgresql_referential_integrity"))
	require.NoError(t, err)
	// both require-class rules of the seed policy fail closed
	require.Len(t, findings, 2)
	rules := []string{findings[0].Rule, findings[1].Rule}
	assert.Contains(t, rules, "require_foreign_keys")
	assert.Contains(t, rules, "enforce_not_null")
}

func TestKeyValueAbsentMemoryDataSkips(t *testing.T) {
	// check-class rules skip when the snapshot has no memory info
	snap := &connector.Snapshot{
		DBType:   types.DBTypeRedis,
		KeyValue: &connector.KeyValueSnapshot{HasMemoryInfo: false, KeyCount: 500},
	}

	findings, err := keyValueEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "redis_memory_optimization"))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestKeyValueMemoryPressure(t *testing.T) {
	snap := &connector.Snapshot{
		DBType: types.DBTypeRedis,
		KeyValue: &connector.KeyValueSnapshot{
			HasMemoryInfo:   true,
			UsedMemoryBytes: 2 << 30,
			KeyCount:        100000,
		},
	}

	findings, err := keyValueEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "redis_memory_optimization"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "check_memory_usage", findings[0].Rule)
	assert.Equal(t, types.SeverityMedium, findings[0].Severity)
}

func TestKeyValueTTLRatio(t *testing.T) {
	snap := &connector.Snapshot{
		DBType: types.DBTypeRedis,
		KeyValue: &connector.KeyValueSnapshot{
			SampledKeys:    100,
			KeysWithoutTTL: 80,
		},
	}

	findings, err := keyValueEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "redis_memory_optimization"))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "validate_ttl_policies", findings[0].Rule)
	assert.Contains(t, findings[0].Remediation, "Set appropriate TTL values")

	// below the ratio nothing fires
	snap.KeyValue.KeysWithoutTTL = 20
	findings, err = keyValueEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "redis_memory_optimization"))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestWideColumnIndexingPolicy(t *testing.T) {
	p := types.Policy{
		PolicyID:          "cosmos_indexing",
		Name:              "Cosmos Indexing",
		ApplicableDBTypes: []types.DBType{types.DBTypeCosmosDB},
		EnforcementLevel:  types.EnforcementError,
		ValidationRules: map[string]any{
			"require_indexing_policy": true,
			"validate_ttl_policies":   true,
		},
	}

	snap := &connector.Snapshot{
		DBType: types.DBTypeCosmosDB,
		WideColumn: &connector.WideColumnSnapshot{
			Containers: []connector.ContainerInfo{
				{Name: "orders", HasIndexingPolicy: false, HasDefaultTTL: false},
				{Name: "sessions", HasIndexingPolicy: true, HasDefaultTTL: true},
			},
		},
	}

	findings, err := wideColumnEvaluator{}.Evaluate(context.Background(), snap, p)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "require_indexing_policy", findings[0].Rule)
	assert.Equal(t, "validate_ttl_policies", findings[1].Rule)
}

func TestObjectStoreFreshnessAndCompleteness(t *testing.T) {
	now := time.Now()
	snap := &connector.Snapshot{
		DBType:  types.DBTypeBlobStorage,
		TakenAt: now,
		ObjectStore: &connector.ObjectStoreSnapshot{
			Bucket:             "archive",
			VersioningEnabled:  true,
			SampledObjects:     40,
			EmptyObjects:       3,
			NewestModification: now.Add(-90 * 24 * time.Hour),
		},
	}

	findings, err := objectStoreEvaluator{}.Evaluate(context.Background(), snap, seedPolicy(t, "data_quality_standards"))
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "check_data_completeness", findings[0].Rule)
	assert.Equal(t, "check_data_freshness", findings[1].Rule)
}

func TestRemediationMatching(t *testing.T) {
	p := seedPolicy(t, "redis_memory_optimization")
	assert.Equal(t, []string{"Set appropriate TTL values"}, remediationFor(p, "ttl"))
	assert.Empty(t, remediationFor(p, "foreign"))
}

func TestRuleClasses(t *testing.T) {
	assert.Equal(t, requireClass, classOf("require_schema"))
	assert.Equal(t, requireClass, classOf("enforce_not_null"))
	assert.Equal(t, checkClass, classOf("check_memory_usage"))
	assert.Equal(t, checkClass, classOf("validate_ttl_policies"))
	assert.Equal(t, checkClass, classOf("monitor_key_patterns"))
	assert.Equal(t, checkClass, classOf("detect_duplicates"))
}
