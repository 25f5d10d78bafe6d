package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/vahti/types"
)

func TestSeed_Idempotent(t *testing.T) {
	ps := newTestStore(t)
	ctx := context.Background()

	inserted, err := Seed(ctx, ps)
	require.NoError(t, err)
	assert.Equal(t, 4, inserted)

	// Second run must insert nothing and surface no duplicate error
	inserted, err = Seed(ctx, ps)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	all, err := ps.List()
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSeed_DocumentedPolicyIDs(t *testing.T) {
	ps := newTestStore(t)
	ctx := context.Background()

	_, err := Seed(ctx, ps)
	require.NoError(t, err)

	for _, id := range []string{
		"mongodb_schema_validation",
		"postgresql_referential_integrity",
		"redis_memory_optimization",
		"data_quality_standards",
	} {
		p, err := ps.Get(id)
		require.NoError(t, err, "seed policy %s must exist", id)
		require.NoError(t, p.Validate())
	}
}

func TestSeed_EnforcementLevels(t *testing.T) {
	ps := newTestStore(t)
	ctx := context.Background()

	_, err := Seed(ctx, ps)
	require.NoError(t, err)

	pg, err := ps.Get("postgresql_referential_integrity")
	require.NoError(t, err)
	assert.Equal(t, types.EnforcementBlocking, pg.EnforcementLevel)
	assert.True(t, pg.RuleFlag("require_foreign_keys"))

	redis, err := ps.Get("redis_memory_optimization")
	require.NoError(t, err)
	assert.Equal(t, types.EnforcementWarning, redis.EnforcementLevel)

	quality, err := ps.Get("data_quality_standards")
	require.NoError(t, err)
	assert.ElementsMatch(t, types.AllDBTypes, quality.ApplicableDBTypes)
}
