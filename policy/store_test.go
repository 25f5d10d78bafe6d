package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewStore(s)
}

func mkPolicy(id string, level types.EnforcementLevel, dbTypes ...types.DBType) types.Policy {
	return types.Policy{
		PolicyID:          id,
		Name:              "Policy " + id,
		Description:       "test",
		ApplicableDBTypes: dbTypes,
		EnforcementLevel:  level,
	}
}

func TestStore_RegisterDuplicate(t *testing.T) {
	ps := newTestStore(t)
	ctx := context.Background()

	p := mkPolicy("p1", types.EnforcementWarning, types.DBTypeRedis)
	require.NoError(t, ps.Register(ctx, p))

	err := ps.Register(ctx, p)
	assert.ErrorIs(t, err, types.ErrDuplicateIdentifier)
}

func TestStore_GetNotFound(t *testing.T) {
	ps := newTestStore(t)

	_, err := ps.Get("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestStore_FindApplicableOrdering(t *testing.T) {
	ps := newTestStore(t)
	ctx := context.Background()

	// Registered out of order on purpose
	require.NoError(t, ps.Register(ctx, mkPolicy("b_warning", types.EnforcementWarning, types.DBTypeRedis)))
	require.NoError(t, ps.Register(ctx, mkPolicy("z_blocking", types.EnforcementBlocking, types.DBTypeRedis)))
	require.NoError(t, ps.Register(ctx, mkPolicy("a_error", types.EnforcementError, types.DBTypeRedis)))
	require.NoError(t, ps.Register(ctx, mkPolicy("a_blocking", types.EnforcementBlocking, types.DBTypeRedis)))
	require.NoError(t, ps.Register(ctx, mkPolicy("pg_only", types.EnforcementBlocking, types.DBTypePostgreSQL)))

	applicable, err := ps.FindApplicable(types.DBTypeRedis)
	require.NoError(t, err)

	var ids []string
	for _, p := range applicable {
		ids = append(ids, p.PolicyID)
	}
	assert.Equal(t, []string{"a_blocking", "z_blocking", "a_error", "b_warning"}, ids)
}

func TestStore_FindApplicableMembership(t *testing.T) {
	ps := newTestStore(t)
	ctx := context.Background()

	cross := mkPolicy("cross", types.EnforcementError, types.AllDBTypes...)
	require.NoError(t, ps.Register(ctx, cross))

	for _, dbType := range types.AllDBTypes {
		applicable, err := ps.FindApplicable(dbType)
		require.NoError(t, err)
		require.Len(t, applicable, 1, "cross-type policy must apply to %s", dbType)
	}
}

func TestStore_UpdateBumpsTimestamp(t *testing.T) {
	ps := newTestStore(t)
	ctx := context.Background()

	p := mkPolicy("p1", types.EnforcementWarning, types.DBTypeRedis)
	p.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, ps.Register(ctx, p))

	before, err := ps.Get("p1")
	require.NoError(t, err)

	p.Description = "updated"
	require.NoError(t, ps.Update(ctx, p))

	after, err := ps.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "updated", after.Description)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}
