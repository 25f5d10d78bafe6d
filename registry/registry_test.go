package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewRegistry(store)
}

func mkConnection(name string) types.Connection {
	return types.Connection{
		Name:        name,
		DBType:      types.DBTypeRedis,
		Environment: types.EnvDevelopment,
	}
}

func TestRegisterForcesActiveStatus(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	conn := mkConnection("cache")
	conn.Status = types.ConnectionError
	require.NoError(t, reg.Register(ctx, conn))

	got, err := reg.Get("cache")
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionActive, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRegisterDuplicateName(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, mkConnection("cache")))
	err := reg.Register(ctx, mkConnection("cache"))
	assert.ErrorIs(t, err, types.ErrDuplicateIdentifier)
}

func TestMarkStatusTransitions(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, mkConnection("cache")))

	// active -> error -> active round trip is legal
	require.NoError(t, reg.MarkStatus(ctx, "cache", types.ConnectionError))
	require.NoError(t, reg.MarkStatus(ctx, "cache", types.ConnectionActive))

	// active -> inactive parks the connection
	require.NoError(t, reg.MarkStatus(ctx, "cache", types.ConnectionInactive))

	// inactive is terminal for the health loop: no path out via MarkStatus
	err := reg.MarkStatus(ctx, "cache", types.ConnectionError)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	err = reg.MarkStatus(ctx, "cache", types.ConnectionActive)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	// same-status transition is a no-op, not an error
	require.NoError(t, reg.MarkStatus(ctx, "cache", types.ConnectionInactive))
}

func TestMarkStatusUnknownConnection(t *testing.T) {
	reg := newTestRegistry(t)
	err := reg.MarkStatus(context.Background(), "ghost", types.ConnectionError)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListActiveReflectsStatusChanges(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, mkConnection("a")))
	require.NoError(t, reg.Register(ctx, mkConnection("b")))

	active, err := reg.ListActive()
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, reg.MarkStatus(ctx, "a", types.ConnectionError))

	active, err = reg.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].Name)
}

func TestHealthSweepMarksAndRecovers(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, mkConnection("cache")))

	fail := errors.New("connection refused")
	var failing bool
	factory := func(c types.Connection) (connector.Connector, error) {
		sc := connector.NewStatic(c, nil)
		if failing {
			sc.ConnectErr = fail
		}
		return sc, nil
	}

	hc := NewHealthChecker(reg, factory, time.Minute, time.Second)

	failing = true
	hc.Sweep(ctx)
	got, err := reg.Get("cache")
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionError, got.Status)
	assert.False(t, got.LastHealthCheck.IsZero())

	failing = false
	hc.Sweep(ctx)
	got, err = reg.Get("cache")
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionActive, got.Status)
}

func TestHealthSweepSkipsInactive(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, mkConnection("parked")))
	require.NoError(t, reg.MarkStatus(ctx, "parked", types.ConnectionInactive))

	var probed int
	factory := func(c types.Connection) (connector.Connector, error) {
		probed++
		return connector.NewStatic(c, nil), nil
	}

	NewHealthChecker(reg, factory, time.Minute, time.Second).Sweep(ctx)
	assert.Zero(t, probed)

	got, err := reg.Get("parked")
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionInactive, got.Status)
}
