package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/vahti/config"
	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Version:    "1.0",
		StorageDir: t.TempDir(),
		JournalDir: t.TempDir(),
		Connections: []config.ConnectionDecl{
			{Name: "orders_db", DBType: "mongodb", Environment: "development", DatabaseName: "orders"},
			{Name: "cache", DBType: "redis", Environment: "development"},
		},
	}
}

func TestBootstrapSeedsAndRegisters(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	policies, err := app.Policies.List()
	require.NoError(t, err)
	assert.Len(t, policies, 4)

	conns, err := app.Registry.List()
	require.NoError(t, err)
	assert.Len(t, conns, 2)

	seeded, err := app.Emitter.List(storage.AuditFilter{Action: types.ActionPoliciesSeeded})
	require.NoError(t, err)
	assert.Len(t, seeded, 1)
	registered, err := app.Emitter.List(storage.AuditFilter{Action: types.ActionDatabaseRegistered})
	require.NoError(t, err)
	assert.Len(t, registered, 2)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	cfg := testConfig(t)

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, app.Close())

	// second start against the same data directory
	app, err = New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	policies, err := app.Policies.List()
	require.NoError(t, err)
	assert.Len(t, policies, 4)

	conns, err := app.Registry.List()
	require.NoError(t, err)
	assert.Len(t, conns, 2)

	// no duplicate seed or registration events on the second run
	seeded, err := app.Emitter.List(storage.AuditFilter{Action: types.ActionPoliciesSeeded})
	require.NoError(t, err)
	assert.Len(t, seeded, 1)
	registered, err := app.Emitter.List(storage.AuditFilter{Action: types.ActionDatabaseRegistered})
	require.NoError(t, err)
	assert.Len(t, registered, 2)
}
