// Package bootstrap wires the governance components together and runs
// the idempotent startup sequence: open storage, seed the default
// policies, register declared connections.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/yairfalse/vahti/audit"
	"github.com/yairfalse/vahti/config"
	"github.com/yairfalse/vahti/engine"
	"github.com/yairfalse/vahti/ledger"
	"github.com/yairfalse/vahti/policy"
	"github.com/yairfalse/vahti/registry"
	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/telemetry"
	"github.com/yairfalse/vahti/types"
)

// App holds the wired governance components
type App struct {
	Config   *config.Config
	Store    *storage.Store
	Policies *policy.Store
	Registry *registry.Registry
	Ledger   *ledger.Ledger
	Journal  *audit.Journal
	Emitter  *audit.Emitter
	Engine   *engine.Engine
	Metrics  *telemetry.GovernanceMetrics

	logger *telemetry.Logger
}

// New builds the application from config and runs the startup
// sequence. Safe to run against an existing data directory: seeding
// and registration skip anything already present.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := storage.NewStore(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	metrics, err := telemetry.NewGovernanceMetrics()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	var journal *audit.Journal
	if cfg.JournalDir != "" {
		journal, err = audit.OpenJournal(cfg.JournalDir)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("opening audit journal: %w", err)
		}
	}

	app := &App{
		Config:   cfg,
		Store:    store,
		Policies: policy.NewStore(store),
		Registry: registry.NewRegistry(store),
		Ledger:   ledger.NewLedger(store, metrics),
		Journal:  journal,
		Emitter:  audit.NewEmitter(store, journal, metrics, "vahti-bootstrap"),
		Metrics:  metrics,
		logger:   telemetry.NewLogger("bootstrap"),
	}

	app.Engine = engine.New(app.Policies, app.Registry, app.Ledger, app.Emitter, nil,
		metrics, engine.Options{
			Workers:     cfg.Evaluation.Workers,
			CallTimeout: cfg.Evaluation.CallTimeout,
		})

	if err := app.startup(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the app's resources
func (a *App) Close() error {
	var errs []error
	if a.Journal != nil {
		errs = append(errs, a.Journal.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

func (a *App) startup(ctx context.Context) error {
	seeded, err := policy.Seed(ctx, a.Policies)
	if err != nil {
		return fmt.Errorf("seeding policies: %w", err)
	}
	if seeded > 0 {
		if err := a.Emitter.Record(ctx, "governance_bootstrap",
			types.ActionPoliciesSeeded, "governance_policies",
			map[string]any{"seeded": seeded}); err != nil {
			return err
		}
	}

	registered := 0
	for _, decl := range a.Config.Connections {
		conn := decl.Connection()
		err := a.Registry.Register(ctx, conn)
		if errors.Is(err, types.ErrDuplicateIdentifier) {
			continue
		}
		if err != nil {
			return fmt.Errorf("registering connection %s: %w", conn.Name, err)
		}
		registered++
		if err := a.Emitter.Record(ctx, "governance_bootstrap",
			types.ActionDatabaseRegistered, conn.Name,
			map[string]any{"db_type": string(conn.DBType), "environment": string(conn.Environment)}); err != nil {
			return err
		}
	}

	a.logger.WithContext(ctx).Info().
		Int("policies_seeded", seeded).
		Int("connections_registered", registered).
		Msg("bootstrap complete")
	return nil
}
