package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/telemetry"
	"github.com/yairfalse/vahti/types"
)

// legalTransitions whitelists connection status changes. Anything not
// listed here (notably inactive -> error) is an InvalidTransition.
var legalTransitions = map[types.ConnectionStatus][]types.ConnectionStatus{
	types.ConnectionActive: {types.ConnectionInactive, types.ConnectionError},
	types.ConnectionError:  {types.ConnectionActive},
}

// Registry holds metadata for registered database connections and owns
// their status lifecycle.
type Registry struct {
	// mu serializes status read-modify-write so MarkStatus behaves as a
	// compare-and-set keyed by connection name.
	mu      sync.Mutex
	storage *storage.Store
	logger  *telemetry.Logger
}

// NewRegistry creates a connector registry on top of the persistence layer
func NewRegistry(s *storage.Store) *Registry {
	return &Registry{
		storage: s,
		logger:  telemetry.NewLogger("connector-registry"),
	}
}

// Register adds a connection with initial status active. Fails with
// DuplicateIdentifier when the name is taken.
func (r *Registry) Register(ctx context.Context, c types.Connection) error {
	c.Status = types.ConnectionActive
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if err := r.storage.CreateConnection(c); err != nil {
		return err
	}

	r.logger.WithContext(ctx).Info().
		Str("connection", c.Name).
		Str("db_type", string(c.DBType)).
		Str("environment", string(c.Environment)).
		Msg("connection registered")
	return nil
}

// Get loads a connection by name
func (r *Registry) Get(name string) (types.Connection, error) {
	return r.storage.GetConnection(name)
}

// List returns all registered connections
func (r *Registry) List() ([]types.Connection, error) {
	return r.storage.ListConnections("")
}

// ListActive returns the connections currently in status active.
// Each call re-queries the store, so repeating the call after status
// changes reflects the latest state.
func (r *Registry) ListActive() ([]types.Connection, error) {
	return r.storage.ListConnections(types.ConnectionActive)
}

// MarkStatus transitions a connection's status. The change is a
// compare-and-set: the transition is validated against the status read
// under the registry lock, and concurrent callers serialize here.
func (r *Registry) MarkStatus(ctx context.Context, name string, status types.ConnectionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown connection status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.storage.GetConnection(name)
	if err != nil {
		return err
	}
	if c.Status == status {
		return nil
	}
	if !transitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: connection %s cannot go %s -> %s",
			types.ErrInvalidTransition, name, c.Status, status)
	}

	c.Status = status
	if err := r.storage.UpdateConnection(c); err != nil {
		return err
	}

	r.logger.WithContext(ctx).Info().
		Str("connection", name).
		Str("status", string(status)).
		Msg("connection status changed")
	return nil
}

// RecordHealthCheck stamps the last health check time on a connection
func (r *Registry) RecordHealthCheck(ctx context.Context, name string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.storage.GetConnection(name)
	if err != nil {
		return err
	}
	c.LastHealthCheck = at
	return r.storage.UpdateConnection(c)
}

func transitionAllowed(from, to types.ConnectionStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
