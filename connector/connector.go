package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yairfalse/vahti/types"
)

// errNotConnected means Inspect or HealthCheck ran before Connect
var errNotConnected = errors.New("not connected")

// HealthStatus is the result of probing a target database
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	ResponseTime time.Duration `json:"response_time"`
	Message      string        `json:"message,omitempty"`
}

// Connector is the uniform interface over one target database.
// Implementations never mutate the target: Inspect is a read-only pass
// that captures everything the rule evaluators need into a Snapshot.
type Connector interface {
	Connect(ctx context.Context) error
	HealthCheck(ctx context.Context) (HealthStatus, error)
	Inspect(ctx context.Context) (*Snapshot, error)
	Close() error
}

// Factory builds a connector for a registered connection
type Factory func(conn types.Connection) (Connector, error)

// New dispatches on the connection's db type. The switch is the single
// place in the codebase that maps db types to concrete connectors.
func New(conn types.Connection) (Connector, error) {
	switch conn.DBType {
	case types.DBTypeMongoDB:
		return newMongoConnector(conn), nil
	case types.DBTypePostgreSQL:
		return newPostgresConnector(conn), nil
	case types.DBTypeRedis:
		return newRedisConnector(conn), nil
	case types.DBTypeCosmosDB:
		return newCosmosConnector(conn), nil
	case types.DBTypeBlobStorage:
		return newBlobConnector(conn), nil
	}
	return nil, fmt.Errorf("no connector for db type %q", conn.DBType)
}

// unavailable wraps a transport failure in the recoverable
// ConnectorUnavailable taxonomy error
func unavailable(conn types.Connection, err error) error {
	return fmt.Errorf("%w: %s (%s): %v", types.ErrConnectorUnavailable, conn.Name, conn.DBType, err)
}
