package connector

import (
	"context"
	"time"

	"github.com/yairfalse/vahti/types"
)

// StaticConnector serves a canned snapshot. It backs tests and local
// development where no live database is reachable, and can be forced
// to fail at any stage to exercise unavailability handling.
type StaticConnector struct {
	Conn       types.Connection
	Snap       *Snapshot
	ConnectErr error
	HealthErr  error
	InspectErr error

	connected bool
}

// NewStatic builds a static connector that returns snap from Inspect.
func NewStatic(conn types.Connection, snap *Snapshot) *StaticConnector {
	return &StaticConnector{Conn: conn, Snap: snap}
}

func (s *StaticConnector) Connect(ctx context.Context) error {
	if s.ConnectErr != nil {
		return unavailable(s.Conn, s.ConnectErr)
	}
	s.connected = true
	return nil
}

func (s *StaticConnector) HealthCheck(ctx context.Context) (HealthStatus, error) {
	if s.HealthErr != nil {
		return HealthStatus{Healthy: false, Message: s.HealthErr.Error()},
			unavailable(s.Conn, s.HealthErr)
	}
	if !s.connected {
		return HealthStatus{}, unavailable(s.Conn, errNotConnected)
	}
	return HealthStatus{Healthy: true, ResponseTime: time.Microsecond}, nil
}

func (s *StaticConnector) Inspect(ctx context.Context) (*Snapshot, error) {
	if s.InspectErr != nil {
		return nil, unavailable(s.Conn, s.InspectErr)
	}
	if !s.connected {
		return nil, unavailable(s.Conn, errNotConnected)
	}
	if s.Snap == nil {
		return &Snapshot{Connection: s.Conn.Name, DBType: s.Conn.DBType, TakenAt: time.Now()}, nil
	}
	return s.Snap, nil
}

func (s *StaticConnector) Close() error {
	s.connected = false
	return nil
}
