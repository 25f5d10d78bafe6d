package connector

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/yairfalse/vahti/types"
)

// cosmosConnector inspects an Azure Cosmos DB database
type cosmosConnector struct {
	conn     types.Connection
	client   *azcosmos.Client
	database *azcosmos.DatabaseClient
}

func newCosmosConnector(conn types.Connection) *cosmosConnector {
	return &cosmosConnector{conn: conn}
}

func (c *cosmosConnector) Connect(ctx context.Context) error {
	client, err := azcosmos.NewClientFromConnectionString(c.conn.ConnectionString, nil)
	if err != nil {
		return unavailable(c.conn, err)
	}

	database, err := client.NewDatabase(c.conn.DatabaseName)
	if err != nil {
		return unavailable(c.conn, err)
	}
	if _, err := database.Read(ctx, nil); err != nil {
		return unavailable(c.conn, err)
	}

	c.client = client
	c.database = database
	return nil
}

func (c *cosmosConnector) HealthCheck(ctx context.Context) (HealthStatus, error) {
	if c.database == nil {
		return HealthStatus{}, unavailable(c.conn, errNotConnected)
	}

	start := time.Now()
	if _, err := c.database.Read(ctx, nil); err != nil {
		return HealthStatus{Healthy: false, ResponseTime: time.Since(start), Message: err.Error()},
			unavailable(c.conn, err)
	}
	return HealthStatus{Healthy: true, ResponseTime: time.Since(start)}, nil
}

func (c *cosmosConnector) Inspect(ctx context.Context) (*Snapshot, error) {
	if c.database == nil {
		return nil, unavailable(c.conn, errNotConnected)
	}

	wide := &WideColumnSnapshot{}

	pager := c.database.NewQueryContainersPager("SELECT * FROM root", nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, unavailable(c.conn, err)
		}
		for _, props := range page.Containers {
			info := ContainerInfo{
				Name:              props.ID,
				HasIndexingPolicy: props.IndexingPolicy != nil,
			}
			if props.DefaultTimeToLive != nil {
				info.HasDefaultTTL = true
				info.DefaultTTLSeconds = *props.DefaultTimeToLive
			}
			wide.Containers = append(wide.Containers, info)
		}
	}

	return &Snapshot{
		Connection: c.conn.Name,
		DBType:     types.DBTypeCosmosDB,
		TakenAt:    time.Now(),
		WideColumn: wide,
	}, nil
}

func (c *cosmosConnector) Close() error {
	// The cosmos SDK client has no explicit close
	c.client = nil
	c.database = nil
	return nil
}
