package connector

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/yairfalse/vahti/types"
)

// sampleDocs bounds how many documents Inspect reads per collection
const sampleDocs = 10

// mongoConnector inspects a MongoDB deployment
type mongoConnector struct {
	conn   types.Connection
	client *mongo.Client
}

func newMongoConnector(conn types.Connection) *mongoConnector {
	return &mongoConnector{conn: conn}
}

func (m *mongoConnector) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.conn.ConnectionString))
	if err != nil {
		return unavailable(m.conn, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return unavailable(m.conn, err)
	}
	m.client = client
	return nil
}

func (m *mongoConnector) HealthCheck(ctx context.Context) (HealthStatus, error) {
	if m.client == nil {
		return HealthStatus{}, unavailable(m.conn, errNotConnected)
	}

	start := time.Now()
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return HealthStatus{Healthy: false, ResponseTime: time.Since(start), Message: err.Error()},
			unavailable(m.conn, err)
	}
	return HealthStatus{Healthy: true, ResponseTime: time.Since(start)}, nil
}

func (m *mongoConnector) Inspect(ctx context.Context) (*Snapshot, error) {
	if m.client == nil {
		return nil, unavailable(m.conn, errNotConnected)
	}

	db := m.client.Database(m.conn.DatabaseName)
	specs, err := db.ListCollectionSpecifications(ctx, bson.D{})
	if err != nil {
		return nil, unavailable(m.conn, err)
	}

	doc := &DocumentStoreSnapshot{}
	for _, spec := range specs {
		if spec.Type != "collection" {
			continue
		}
		info, err := m.inspectCollection(ctx, db, spec)
		if err != nil {
			return nil, unavailable(m.conn, err)
		}
		doc.Collections = append(doc.Collections, info)
	}

	return &Snapshot{
		Connection: m.conn.Name,
		DBType:     types.DBTypeMongoDB,
		TakenAt:    time.Now(),
		Document:   doc,
	}, nil
}

func (m *mongoConnector) inspectCollection(ctx context.Context, db *mongo.Database, spec *mongo.CollectionSpecification) (CollectionInfo, error) {
	info := CollectionInfo{Name: spec.Name}

	if _, err := spec.Options.LookupErr("validator"); err == nil {
		info.HasValidator = true
	}

	coll := db.Collection(spec.Name)

	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return info, err
	}
	var indexes []bson.M
	if err := cursor.All(ctx, &indexes); err != nil {
		return info, err
	}
	info.IndexCount = len(indexes)

	count, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return info, err
	}
	info.DocumentCount = count

	// Sample a handful of documents to estimate field completeness
	findCursor, err := coll.Find(ctx, bson.D{}, options.Find().SetLimit(sampleDocs))
	if err != nil {
		return info, err
	}
	var docs []bson.M
	if err := findCursor.All(ctx, &docs); err != nil {
		return info, err
	}
	if len(docs) > 0 {
		total := 0
		for _, d := range docs {
			total += len(d)
		}
		info.AvgFieldCount = float64(total) / float64(len(docs))
		info.Sampled = true
	}

	return info, nil
}

func (m *mongoConnector) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
