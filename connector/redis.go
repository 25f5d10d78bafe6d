package connector

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yairfalse/vahti/types"
)

// keySampleLimit bounds the SCAN sample used for TTL coverage
const keySampleLimit = 100

// redisConnector inspects a Redis instance
type redisConnector struct {
	conn   types.Connection
	client *redis.Client
}

func newRedisConnector(conn types.Connection) *redisConnector {
	return &redisConnector{conn: conn}
}

func (r *redisConnector) Connect(ctx context.Context) error {
	opts, err := redis.ParseURL(r.conn.ConnectionString)
	if err != nil {
		return unavailable(r.conn, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return unavailable(r.conn, err)
	}
	r.client = client
	return nil
}

func (r *redisConnector) HealthCheck(ctx context.Context) (HealthStatus, error) {
	if r.client == nil {
		return HealthStatus{}, unavailable(r.conn, errNotConnected)
	}

	start := time.Now()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return HealthStatus{Healthy: false, ResponseTime: time.Since(start), Message: err.Error()},
			unavailable(r.conn, err)
	}
	return HealthStatus{Healthy: true, ResponseTime: time.Since(start)}, nil
}

func (r *redisConnector) Inspect(ctx context.Context) (*Snapshot, error) {
	if r.client == nil {
		return nil, unavailable(r.conn, errNotConnected)
	}

	kv := &KeyValueSnapshot{}

	info, err := r.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, unavailable(r.conn, err)
	}
	if used, ok := parseInfoInt(info, "used_memory"); ok {
		kv.UsedMemoryBytes = used
		kv.HasMemoryInfo = true
	}

	keyCount, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return nil, unavailable(r.conn, err)
	}
	kv.KeyCount = keyCount

	// Sample keys with SCAN rather than KEYS to stay off the hot path
	iter := r.client.Scan(ctx, 0, "*", keySampleLimit).Iterator()
	for iter.Next(ctx) {
		if kv.SampledKeys >= keySampleLimit {
			break
		}
		kv.SampledKeys++

		ttl, err := r.client.TTL(ctx, iter.Val()).Result()
		if err != nil {
			return nil, unavailable(r.conn, err)
		}
		if ttl == -1 {
			kv.KeysWithoutTTL++
		}
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable(r.conn, err)
	}

	return &Snapshot{
		Connection: r.conn.Name,
		DBType:     types.DBTypeRedis,
		TakenAt:    time.Now(),
		KeyValue:   kv,
	}, nil
}

func (r *redisConnector) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// parseInfoInt pulls an integer field out of INFO output
func parseInfoInt(info, field string) (int64, bool) {
	for _, line := range strings.Split(info, "\r\n") {
		if !strings.HasPrefix(line, field+":") {
			continue
		}
		raw := strings.TrimPrefix(line, field+":")
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
