package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/yairfalse/vahti/types"
)

// nullCheckTableLimit bounds how many tables Inspect probes for NULL
// values in NOT NULL columns; the full sweep is too expensive to run
// against a live production target
const nullCheckTableLimit = 5

// postgresConnector inspects a PostgreSQL database
type postgresConnector struct {
	conn types.Connection
	db   *sql.DB
}

func newPostgresConnector(conn types.Connection) *postgresConnector {
	return &postgresConnector{conn: conn}
}

func (p *postgresConnector) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", p.conn.ConnectionString)
	if err != nil {
		return unavailable(p.conn, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return unavailable(p.conn, err)
	}
	p.db = db
	return nil
}

func (p *postgresConnector) HealthCheck(ctx context.Context) (HealthStatus, error) {
	if p.db == nil {
		return HealthStatus{}, unavailable(p.conn, errNotConnected)
	}

	start := time.Now()
	if err := p.db.PingContext(ctx); err != nil {
		return HealthStatus{Healthy: false, ResponseTime: time.Since(start), Message: err.Error()},
			unavailable(p.conn, err)
	}
	return HealthStatus{Healthy: true, ResponseTime: time.Since(start)}, nil
}

func (p *postgresConnector) Inspect(ctx context.Context) (*Snapshot, error) {
	if p.db == nil {
		return nil, unavailable(p.conn, errNotConnected)
	}

	tables, err := p.listTablesWithForeignKeys(ctx)
	if err != nil {
		return nil, unavailable(p.conn, err)
	}

	if err := p.sampleNotNullColumns(ctx, tables); err != nil {
		return nil, unavailable(p.conn, err)
	}

	return &Snapshot{
		Connection: p.conn.Name,
		DBType:     types.DBTypePostgreSQL,
		TakenAt:    time.Now(),
		Relational: &RelationalSnapshot{Tables: tables},
	}, nil
}

// listTablesWithForeignKeys counts FK constraints per public table
func (p *postgresConnector) listTablesWithForeignKeys(ctx context.Context) ([]TableInfo, error) {
	const query = `
		SELECT t.table_name,
		       COUNT(tc.constraint_name) AS fk_count
		FROM information_schema.tables t
		LEFT JOIN information_schema.table_constraints tc
		       ON t.table_name = tc.table_name
		      AND tc.constraint_type = 'FOREIGN KEY'
		WHERE t.table_schema = 'public'
		  AND t.table_type = 'BASE TABLE'
		GROUP BY t.table_name
		ORDER BY t.table_name`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []TableInfo
	for rows.Next() {
		var info TableInfo
		if err := rows.Scan(&info.Name, &info.ForeignKeyCount); err != nil {
			return nil, err
		}
		tables = append(tables, info)
	}
	return tables, rows.Err()
}

// sampleNotNullColumns counts NULLs sitting in NOT NULL columns for a
// bounded set of tables
func (p *postgresConnector) sampleNotNullColumns(ctx context.Context, tables []TableInfo) error {
	for i := range tables {
		if i >= nullCheckTableLimit {
			break
		}

		const columnsQuery = `
			SELECT column_name
			FROM information_schema.columns
			WHERE table_schema = 'public'
			  AND table_name = $1
			  AND is_nullable = 'NO'`

		rows, err := p.db.QueryContext(ctx, columnsQuery, tables[i].Name)
		if err != nil {
			return err
		}

		var columns []string
		for rows.Next() {
			var col string
			if err := rows.Scan(&col); err != nil {
				_ = rows.Close()
				return err
			}
			columns = append(columns, col)
		}
		if err := rows.Close(); err != nil {
			return err
		}

		for _, col := range columns {
			// Identifiers come from information_schema, not user input
			nullQuery := fmt.Sprintf(
				`SELECT COUNT(*) FROM %q WHERE %q IS NULL`, tables[i].Name, col)

			var count int64
			if err := p.db.QueryRowContext(ctx, nullQuery).Scan(&count); err != nil {
				// Views and permission gaps are expected; skip the column
				continue
			}
			tables[i].NullsInNotNull += count
			tables[i].NullsSampled = true
		}
	}
	return nil
}

func (p *postgresConnector) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
