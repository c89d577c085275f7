package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores rows in a single library_rows table keyed by
// (partition_key, row_key). row_key carries the "C" collation so ORDER BY
// and range comparisons are byte-wise, matching the other backends.
type Postgres struct {
	db *sql.DB
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS library_rows (
		partition_key TEXT NOT NULL,
		row_key TEXT COLLATE "C" NOT NULL,
		value BYTEA NOT NULL,
		PRIMARY KEY (partition_key, row_key)
	)
`

// OpenPostgres connects, tunes the pool, and bootstraps the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure library_rows: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresWithDB wraps an existing connection pool. The caller is
// responsible for the schema.
func NewPostgresWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Scan(ctx context.Context, partition, start string, limit int) ([]Row, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows *sql.Rows
	var err error
	if start == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT row_key, value FROM library_rows
			WHERE partition_key = $1
			ORDER BY row_key DESC
			LIMIT $2
		`, partition, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT row_key, value FROM library_rows
			WHERE partition_key = $1 AND row_key < $2
			ORDER BY row_key DESC
			LIMIT $3
		`, partition, start, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("scan partition: %w", err)
	}
	defer rows.Close()

	result := make([]Row, 0, limit)
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.Key, &row.Value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func (s *Postgres) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	for _, op := range ops {
		if op.Put {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO library_rows (partition_key, row_key, value)
				VALUES ($1, $2, $3)
				ON CONFLICT (partition_key, row_key) DO UPDATE SET value = EXCLUDED.value
			`, op.Partition, op.Key, op.Value)
		} else {
			_, err = tx.ExecContext(ctx, `
				DELETE FROM library_rows WHERE partition_key = $1 AND row_key = $2
			`, op.Partition, op.Key)
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply op: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *Postgres) DropPartition(ctx context.Context, partition string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM library_rows WHERE partition_key = $1`, partition); err != nil {
		return fmt.Errorf("drop partition: %w", err)
	}
	return nil
}

func (s *Postgres) Close() error {
	return s.db.Close()
}
