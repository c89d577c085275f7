package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded backend for single-node and development
// deployments. SQLite's default BINARY collation already orders TEXT
// byte-wise, so no collation override is needed.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS library_rows (
		partition_key TEXT NOT NULL,
		row_key TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (partition_key, row_key)
	)
`

// OpenSQLite opens or creates the database at the given path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("rowstore: sqlite path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure library_rows: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Scan(ctx context.Context, partition, start string, limit int) ([]Row, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows *sql.Rows
	var err error
	if start == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT row_key, value FROM library_rows
			WHERE partition_key = ?
			ORDER BY row_key DESC
			LIMIT ?
		`, partition, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT row_key, value FROM library_rows
			WHERE partition_key = ? AND row_key < ?
			ORDER BY row_key DESC
			LIMIT ?
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

func (s *SQLite) Apply(ctx context.Context, ops []Op) error {
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
				VALUES (?, ?, ?)
				ON CONFLICT (partition_key, row_key) DO UPDATE SET value = excluded.value
			`, op.Partition, op.Key, op.Value)
		} else {
			_, err = tx.ExecContext(ctx, `
				DELETE FROM library_rows WHERE partition_key = ? AND row_key = ?
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

func (s *SQLite) DropPartition(ctx context.Context, partition string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM library_rows WHERE partition_key = ?`, partition); err != nil {
		return fmt.Errorf("drop partition: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
