package repositories

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	roomtypes "github.com/muster-live/muster/pkg/rooms/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	code TEXT PRIMARY KEY,
	record BLOB NOT NULL,
	deadline INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %v", err)
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveRoom(ctx context.Context, code string, record *roomtypes.RoomRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	q := `
	INSERT OR REPLACE INTO rooms (code, record, deadline, updated_at)
	VALUES (?, ?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, code, data, record.Deadline, nowMillis()); err != nil {
		return fmt.Errorf("failed to insert room: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadRoom(ctx context.Context, code string) (*roomtypes.RoomRecord, error) {
	q := `
	SELECT record FROM rooms WHERE code = ?;
	`
	var data []byte
	if err := r.db.QueryRowContext(ctx, q, code).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan room: %v", err)
	}

	return decodeRecord(data)
}

func (r *SQLiteRepository) DeleteRoom(ctx context.Context, code string) error {
	q := `
	DELETE FROM rooms WHERE code = ?;
	`
	if _, err := r.db.ExecContext(ctx, q, code); err != nil {
		return fmt.Errorf("failed to delete room: %v", err)
	}

	return nil
}
