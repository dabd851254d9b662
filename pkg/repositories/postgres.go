package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/muster-live/muster/pkg/log"
	roomtypes "github.com/muster-live/muster/pkg/rooms/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	code TEXT PRIMARY KEY,
	record BYTEA NOT NULL,
	deadline BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
`

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to the database and ensures the
// schema exists. The caller is responsible for calling Close() on the
// repository.
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	if err := conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		return nil, fmt.Errorf("unable to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	if _, err := conn.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %v", err)
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) SaveRoom(ctx context.Context, code string, record *roomtypes.RoomRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	q := `
	INSERT INTO rooms (code, record, deadline, updated_at) VALUES ($1, $2, $3, $4)
	ON CONFLICT (code) DO UPDATE SET record = $2, deadline = $3, updated_at = $4;
	`
	if _, err := r.conn.Exec(ctx, q, code, data, record.Deadline, nowMillis()); err != nil {
		return fmt.Errorf("failed to insert room: %v", err)
	}

	return nil
}

func (r *PostgresRepository) LoadRoom(ctx context.Context, code string) (*roomtypes.RoomRecord, error) {
	q := `
	SELECT record FROM rooms WHERE code = $1;
	`
	var data []byte
	if err := r.conn.QueryRow(ctx, q, code).Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan room: %v", err)
	}

	return decodeRecord(data)
}

func (r *PostgresRepository) DeleteRoom(ctx context.Context, code string) error {
	q := `
	DELETE FROM rooms WHERE code = $1;
	`
	if _, err := r.conn.Exec(ctx, q, code); err != nil {
		return fmt.Errorf("failed to delete room: %v", err)
	}

	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
