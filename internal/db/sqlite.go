package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/ukydev/fleet-carsharing/internal/models"
	_ "modernc.org/sqlite" // driver import
)

// OpenSQLite opens the SQLite database file at path.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// a single connection keeps writers from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return db, nil
}

// SQLiteSnapshotStore keeps fleet snapshots in a local SQLite table.
type SQLiteSnapshotStore struct {
	db      *sqlx.DB
	id      string
	queries snapshotQueries
}

// NewSQLiteSnapshotStore creates a store on an open database.
func NewSQLiteSnapshotStore(db *sqlx.DB, id, tableName string) (*SQLiteSnapshotStore, error) {
	if db == nil {
		return nil, errors.New("sqlite database is nil")
	}
	return &SQLiteSnapshotStore{
		db:      db,
		id:      id,
		queries: newSnapshotQueries(dialectSQLite, tableName),
	}, nil
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *SQLiteSnapshotStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.queries.createTable()); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	return nil
}

// Load reads the snapshot row.
func (s *SQLiteSnapshotStore) Load(ctx context.Context) (models.Snapshot, error) {
	query, err := s.queries.selectState(s.id)
	if err != nil {
		return models.Snapshot{}, err
	}

	var state string
	if err := s.db.GetContext(ctx, &state, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Snapshot{}, ErrSnapshotNotFound
		}
		return models.Snapshot{}, fmt.Errorf("query snapshot %q: %w", s.id, err)
	}
	return DecodeSnapshot([]byte(state))
}

// Save upserts the snapshot row.
func (s *SQLiteSnapshotStore) Save(ctx context.Context, snapshot models.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	query, err := s.queries.upsertState(s.id, data, snapshot.CurrentDay)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("save snapshot %q: %w", s.id, err)
	}
	return nil
}

// Delete removes the snapshot row.
func (s *SQLiteSnapshotStore) Delete(ctx context.Context) error {
	query, err := s.queries.deleteState(s.id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query)
	return err
}
