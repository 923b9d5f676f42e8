package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

// NewPostgresPool opens a pgx connection pool for the given DSN.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	const defaultMaxConnections = int32(4)
	const defaultMinConnections = int32(1)
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultConnectTimeout = time.Second * 5

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = defaultMaxConnections
	cfg.MinConns = defaultMinConnections
	cfg.MaxConnIdleTime = defaultMaxConnIdleTime
	cfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// PostgresSnapshotStore keeps fleet snapshots in a PostgreSQL table, one row per ID.
type PostgresSnapshotStore struct {
	pool    *pgxpool.Pool
	id      string
	queries snapshotQueries
}

// NewPostgresSnapshotStore creates a store on an open pool. An empty table
// name selects the default table.
func NewPostgresSnapshotStore(pool *pgxpool.Pool, id, tableName string) (*PostgresSnapshotStore, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	return &PostgresSnapshotStore{
		pool:    pool,
		id:      id,
		queries: newSnapshotQueries(dialectPostgres, tableName),
	}, nil
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *PostgresSnapshotStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.queries.createTable()); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	return nil
}

// Load reads the snapshot row.
func (s *PostgresSnapshotStore) Load(ctx context.Context) (models.Snapshot, error) {
	query, err := s.queries.selectState(s.id)
	if err != nil {
		return models.Snapshot{}, err
	}

	var state string
	if err := s.pool.QueryRow(ctx, query).Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Snapshot{}, ErrSnapshotNotFound
		}
		return models.Snapshot{}, fmt.Errorf("query snapshot %q: %w", s.id, err)
	}
	return DecodeSnapshot([]byte(state))
}

// Save upserts the snapshot row.
func (s *PostgresSnapshotStore) Save(ctx context.Context, snapshot models.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	query, err := s.queries.upsertState(s.id, data, snapshot.CurrentDay)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("save snapshot %q: %w", s.id, err)
	}
	return nil
}

// Delete removes the snapshot row.
func (s *PostgresSnapshotStore) Delete(ctx context.Context) error {
	query, err := s.queries.deleteState(s.id)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, query)
	return err
}
