package db

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
)

const (
	defaultSnapshotTableName = "fleet_snapshots"
	dialectPostgres          = "postgres"
	dialectSQLite            = "sqlite3"
	colID                    = "id"
	colState                 = "state"
	colCurrentDay            = "current_day"
	colUpdatedAt             = "updated_at"
	currentTimestamp         = "CURRENT_TIMESTAMP"
	castJsonb                = "?::jsonb"
	castStateText            = "state::text"
)

type sqlQueryString = string

// snapshotQueries builds the statements shared by the relational stores.
// With jsonb set, the state column is written and read as Postgres JSONB.
type snapshotQueries struct {
	dialect   goqu.DialectWrapper
	tableName string
	jsonb     bool
}

func newSnapshotQueries(dialect, tableName string) snapshotQueries {
	if tableName == "" {
		tableName = defaultSnapshotTableName
	}
	return snapshotQueries{
		dialect:   goqu.Dialect(dialect),
		tableName: tableName,
		jsonb:     dialect == dialectPostgres,
	}
}

func (q snapshotQueries) selectState(id string) (sqlQueryString, error) {
	var state exp.Expression = goqu.C(colState)
	if q.jsonb {
		state = goqu.L(castStateText).As(colState)
	}
	query, _, err := q.dialect.
		From(q.tableName).
		Select(state).
		Where(goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("build select query: %w", err)
	}
	return query, nil
}

func (q snapshotQueries) upsertState(id string, state []byte, currentDay int) (sqlQueryString, error) {
	var stateValue any = string(state)
	if q.jsonb {
		stateValue = goqu.L(castJsonb, string(state))
	}
	query, _, err := q.dialect.
		Insert(q.tableName).
		Rows(goqu.Record{
			colID:         id,
			colState:      stateValue,
			colCurrentDay: currentDay,
			colUpdatedAt:  goqu.L(currentTimestamp),
		}).
		OnConflict(goqu.DoUpdate(colID, goqu.Record{
			colState:      goqu.L("EXCLUDED." + colState),
			colCurrentDay: goqu.L("EXCLUDED." + colCurrentDay),
			colUpdatedAt:  goqu.L(currentTimestamp),
		})).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("build upsert query: %w", err)
	}
	return query, nil
}

func (q snapshotQueries) deleteState(id string) (sqlQueryString, error) {
	query, _, err := q.dialect.
		Delete(q.tableName).
		Where(goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return "", fmt.Errorf("build delete query: %w", err)
	}
	return query, nil
}

func (q snapshotQueries) createTable() sqlQueryString {
	stateType, timeType := "TEXT", "TIMESTAMP"
	if q.jsonb {
		stateType, timeType = "JSONB", "TIMESTAMPTZ"
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s TEXT PRIMARY KEY,
	%s %s NOT NULL,
	%s INTEGER NOT NULL,
	%s %s NOT NULL DEFAULT %s
)`, q.tableName, colID, colState, stateType, colCurrentDay, colUpdatedAt, timeType, currentTimestamp)
}
