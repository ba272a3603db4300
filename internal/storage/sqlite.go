package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"tempestsync/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrBadObservation is returned when a batch contains a record without a
// usable (device_id, timestamp) key. The whole batch is rejected.
var ErrBadObservation = errors.New("storage: observation missing device id or timestamp")

// DB wraps the SQLite weather database. The table is directly queryable with
// plain SQL by the user after a run; nothing here is private format.
type DB struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the weather database at path and ensures
// the schema is current. Safe to call on every run.
func Open(path string, log *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &DB{db: db, log: log}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return s, nil
}

func (s *DB) ensureSchema() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// LatestTimestamp returns the maximum stored observation timestamp for a
// device. ok is false when the device has no records yet.
func (s *DB) LatestTimestamp(ctx context.Context, deviceID int64) (ts int64, ok bool, err error) {
	var max sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		"SELECT MAX(timestamp) FROM weather WHERE device_id = ?", deviceID,
	).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query latest timestamp for device %d: %w", deviceID, err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return max.Int64, true, nil
}

// replaceSQL is built once from the canonical column list. REPLACE keyed by
// the (device_id, timestamp) primary key is what makes re-fetching the
// revision window idempotent: a revised row overwrites the stale one.
var replaceSQL = fmt.Sprintf(
	"REPLACE INTO weather (%s) VALUES (%s)",
	strings.Join(model.Columns, ", "),
	strings.TrimSuffix(strings.Repeat("?, ", len(model.Columns)), ", "),
)

// UpsertObservations writes one page of observations in a single
// transaction. Either the whole page commits or none of it does, so the
// watermark can never point past a half-written page.
func (s *DB) UpsertObservations(ctx context.Context, obs []model.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, replaceSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if o.DeviceID == 0 || o.Timestamp == 0 {
			return fmt.Errorf("%w: device=%d timestamp=%d", ErrBadObservation, o.DeviceID, o.Timestamp)
		}

		args := make([]any, 0, len(model.Columns))
		args = append(args, o.DeviceID, o.Timestamp)
		for _, col := range model.Columns[2:] {
			v, ok := o.Fields[col]
			if !ok {
				args = append(args, nil)
				continue
			}
			args = append(args, v)
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to upsert observation for device %d at %d: %w", o.DeviceID, o.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.log.Debug("committed observation page", "count", len(obs), "device", obs[0].DeviceID)
	return nil
}

// Close closes the underlying connection.
func (s *DB) Close() error {
	return s.db.Close()
}
