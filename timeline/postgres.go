package timeline

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/clipengine/model"
)

//go:embed sql/postgres_schema.sql
var postgresSchemaSQL string

// PostgresStore is a timeline held in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to dsn and checks connectivity. It does not
// create the schema; see EnsureSchema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("timeline: parse postgres DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("timeline: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("timeline: ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the timeline tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("timeline: create schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Games implements Provider.
func (s *PostgresStore) Games(ctx context.Context, q GameQuery) ([]model.Game, error) {
	query, args := gamesSQL(postgresDialect, q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timeline: query games: %w", err)
	}
	defer rows.Close()
	return scanGames(rows)
}

// Events implements Provider.
func (s *PostgresStore) Events(ctx context.Context, q EventQuery) ([]model.TimelineEvent, error) {
	if len(q.GameIDs) == 0 {
		return nil, nil
	}
	query, args := eventsSQL(postgresDialect, q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timeline: query events: %w", err)
	}
	events, err := scanEvents(rows)
	rows.Close()
	if err != nil || len(events) == 0 {
		return events, err
	}

	query, args = participantsSQL(postgresDialect, eventIDs(events))
	prow, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timeline: query participants: %w", err)
	}
	defer prow.Close()
	byEvent, err := scanParticipants(prow)
	if err != nil {
		return nil, err
	}
	attachParticipants(events, byEvent)
	return events, nil
}

// Shifts implements Provider.
func (s *PostgresStore) Shifts(ctx context.Context, q ShiftQuery) ([]model.ShiftInterval, error) {
	if len(q.GameIDs) == 0 {
		return nil, nil
	}
	query, args := shiftsSQL(postgresDialect, q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timeline: query shifts: %w", err)
	}
	defer rows.Close()
	return scanShifts(rows)
}

// Manifest implements Provider.
func (s *PostgresStore) Manifest(ctx context.Context, gameID string, period int) (model.VideoManifestEntry, error) {
	entry := model.VideoManifestEntry{GameID: gameID, Period: period}
	err := s.pool.QueryRow(ctx, manifestSQL(postgresDialect), gameID, period).
		Scan(&entry.SourcePath, &entry.OffsetCorrection, &entry.DurationSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return entry, &model.ManifestMissingError{GameID: gameID, Period: period}
	}
	if err != nil {
		return entry, fmt.Errorf("timeline: query manifest: %w", err)
	}
	return entry, nil
}

// Import replaces every game in f in one transaction.
func (s *PostgresStore) Import(ctx context.Context, f *Fixture) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return importFixture(postgresDialect, f, func(query string, args ...any) error {
			_, err := tx.Exec(ctx, query, args...)
			return err
		})
	})
}
