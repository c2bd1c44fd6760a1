package timeline

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/user/clipengine/model"
)

//go:embed sql/sqlite_schema.sql
var sqliteSchemaSQL string

// SQLiteStore is a timeline held in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite timeline at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("timeline: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("timeline: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("timeline: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("timeline: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Games implements Provider.
func (s *SQLiteStore) Games(ctx context.Context, q GameQuery) ([]model.Game, error) {
	query, args := gamesSQL(sqliteDialect, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timeline: query games: %w", err)
	}
	defer rows.Close()
	return scanGames(rows)
}

// Events implements Provider.
func (s *SQLiteStore) Events(ctx context.Context, q EventQuery) ([]model.TimelineEvent, error) {
	if len(q.GameIDs) == 0 {
		return nil, nil
	}
	query, args := eventsSQL(sqliteDialect, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timeline: query events: %w", err)
	}
	events, err := scanEvents(rows)
	rows.Close()
	if err != nil || len(events) == 0 {
		return events, err
	}

	query, args = participantsSQL(sqliteDialect, eventIDs(events))
	prow, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStore) Shifts(ctx context.Context, q ShiftQuery) ([]model.ShiftInterval, error) {
	if len(q.GameIDs) == 0 {
		return nil, nil
	}
	query, args := shiftsSQL(sqliteDialect, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timeline: query shifts: %w", err)
	}
	defer rows.Close()
	return scanShifts(rows)
}

// Manifest implements Provider.
func (s *SQLiteStore) Manifest(ctx context.Context, gameID string, period int) (model.VideoManifestEntry, error) {
	entry := model.VideoManifestEntry{GameID: gameID, Period: period}
	err := s.db.QueryRowContext(ctx, manifestSQL(sqliteDialect), gameID, period).
		Scan(&entry.SourcePath, &entry.OffsetCorrection, &entry.DurationSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, &model.ManifestMissingError{GameID: gameID, Period: period}
	}
	if err != nil {
		return entry, fmt.Errorf("timeline: query manifest: %w", err)
	}
	return entry, nil
}

// Import replaces every game in f, including its events, shifts and
// manifest rows, in one transaction.
func (s *SQLiteStore) Import(ctx context.Context, f *Fixture) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	exec := func(query string, args ...any) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}
	if err := importFixture(sqliteDialect, f, exec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// importFixture issues the statements for f through exec.
func importFixture(d dialect, f *Fixture, exec func(query string, args ...any) error) error {
	p := d.placeholder
	for _, g := range f.Games {
		date, err := parseDate(g.Date)
		if err != nil {
			return err
		}
		if err := exec("DELETE FROM video_manifest WHERE game_id = "+p(1), g.ID); err != nil {
			return fmt.Errorf("clear manifest %s: %w", g.ID, err)
		}
		if err := exec("DELETE FROM games WHERE game_id = "+p(1), g.ID); err != nil {
			return fmt.Errorf("clear game %s: %w", g.ID, err)
		}
		if err := exec(fmt.Sprintf("INSERT INTO games (game_id, game_date, home_team, away_team) VALUES (%s, %s, %s, %s)",
			p(1), p(2), p(3), p(4)), g.ID, d.dateArg(date), g.Home, g.Away); err != nil {
			return fmt.Errorf("insert game %s: %w", g.ID, err)
		}
		for _, m := range g.Manifest {
			if err := exec(fmt.Sprintf("INSERT INTO video_manifest (game_id, period, source_path, offset_correction, duration_seconds) VALUES (%s, %s, %s, %s, %s)",
				p(1), p(2), p(3), p(4), p(5)), g.ID, m.Period, m.Source, m.Offset, m.Duration); err != nil {
				return fmt.Errorf("insert manifest %s/%d: %w", g.ID, m.Period, err)
			}
		}
		for _, e := range g.Events {
			extra := "{}"
			if len(e.Extra) > 0 {
				b, err := json.Marshal(e.Extra)
				if err != nil {
					return fmt.Errorf("encode extra for %s: %w", e.ID, err)
				}
				extra = string(b)
			}
			if err := exec(fmt.Sprintf("INSERT INTO events (event_id, game_id, period, timecode, event_type, outcome, team, extra) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
				p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8)), e.ID, g.ID, e.Period, e.Timecode, e.Type, e.Outcome, e.Team, extra); err != nil {
				return fmt.Errorf("insert event %s: %w", e.ID, err)
			}
			for i, player := range e.Players {
				if err := exec(fmt.Sprintf("INSERT INTO event_players (event_id, player_id, position) VALUES (%s, %s, %s)",
					p(1), p(2), p(3)), e.ID, player, i); err != nil {
					return fmt.Errorf("insert participant %s/%s: %w", e.ID, player, err)
				}
			}
		}
		for _, s := range g.Shifts {
			if err := exec(fmt.Sprintf("INSERT INTO shifts (shift_id, game_id, period, player_id, team, start_offset, end_offset) VALUES (%s, %s, %s, %s, %s, %s, %s)",
				p(1), p(2), p(3), p(4), p(5), p(6), p(7)), s.ID, g.ID, s.Period, s.Player, s.Team, s.Start, s.End); err != nil {
				return fmt.Errorf("insert shift %s: %w", s.ID, err)
			}
		}
	}
	return nil
}
