// Package timeline reads the external event timeline: games, play-by-play
// events, player shifts and the video manifest that maps each (game, period)
// to a source file.
//
// Two stores implement Provider: a SQLite file (also used for fixtures) and a
// Postgres database reached through pgx.
package timeline

import (
	"context"
	"strings"
	"time"

	"github.com/user/clipengine/model"
)

// Provider is the read side of the event timeline.
type Provider interface {
	// Games returns games matching q, newest first. When q.Latest > 0 at
	// most that many games are returned.
	Games(ctx context.Context, q GameQuery) ([]model.Game, error)
	// Events returns events matching q in no particular order.
	Events(ctx context.Context, q EventQuery) ([]model.TimelineEvent, error)
	// Shifts returns shifts matching q in no particular order.
	Shifts(ctx context.Context, q ShiftQuery) ([]model.ShiftInterval, error)
	// Manifest returns the source video for a period, or a
	// *model.ManifestMissingError.
	Manifest(ctx context.Context, gameID string, period int) (model.VideoManifestEntry, error)
	Close() error
}

// GameQuery selects games. Empty fields match everything.
type GameQuery struct {
	GameIDs  []string
	Players  []string
	Team     string
	Opponent string
	From     time.Time
	To       time.Time
	Latest   int
}

// EventQuery selects events within a known game set.
type EventQuery struct {
	GameIDs    []string
	Players    []string
	EventTypes []model.EventType
	Team       string
	Opponent   string
}

// ShiftQuery selects shifts within a known game set.
type ShiftQuery struct {
	GameIDs  []string
	Players  []string
	Team     string
	Opponent string
}

// Open picks a store from the DSN: postgres:// and postgresql:// URLs go to
// Postgres, anything else is treated as a SQLite file path.
func Open(ctx context.Context, dsn string) (Provider, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(ctx, dsn)
	}
	return OpenSQLite(ctx, dsn)
}

// Importer loads a fixture into a store.
type Importer interface {
	Import(ctx context.Context, f *Fixture) error
}
