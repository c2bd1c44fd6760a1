package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/clipengine/model"
)

const dateLayout = "2006-01-02"

// DefaultQueryLimit caps Query when the caller passes no limit.
const DefaultQueryLimit = 100

// GetByID returns the clip with the given clip_id, or ErrNotFound.
func (ix *Index) GetByID(ctx context.Context, clipID string) (*model.ClipRecord, error) {
	rec, err := scanClip(ix.reader.QueryRowContext(ctx, SelectClipsSQL+" WHERE clip_id = ?", clipID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, model.AsIndexUnavailable("get_by_id", err)
	}
	return rec, nil
}

// GetByHash returns the first clip produced for contentHash, or ErrNotFound.
// This is the content cache lookup.
func (ix *Index) GetByHash(ctx context.Context, contentHash string) (*model.ClipRecord, error) {
	rec, err := scanClip(ix.reader.QueryRowContext(ctx,
		SelectClipsSQL+" WHERE content_hash = ? ORDER BY created_at ASC, clip_id ASC LIMIT 1", contentHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, model.AsIndexUnavailable("get_by_hash", err)
	}
	return rec, nil
}

// Query returns clips matching every non-empty filter, newest first.
func (ix *Index) Query(ctx context.Context, f model.Filters, limit int) ([]model.ClipRecord, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	where, args := buildWhere(f)
	query := SelectClipsSQL + where + " ORDER BY created_at DESC, clip_id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := ix.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.AsIndexUnavailable("query", err)
	}
	defer rows.Close()

	var clips []model.ClipRecord
	for rows.Next() {
		rec, err := scanClip(rows)
		if err != nil {
			return nil, model.AsIndexUnavailable("query", err)
		}
		clips = append(clips, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, model.AsIndexUnavailable("query", err)
	}
	return clips, nil
}

// Recent returns the most recently created clips.
func (ix *Index) Recent(ctx context.Context, limit int) ([]model.ClipRecord, error) {
	return ix.Query(ctx, model.Filters{}, limit)
}

// Stats returns aggregate counts over the whole index. TotalBytes counts each
// content hash once since records sharing a hash share a file.
func (ix *Index) Stats(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	err := ix.reader.QueryRowContext(ctx, SelectClipStatsSQL).Scan(
		&s.TotalClips, &s.TotalRequests, &s.DistinctHashes,
		&s.DistinctPlayers, &s.DistinctGames, &s.TotalBytes,
	)
	if err != nil {
		return model.Stats{}, model.AsIndexUnavailable("stats", err)
	}
	return s, nil
}

// buildWhere renders the filter set as a WHERE clause with positional args.
func buildWhere(f model.Filters) (string, []any) {
	var conds []string
	var args []any

	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		conds = append(conds, column+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")+")")
		for _, v := range values {
			args = append(args, v)
		}
	}

	in("player_id", f.Players)
	in("game_id", f.GameIDs)
	types := make([]string, len(f.EventTypes))
	for i, t := range f.EventTypes {
		types[i] = string(t)
	}
	in("event_type", types)
	in("team", f.Teams)

	if !f.From.IsZero() {
		conds = append(conds, "game_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "game_date <= ?")
		args = append(args, formatDate(f.To))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClip(row rowScanner) (*model.ClipRecord, error) {
	var (
		r                    model.ClipRecord
		kind, eventType      string
		gameDate, extra      string
		createdAt, requested int64
	)
	err := row.Scan(
		&r.ClipID, &r.ContentHash, &r.OutputPath, &r.ThumbnailPath, &r.SourcePath,
		&r.Start, &r.End, &kind, &r.SourceID, &r.PlayerID,
		&r.GameID, &gameDate, &r.Period, &eventType, &r.Outcome,
		&r.Team, &r.Opponent, &r.Timecode, &extra, &r.FileSize,
		&r.RequestCount, &createdAt, &requested,
	)
	if err != nil {
		return nil, err
	}
	r.Kind = model.SourceKind(kind)
	r.EventType = model.EventType(eventType)
	if gameDate != "" {
		if d, err := time.Parse(dateLayout, gameDate); err == nil {
			r.GameDate = d
		}
	}
	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &r.Extra); err != nil {
			return nil, fmt.Errorf("decode extra for %s: %w", r.ClipID, err)
		}
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.LastRequestedAt = time.Unix(0, requested).UTC()
	return &r, nil
}

func encodeExtra(extra map[string]string) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("encode extra: %w", err)
	}
	return string(b), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
