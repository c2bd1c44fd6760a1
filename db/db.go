// Package db is the clip metadata index: a SQLite store of every clip the
// engine has produced.
//
// All writes go through one goroutine that owns the only writer connection;
// callers submit operations on a channel and wait for the reply. Reads use a
// separate connection pool and never wait on the writer (the database runs in
// WAL mode).
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	_ "modernc.org/sqlite"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/telemetry"
)

// ErrNotFound is returned when no clip matches a point lookup.
var ErrNotFound = errors.New("index: clip not found")

// errClosed is wrapped in an IndexUnavailableError after Close.
var errClosed = errors.New("index closed")

type opKind int

const (
	opUpsert opKind = iota
	opTouch
	opRepoint
)

type writeOp struct {
	kind   opKind
	record model.ClipRecord
	clipID string
	at     time.Time
	reply  chan writeResult
}

type writeResult struct {
	record  *model.ClipRecord
	created bool
	rows    int64
	err     error
}

// Index is the metadata index.
type Index struct {
	writer *sql.DB
	reader *sql.DB
	logger zerolog.Logger
	now    func() time.Time

	ops     chan writeOp
	quit    chan struct{}
	done    chan struct{}
	pending atomic.Int64
	once    sync.Once
}

// DefaultPath returns the default index location,
// ~/.local/share/clipengine/index.db.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "share", "clipengine", "index.db"), nil
}

// Open opens or creates the index at path, runs migrations and starts the
// writer goroutine. Parent directories are created if they don't exist.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &model.IndexUnavailableError{Op: "open", Err: err}
	}
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &model.IndexUnavailableError{Op: "open", Err: err}
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(ctx); err != nil {
		writer.Close()
		return nil, &model.IndexUnavailableError{Op: "open", Err: err}
	}

	ran, err := runMigrations(ctx, writer)
	if err != nil {
		writer.Close()
		return nil, &model.IndexUnavailableError{Op: "migrate", Err: err}
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, &model.IndexUnavailableError{Op: "open", Err: err}
	}
	if err := reader.PingContext(ctx); err != nil {
		writer.Close()
		reader.Close()
		return nil, &model.IndexUnavailableError{Op: "open", Err: err}
	}

	ix := &Index{
		writer: writer,
		reader: reader,
		logger: logger.With().Str("component", "index").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
		ops:    make(chan writeOp),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if len(ran) > 0 {
		ix.logger.Info().Ints("versions", ran).Msg("applied migrations")
	}
	ix.registerMetrics()
	go ix.writeLoop()
	return ix, nil
}

// Close stops the writer goroutine and closes both connection pools.
// Operations submitted after Close fail with IndexUnavailableError.
func (ix *Index) Close() error {
	var err error
	ix.once.Do(func() {
		close(ix.quit)
		<-ix.done
		err = errors.Join(ix.writer.Close(), ix.reader.Close())
	})
	return err
}

// Ping checks that both handles can reach the database.
func (ix *Index) Ping(ctx context.Context) error {
	select {
	case <-ix.quit:
		return &model.IndexUnavailableError{Op: "ping", Err: errClosed}
	default:
	}
	if err := ix.writer.PingContext(ctx); err != nil {
		return model.AsIndexUnavailable("ping", err)
	}
	if err := ix.reader.PingContext(ctx); err != nil {
		return model.AsIndexUnavailable("ping", err)
	}
	return nil
}

// InsertOrTouch stores rec, or, when a row with the same clip_id already
// exists, bumps its last_requested_at and request_count and leaves every
// other column alone. It returns the stored row and whether it was created.
func (ix *Index) InsertOrTouch(ctx context.Context, rec model.ClipRecord) (*model.ClipRecord, bool, error) {
	res, err := ix.submit(ctx, writeOp{kind: opUpsert, record: rec})
	if err != nil {
		return nil, false, err
	}
	return res.record, res.created, nil
}

// Touch bumps last_requested_at for an existing clip.
func (ix *Index) Touch(ctx context.Context, clipID string) (*model.ClipRecord, error) {
	res, err := ix.submit(ctx, writeOp{kind: opTouch, clipID: clipID})
	if err != nil {
		return nil, err
	}
	return res.record, nil
}

// Repoint moves every clip sharing contentHash onto a freshly produced file.
// It returns the number of rows updated.
func (ix *Index) Repoint(ctx context.Context, contentHash, outputPath, thumbnailPath string, fileSize int64) (int64, error) {
	res, err := ix.submit(ctx, writeOp{kind: opRepoint, record: model.ClipRecord{
		ContentHash:   contentHash,
		OutputPath:    outputPath,
		ThumbnailPath: thumbnailPath,
		FileSize:      fileSize,
	}})
	if err != nil {
		return 0, err
	}
	return res.rows, nil
}

// QueueDepth returns the number of write operations waiting on the writer.
func (ix *Index) QueueDepth() int64 {
	return ix.pending.Load()
}

func (ix *Index) submit(ctx context.Context, op writeOp) (writeResult, error) {
	if err := ctx.Err(); err != nil {
		return writeResult{}, err
	}
	op.at = ix.now()
	op.reply = make(chan writeResult, 1)

	ix.pending.Add(1)
	defer ix.pending.Add(-1)

	select {
	case ix.ops <- op:
	case <-ix.quit:
		return writeResult{}, &model.IndexUnavailableError{Op: "write", Err: errClosed}
	case <-ctx.Done():
		return writeResult{}, ctx.Err()
	}

	// The writer always replies to an op it has received, even if ctx ends.
	res := <-op.reply
	return res, res.err
}

// writeLoop is the only goroutine that touches the writer connection.
func (ix *Index) writeLoop() {
	defer close(ix.done)
	for {
		select {
		case op := <-ix.ops:
			op.reply <- ix.apply(op)
		case <-ix.quit:
			return
		}
	}
}

func (ix *Index) apply(op writeOp) writeResult {
	ctx := context.Background()
	switch op.kind {
	case opUpsert:
		rec, created, err := ix.upsert(ctx, op.record, op.at)
		if err != nil {
			ix.logger.Error().Err(err).Str("clip_id", op.record.ClipID).Msg("upsert failed")
			return writeResult{err: &model.IndexUnavailableError{Op: "insert_or_touch", Err: err}}
		}
		return writeResult{record: rec, created: created}
	case opTouch:
		rec, err := ix.touch(ctx, op.clipID, op.at)
		if errors.Is(err, ErrNotFound) {
			return writeResult{err: err}
		}
		if err != nil {
			ix.logger.Error().Err(err).Str("clip_id", op.clipID).Msg("touch failed")
			return writeResult{err: &model.IndexUnavailableError{Op: "touch", Err: err}}
		}
		return writeResult{record: rec}
	case opRepoint:
		rows, err := ix.repoint(ctx, op.record)
		if err != nil {
			ix.logger.Error().Err(err).Str("hash", op.record.ContentHash).Msg("repoint failed")
			return writeResult{err: &model.IndexUnavailableError{Op: "repoint", Err: err}}
		}
		return writeResult{rows: rows}
	}
	return writeResult{err: fmt.Errorf("index: unknown write op %d", op.kind)}
}

func (ix *Index) upsert(ctx context.Context, rec model.ClipRecord, at time.Time) (*model.ClipRecord, bool, error) {
	extra, err := encodeExtra(rec.Extra)
	if err != nil {
		return nil, false, err
	}

	tx, err := ix.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, UpsertClipSQL,
		rec.ClipID, rec.ContentHash, rec.OutputPath, rec.ThumbnailPath, rec.SourcePath,
		rec.Start, rec.End, string(rec.Kind), rec.SourceID, rec.PlayerID,
		rec.GameID, formatDate(rec.GameDate), rec.Period, string(rec.EventType), rec.Outcome,
		rec.Team, rec.Opponent, rec.Timecode, extra, rec.FileSize,
		at.UnixNano(), at.UnixNano(),
	).Scan(&count)
	if err != nil {
		return nil, false, fmt.Errorf("upsert clip: %w", err)
	}

	stored, err := scanClip(tx.QueryRowContext(ctx, SelectClipsSQL+" WHERE clip_id = ?", rec.ClipID))
	if err != nil {
		return nil, false, fmt.Errorf("reload clip: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}
	return stored, count == 1, nil
}

func (ix *Index) touch(ctx context.Context, clipID string, at time.Time) (*model.ClipRecord, error) {
	result, err := ix.writer.ExecContext(ctx, TouchClipSQL, at.UnixNano(), clipID)
	if err != nil {
		return nil, fmt.Errorf("touch clip: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return scanClip(ix.writer.QueryRowContext(ctx, SelectClipsSQL+" WHERE clip_id = ?", clipID))
}

func (ix *Index) repoint(ctx context.Context, rec model.ClipRecord) (int64, error) {
	result, err := ix.writer.ExecContext(ctx, RepointClipsSQL,
		rec.OutputPath, rec.ThumbnailPath, rec.FileSize, rec.ContentHash)
	if err != nil {
		return 0, fmt.Errorf("repoint clips: %w", err)
	}
	return result.RowsAffected()
}

// registerMetrics exposes the writer queue depth as an observable gauge.
func (ix *Index) registerMetrics() {
	meter := telemetry.Meter("clipengine/index")
	_, _ = meter.Int64ObservableGauge("clipengine.index.write_queue",
		metric.WithDescription("Write operations waiting on the index writer"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(ix.QueueDepth())
			return nil
		}),
	)
}
