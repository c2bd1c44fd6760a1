package clip

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/user/clipengine/db"
	"github.com/user/clipengine/model"
	"github.com/user/clipengine/telemetry"
)

// Transcoder runs the external cut and thumbnail operations.
type Transcoder interface {
	Cut(ctx context.Context, src string, start, end float64, out string) error
	Thumbnail(ctx context.Context, clip string, at float64, out string) error
}

// Index is the part of the metadata index the Cutter needs.
type Index interface {
	GetByHash(ctx context.Context, contentHash string) (*model.ClipRecord, error)
	InsertOrTouch(ctx context.Context, rec model.ClipRecord) (*model.ClipRecord, bool, error)
	Repoint(ctx context.Context, contentHash, outputPath, thumbnailPath string, fileSize int64) (int64, error)
}

// Config tunes a Cutter.
type Config struct {
	OutputRoot string
	// Workers bounds concurrent transcodes. Zero means min(4, NumCPU).
	Workers int
	// Timeout is the hard wall-clock limit of one transcoder run.
	Timeout time.Duration
	// RoundStep is the boundary tolerance for content hashing.
	RoundStep float64
	// Profile identifies the encode profile in the content hash.
	Profile string
	// ThumbnailAt is how far into a clip the thumbnail frame is taken.
	ThumbnailAt float64
}

// DefaultWorkers returns min(4, NumCPU).
func DefaultWorkers() int {
	return min(4, runtime.NumCPU())
}

// Result is the outcome of cutting one segment.
type Result struct {
	Segment  model.ClipSegment
	Record   *model.ClipRecord
	CacheHit bool
	Err      error
}

// Observer is told when a segment moves to the cutting and cut states.
type Observer func(seg model.ClipSegment, state model.State)

// artifact is what a cold cut leaves on disk.
type artifact struct {
	clipPath  string
	thumbPath string
	size      int64
}

// flight is the context one transcode runs under. It outlives any single
// caller and is cancelled once the last caller waiting on it has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Cutter turns segments into indexed clips, transcoding only on a content
// cache miss.
type Cutter struct {
	cfg      Config
	tc       Transcoder
	index    Index
	slots    *semaphore.Weighted
	flights  singleflight.Group
	logger   zerolog.Logger
	metrics  telemetry.CutMetrics
	tracer   trace.Tracer

	mu       sync.Mutex
	inflight map[string]*flight
	observer Observer
}

// NewCutter creates a Cutter.
func NewCutter(tc Transcoder, index Index, cfg Config, logger zerolog.Logger) *Cutter {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.RoundStep <= 0 {
		cfg.RoundStep = DefaultRoundStep
	}
	return &Cutter{
		cfg:     cfg,
		tc:      tc,
		index:   index,
		slots:    semaphore.NewWeighted(int64(cfg.Workers)),
		logger:   logger,
		metrics:  telemetry.NewCutMetrics(),
		tracer:   telemetry.Tracer("clipengine/cutter"),
		inflight: make(map[string]*flight),
	}
}

// SetObserver installs a state observer, replacing any previous one. Pass nil
// to remove it.
func (c *Cutter) SetObserver(o Observer) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// Workers returns the transcode concurrency.
func (c *Cutter) Workers() int {
	return c.cfg.Workers
}

// HashOf returns the content hash the Cutter uses for seg.
func (c *Cutter) HashOf(seg model.ClipSegment) string {
	return ContentHash(seg.SourcePath, seg.Start, seg.End, c.cfg.RoundStep, c.cfg.Profile)
}

// window returns the rounded bounds that are both hashed and cut.
func (c *Cutter) window(seg model.ClipSegment) (start, end float64) {
	return Round(seg.Start, c.cfg.RoundStep), Round(seg.End, c.cfg.RoundStep)
}

// Cut returns the indexed record for seg. A content-hash hit whose file is
// still on disk is served without invoking the transcoder; otherwise the
// segment is transcoded in a bounded slot, published by rename and indexed.
// A window shorter than the rounding step is *model.InvalidSegmentError.
// Index failures are *model.IndexUnavailableError; transcoder failures are
// *model.CutFailure. If ctx ends first its error is returned as is.
func (c *Cutter) Cut(ctx context.Context, seg model.ClipSegment) (*model.ClipRecord, bool, error) {
	hash := c.HashOf(seg)
	clipID := ClipID(seg.Key(), hash)

	ctx, span := c.tracer.Start(ctx, "clip.Cut", trace.WithAttributes(
		attribute.String("clip.id", clipID),
		attribute.String("clip.hash", hash),
		attribute.String("clip.source", seg.SourcePath),
	))
	defer span.End()

	log := c.logger.With().Str("segment", seg.Key()).Str("hash", hash[:hashPrefixLen]).Logger()

	if start, end := c.window(seg); seg.Duration() <= 0 || end <= start {
		err := &model.InvalidSegmentError{Key: seg.Key(), Start: seg.Start, End: seg.End}
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	hit, err := c.lookup(ctx, hash)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if hit != nil {
		rec, err := c.record(ctx, seg, clipID, hash, artifact{clipPath: hit.OutputPath, thumbPath: hit.ThumbnailPath, size: hit.FileSize})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, false, err
		}
		c.metrics.CacheHits.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("clip.cache_hit", true))
		log.Debug().Str("clip_id", rec.ClipID).Msg("cache hit")
		return rec, true, nil
	}

	c.metrics.CacheMisses.Add(ctx, 1)
	c.notify(seg, model.StateCutting)
	started := time.Now()

	art, err := c.await(ctx, seg, hash, log)
	if err != nil {
		var failure *model.CutFailure
		if errors.As(err, &failure) {
			c.metrics.Failures.Add(ctx, 1)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	c.metrics.Duration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metric.WithAttributes(attribute.String("clip.event_type", string(seg.EventType))))
	c.notify(seg, model.StateCut)

	rec, err := c.record(ctx, seg, clipID, hash, art)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	log.Info().
		Str("clip_id", rec.ClipID).
		Str("output", rec.OutputPath).
		Dur("took", time.Since(started)).
		Msg("clip cut")
	return rec, false, nil
}

// CutBatch cuts segs with at most Workers in flight and returns one Result
// per segment in input order. A failing segment does not stop its siblings;
// only an unavailable index aborts the batch, in which case the error is
// returned alongside the partial results.
func (c *Cutter) CutBatch(ctx context.Context, segs []model.ClipSegment) ([]Result, error) {
	results := make([]Result, len(segs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for i, seg := range segs {
		results[i].Segment = seg
		g.Go(func() error {
			rec, hit, err := c.Cut(gctx, seg)
			results[i].Record, results[i].CacheHit, results[i].Err = rec, hit, err
			if model.IsIndexUnavailable(err) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// await joins the transcode for hash, starting it if none is running, and
// waits for its artifact or for ctx to end. The transcode itself is only
// cancelled when every caller waiting on it has given up.
func (c *Cutter) await(ctx context.Context, seg model.ClipSegment, hash string, log zerolog.Logger) (artifact, error) {
	for attempt := 1; ; attempt++ {
		f := c.join(ctx, hash)
		ch := c.flights.DoChan(hash, func() (any, error) {
			return c.produce(f.ctx, seg, hash, log)
		})
		select {
		case <-ctx.Done():
			c.leave(hash, f)
			return artifact{}, ctx.Err()
		case res := <-ch:
			c.leave(hash, f)
			// A flight abandoned by all its earlier callers can still be
			// finishing when we attach to it.
			if res.Err != nil && model.IsCancellation(res.Err) && ctx.Err() == nil && attempt == 1 {
				continue
			}
			if res.Err != nil {
				return artifact{}, res.Err
			}
			return res.Val.(artifact), nil
		}
	}
}

func (c *Cutter) join(ctx context.Context, hash string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.inflight[hash]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.inflight[hash] = f
	}
	f.waiters++
	return f
}

func (c *Cutter) leave(hash string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
		if c.inflight[hash] == f {
			delete(c.inflight, hash)
		}
	}
}

// lookup returns the record already holding hash, or nil on a miss. A record
// whose file has gone from disk counts as a miss.
func (c *Cutter) lookup(ctx context.Context, hash string) (*model.ClipRecord, error) {
	hit, err := c.index.GetByHash(ctx, hash)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, model.AsIndexUnavailable("get_by_hash", err)
	}
	if _, err := os.Stat(hit.OutputPath); err != nil {
		c.logger.Warn().Str("path", hit.OutputPath).Msg("indexed clip missing on disk, recutting")
		return nil, nil
	}
	return hit, nil
}

// produce transcodes seg into its deterministic path and points every record
// sharing hash at the new file. It runs once per hash at a time.
func (c *Cutter) produce(ctx context.Context, seg model.ClipSegment, hash string, log zerolog.Logger) (artifact, error) {
	// A concurrent flight for the same hash may have finished while we
	// waited to start this one.
	if hit, err := c.lookup(ctx, hash); err != nil {
		return artifact{}, err
	} else if hit != nil {
		return artifact{clipPath: hit.OutputPath, thumbPath: hit.ThumbnailPath, size: hit.FileSize}, nil
	}

	if err := c.slots.Acquire(ctx, 1); err != nil {
		return artifact{}, err
	}
	defer c.slots.Release(1)

	clipPath, thumbPath := Paths(c.cfg.OutputRoot, seg, hash)
	if err := os.MkdirAll(filepath.Dir(clipPath), 0o755); err != nil {
		return artifact{}, fmt.Errorf("create output dir: %w", err)
	}

	start, end := c.window(seg)

	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = c.publish(ctx, clipPath, func(ctx context.Context, tmp string) error {
			return c.tc.Cut(ctx, seg.SourcePath, start, end, tmp)
		})
		var failure *model.CutFailure
		if err == nil || !errors.As(err, &failure) || !failure.Transient || attempt == 2 {
			break
		}
		log.Warn().Err(err).Msg("transient cut failure, retrying")
	}
	if err != nil {
		return artifact{}, err
	}

	info, err := os.Stat(clipPath)
	if err != nil {
		return artifact{}, fmt.Errorf("stat output: %w", err)
	}

	at := math.Min(c.cfg.ThumbnailAt, (end-start)/2)
	if err := c.publish(ctx, thumbPath, func(ctx context.Context, tmp string) error {
		return c.tc.Thumbnail(ctx, clipPath, at, tmp)
	}); err != nil {
		if ctx.Err() != nil {
			return artifact{}, ctx.Err()
		}
		log.Warn().Err(err).Msg("thumbnail failed")
		thumbPath = ""
	}

	// Rows left pointing at a file that has gone from disk follow the recut.
	if n, err := c.index.Repoint(ctx, hash, clipPath, thumbPath, info.Size()); err != nil {
		return artifact{}, model.AsIndexUnavailable("repoint", err)
	} else if n > 0 {
		log.Debug().Int64("rows", n).Msg("repointed records to new file")
	}

	return artifact{clipPath: clipPath, thumbPath: thumbPath, size: info.Size()}, nil
}

// publish runs write against a temporary file next to final and renames it
// into place only when write succeeded and left a non-empty file. The
// transcoder run is bounded by the configured timeout.
func (c *Cutter) publish(ctx context.Context, final string, write func(ctx context.Context, tmp string) error) error {
	f, err := os.CreateTemp(filepath.Dir(final), ".part-*"+filepath.Ext(final))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	f.Close()
	defer os.Remove(tmp)

	runCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	if err := write(runCtx, tmp); err != nil {
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return &model.CutFailure{Reason: fmt.Sprintf("killed after %s", c.cfg.Timeout), ExitCode: -1, TimedOut: true}
		}
		return err
	}
	info, err := os.Stat(tmp)
	if err != nil {
		return fmt.Errorf("stat temp output: %w", err)
	}
	if info.Size() == 0 {
		return &model.CutFailure{Reason: "transcoder produced an empty file"}
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish %s: %w", final, err)
	}
	return nil
}

// record builds the ClipRecord for seg over art and writes it to the index.
func (c *Cutter) record(ctx context.Context, seg model.ClipSegment, clipID, hash string, art artifact) (*model.ClipRecord, error) {
	rec := model.ClipRecord{
		ClipID:        clipID,
		ContentHash:   hash,
		OutputPath:    art.clipPath,
		ThumbnailPath: art.thumbPath,
		SourcePath:    seg.SourcePath,
		Start:         seg.Start,
		End:           seg.End,
		Kind:          seg.Kind,
		SourceID:      seg.SourceID,
		PlayerID:      seg.PlayerID,
		GameID:        seg.GameID,
		GameDate:      seg.GameDate,
		Period:        seg.Period,
		EventType:     seg.EventType,
		Outcome:       seg.Outcome,
		Team:          seg.Team,
		Opponent:      seg.Opponent,
		Timecode:      seg.Timecode,
		Extra:         seg.Extra,
		FileSize:      art.size,
	}
	stored, _, err := c.index.InsertOrTouch(ctx, rec)
	if err != nil {
		return nil, model.AsIndexUnavailable("insert_or_touch", err)
	}
	return stored, nil
}

func (c *Cutter) notify(seg model.ClipSegment, state model.State) {
	c.mu.Lock()
	o := c.observer
	c.mu.Unlock()
	if o != nil {
		o(seg, state)
	}
}
