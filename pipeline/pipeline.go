// Package pipeline ties the engine together: resolve a search, map every
// match onto its source video, cut or reuse the clip and index it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/user/clipengine/clip"
	"github.com/user/clipengine/model"
	"github.com/user/clipengine/resolve"
	"github.com/user/clipengine/segment"
	"github.com/user/clipengine/telemetry"
	"github.com/user/clipengine/timeline"
)

// Pinger checks that the metadata index is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DurationProber measures a source file when the manifest has no duration.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Progress is called on every state change of a request. index is the
// request's position in the batch.
type Progress func(index int, key string, state model.State)

// Batch is the result of one Run.
type Batch struct {
	Params   model.SearchParams
	Outcomes []model.Outcome
	// NoMatch is set when the search was valid but matched nothing.
	NoMatch  string
	Started  time.Time
	Finished time.Time
}

// Succeeded returns the indexed outcomes in batch order.
func (b *Batch) Succeeded() []model.Outcome {
	var out []model.Outcome
	for _, o := range b.Outcomes {
		if o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the failed outcomes in batch order.
func (b *Batch) Failed() []model.Outcome {
	var out []model.Outcome
	for _, o := range b.Outcomes {
		if o.State == model.StateFailed {
			out = append(out, o)
		}
	}
	return out
}

// CacheHits counts outcomes served without transcoding.
func (b *Batch) CacheHits() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.OK() && o.CacheHit {
			n++
		}
	}
	return n
}

// Pipeline runs searches end to end.
type Pipeline struct {
	timeline timeline.Provider
	resolver *resolve.Resolver
	cutter   *clip.Cutter
	index    Pinger
	prober   DurationProber
	logger   zerolog.Logger
	tracer   trace.Tracer

	progressMu sync.Mutex
	progress   Progress

	// runMu serializes runs; the cutter observer is per run.
	runMu sync.Mutex
}

// New creates a Pipeline. prober may be nil, in which case a manifest entry
// without a duration is only clamped at zero.
func New(provider timeline.Provider, cutter *clip.Cutter, index Pinger, prober DurationProber, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		timeline: provider,
		resolver: resolve.New(provider, logger.With().Str("component", "resolver").Logger()),
		cutter:   cutter,
		index:    index,
		prober:   prober,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		tracer:   telemetry.Tracer("clipengine/pipeline"),
	}
}

// OnProgress installs a progress callback for the runs that start after it.
// Calls may come from several goroutines but never concurrently.
func (p *Pipeline) OnProgress(fn Progress) {
	p.progressMu.Lock()
	p.progress = fn
	p.progressMu.Unlock()
}

// Run executes one search. Per-request failures are reported in the batch;
// Run only returns an error when the parameters are malformed, the timeline
// cannot be queried, the index is unavailable or ctx ends. In the last two
// cases the batch holds whatever had been settled.
func (p *Pipeline) Run(ctx context.Context, params model.SearchParams) (*Batch, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("search.mode", string(params.Mode)),
		attribute.StringSlice("search.players", params.Players),
	))
	defer span.End()

	batch := &Batch{Params: params, Started: time.Now()}
	defer func() { batch.Finished = time.Now() }()

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := p.index.Ping(ctx); err != nil {
		p.logger.Error().Err(err).Msg("index unavailable")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	candidates, err := p.resolver.Resolve(ctx, params)
	var noMatch *model.NoMatchError
	if errors.As(err, &noMatch) {
		batch.NoMatch = noMatch.Error()
		p.logger.Info().Str("reason", noMatch.Reason).Msg("search matched nothing")
		return batch, nil
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	p.progressMu.Lock()
	progress := p.progress
	p.progressMu.Unlock()

	batch.Outcomes = make([]model.Outcome, len(candidates))
	var mu sync.Mutex
	set := func(i int, state model.State) {
		mu.Lock()
		defer mu.Unlock()
		batch.Outcomes[i].State = state
		if progress != nil {
			progress(i, batch.Outcomes[i].Key, state)
		}
	}
	fail := func(i int, err error) {
		mu.Lock()
		batch.Outcomes[i].Err = err
		batch.Outcomes[i].Reason = Reason(err)
		mu.Unlock()
		p.logger.Warn().Err(err).Str("segment", batch.Outcomes[i].Key).Msg("request failed")
		set(i, model.StateFailed)
	}

	for i, c := range candidates {
		batch.Outcomes[i].Key = c.Key()
		set(i, model.StateResolved)
	}

	pad := segment.Padding{Pre: params.PrePad, Post: params.PostPad}
	manifests := make(map[string]manifestResult)
	durations := make(map[string]durationResult)

	var segs []model.ClipSegment
	var positions []int
	for i, c := range candidates {
		m, err := p.manifest(ctx, manifests, durations, c.GameID(), c.Period())
		if err != nil {
			fail(i, err)
			continue
		}
		seg, err := segment.Map(c, m, pad)
		if err != nil {
			fail(i, err)
			continue
		}
		batch.Outcomes[i].Segment = &seg
		set(i, model.StateMapped)
		segs = append(segs, seg)
		positions = append(positions, i)
	}

	byKey := make(map[string]int, len(segs))
	for j, seg := range segs {
		byKey[seg.Key()] = positions[j]
	}
	p.cutter.SetObserver(func(seg model.ClipSegment, state model.State) {
		if i, ok := byKey[seg.Key()]; ok {
			set(i, state)
		}
	})
	defer p.cutter.SetObserver(nil)

	results, batchErr := p.cutter.CutBatch(ctx, segs)
	for j, r := range results {
		i := positions[j]
		if r.Err != nil {
			fail(i, r.Err)
			continue
		}
		batch.Outcomes[i].Record = r.Record
		batch.Outcomes[i].CacheHit = r.CacheHit
		set(i, model.StateIndexed)
	}

	if batchErr != nil {
		p.logger.Error().Err(batchErr).Msg("index unavailable, aborting batch")
		span.SetStatus(codes.Error, batchErr.Error())
		return batch, batchErr
	}
	if err := ctx.Err(); err != nil {
		p.logger.Warn().Err(err).Int("indexed", len(batch.Succeeded())).Msg("batch cancelled")
		span.SetStatus(codes.Error, err.Error())
		return batch, err
	}

	p.logger.Info().
		Int("requested", len(batch.Outcomes)).
		Int("indexed", len(batch.Succeeded())).
		Int("cache_hits", batch.CacheHits()).
		Int("failed", len(batch.Failed())).
		Dur("took", time.Since(batch.Started)).
		Msg("batch complete")
	return batch, nil
}

type manifestResult struct {
	entry model.VideoManifestEntry
	err   error
}

type durationResult struct {
	seconds float64
	err     error
}

// manifest loads the manifest entry for a period once per run and fills in
// a missing duration by probing the source once per file.
func (p *Pipeline) manifest(ctx context.Context, cache map[string]manifestResult, durations map[string]durationResult, gameID string, period int) (model.VideoManifestEntry, error) {
	key := fmt.Sprintf("%s/%d", gameID, period)
	res, ok := cache[key]
	if !ok {
		res.entry, res.err = p.timeline.Manifest(ctx, gameID, period)
		if res.err == nil && res.entry.DurationSeconds <= 0 && p.prober != nil {
			d, ok := durations[res.entry.SourcePath]
			if !ok {
				d.seconds, d.err = p.prober.ProbeDuration(ctx, res.entry.SourcePath)
				durations[res.entry.SourcePath] = d
			}
			if d.err != nil {
				res.err = fmt.Errorf("probe duration of %s: %w", res.entry.SourcePath, d.err)
			} else {
				res.entry.DurationSeconds = d.seconds
			}
		}
		cache[key] = res
	}
	return res.entry, res.err
}

// Reason renders an error as a short human-readable reason for reports.
func Reason(err error) string {
	var (
		missing *model.ManifestMissingError
		invalid *model.InvalidSegmentError
		failure *model.CutFailure
		iu      *model.IndexUnavailableError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	case errors.As(err, &missing):
		return fmt.Sprintf("no video for game %s period %d", missing.GameID, missing.Period)
	case errors.As(err, &invalid):
		return fmt.Sprintf("empty window [%.2f, %.2f] after clamping", invalid.Start, invalid.End)
	case errors.As(err, &failure):
		if failure.TimedOut {
			return "transcode timed out"
		}
		return fmt.Sprintf("transcoder exited %d: %s", failure.ExitCode, lastLine(failure.Reason))
	case errors.As(err, &iu):
		return "index unavailable"
	}
	return err.Error()
}

func lastLine(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return s[i+1:]
		}
	}
	return s
}
