package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"

	"github.com/user/clipengine/clip"
	"github.com/user/clipengine/db"
	"github.com/user/clipengine/ffmpeg"
	"github.com/user/clipengine/logging"
	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pipeline"
	"github.com/user/clipengine/timeline"
)

// engine is the wired set of components a search needs.
type engine struct {
	index    *db.Index
	timeline timeline.Provider
	executor *ffmpeg.Executor
	cutter   *clip.Cutter
	pipeline *pipeline.Pipeline
}

func (e *engine) Close() {
	if e.timeline != nil {
		e.timeline.Close()
	}
	if e.index != nil {
		e.index.Close()
	}
}

// openIndex opens the metadata index named by the config.
func openIndex(ctx context.Context) (*db.Index, error) {
	ix, err := db.Open(ctx, cfg.IndexPath, logging.WithComponent(logger, "index"))
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", cfg.IndexPath, err)
	}
	return ix, nil
}

func newExecutor() (*ffmpeg.Executor, error) {
	return ffmpeg.New(logging.WithComponent(logger, "ffmpeg"), ffmpeg.Options{
		FfmpegPath:  cfg.FFmpeg.Path,
		FfprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
		Profile:     cfg.Profile.Ffmpeg(),
	})
}

func newCutter(tc clip.Transcoder, ix clip.Index, profile ffmpeg.Profile) *clip.Cutter {
	return clip.NewCutter(tc, ix, clip.Config{
		OutputRoot:  cfg.OutputRoot,
		Workers:     cfg.Workers,
		Timeout:     cfg.CutTimeout,
		RoundStep:   cfg.RoundStep,
		Profile:     profile.String(),
		ThumbnailAt: cfg.ThumbnailAt,
	}, logging.WithComponent(logger, "cutter"))
}

// openEngine wires index, timeline, transcoder, cutter and pipeline. When
// withTimeline is false the timeline is left closed, for commands that only
// cut.
func openEngine(ctx context.Context, withTimeline bool) (*engine, error) {
	e := &engine{}
	var err error

	if e.executor, err = newExecutor(); err != nil {
		return nil, err
	}
	if e.index, err = openIndex(ctx); err != nil {
		return nil, err
	}
	e.cutter = newCutter(e.executor, e.index, e.executor.Profile())

	if withTimeline {
		if e.timeline, err = timeline.Open(ctx, cfg.Timeline); err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to open timeline: %w", err)
		}
		e.pipeline = pipeline.New(e.timeline, e.cutter, e.index, e.executor, logger)
	}
	return e, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// lookupClip finds a clip by id, falling back to content hash.
func lookupClip(ctx context.Context, ix *db.Index, ref string) (*model.ClipRecord, error) {
	rec, err := ix.GetByID(ctx, ref)
	if errors.Is(err, db.ErrNotFound) {
		rec, err = ix.GetByHash(ctx, ref)
	}
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("no clip with id or hash %q", ref)
	}
	return rec, err
}

// termWidth returns the width of stdout, or 100 when it is not a terminal.
func termWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 100
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(f.Fd())
}
