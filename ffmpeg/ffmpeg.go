// Package ffmpeg drives the external transcoder: frame-accurate re-encoding
// cuts, thumbnail extraction and duration probing.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/user/clipengine/deps"
	"github.com/user/clipengine/model"
)

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "fast"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
)

// stderrTail is how many trailing stderr lines a CutFailure keeps.
const stderrTail = 12

// transientMarkers are stderr fragments of failures that may succeed on a
// second attempt.
var transientMarkers = []string{
	"Resource temporarily unavailable",
	"Cannot allocate memory",
	"Connection reset",
	"Input/output error",
	"Device or resource busy",
}

// Profile is the fixed encode profile. Its String form is part of the
// content hash, so every field that changes output bytes belongs here.
type Profile struct {
	VideoCodec string
	Preset     string
	CRF        int
	AudioCodec string
}

// DefaultProfile returns the libx264/aac profile.
func DefaultProfile() Profile {
	return Profile{
		VideoCodec: DefaultVideoCodec,
		Preset:     DefaultPreset,
		CRF:        DefaultCRF,
		AudioCodec: DefaultAudioCodec,
	}
}

func (p Profile) String() string {
	return fmt.Sprintf("v=%s;preset=%s;crf=%d;a=%s", p.VideoCodec, p.Preset, p.CRF, p.AudioCodec)
}

// Options configures an Executor.
type Options struct {
	FfmpegPath  string
	FfprobePath string
	Threads     int
	Profile     Profile
}

// Executor handles all ffmpeg operations
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
	profile     Profile
}

// New creates an executor, resolving both binaries up front.
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	ffmpegPath, err := deps.Lookup("ffmpeg", opts.FfmpegPath, deps.FfmpegInstallURL)
	if err != nil {
		return nil, err
	}
	ffprobePath, err := deps.Lookup("ffprobe", opts.FfprobePath, deps.FfmpegInstallURL)
	if err != nil {
		return nil, err
	}
	profile := opts.Profile
	if profile == (Profile{}) {
		profile = DefaultProfile()
	}
	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
		profile:     profile,
	}, nil
}

// Profile returns the encode profile every cut uses.
func (e *Executor) Profile() Profile {
	return e.profile
}

// Cut re-encodes [start, end] of src into out. Seeking before the input with
// a re-encode gives frame-accurate cut points; stream copy would snap to
// keyframes.
func (e *Executor) Cut(ctx context.Context, src string, start, end float64, out string) error {
	duration := end - start
	if duration <= 0 {
		return &model.CutFailure{Reason: fmt.Sprintf("invalid clip duration %.3f", duration)}
	}

	e.logger.Debug().
		Str("input", src).
		Str("output", out).
		Float64("start", start).
		Float64("duration", duration).
		Msg("extracting clip")

	args := []string{
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-c:v", e.profile.VideoCodec,
		"-preset", e.profile.Preset,
		"-crf", fmt.Sprintf("%d", e.profile.CRF),
		"-c:a", e.profile.AudioCodec,
		"-movflags", "+faststart",
		out,
	}
	return e.Run(ctx, args...)
}

// Thumbnail extracts one frame at offset seconds into clip as an image.
func (e *Executor) Thumbnail(ctx context.Context, clip string, at float64, out string) error {
	if at < 0 {
		at = 0
	}
	args := []string{
		"-ss", formatSeconds(at),
		"-i", clip,
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}
	return e.Run(ctx, args...)
}

// Run executes ffmpeg with the given arguments. A non-zero exit becomes a
// *model.CutFailure carrying the exit code and the tail of stderr. When ctx
// ends the process is killed and ctx.Err() is returned; callers that impose
// a deadline decide whether that counts as a timeout.
func (e *Executor) Run(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	baseArgs := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error"}
	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", fmt.Sprintf("%d", e.threads))
	}
	full := append(baseArgs, args...)

	e.logger.Debug().Strs("args", full).Msg("executing ffmpeg")

	tail := newTailWriter(stderrTail, func(line string) {
		e.logger.Debug().Str("ffmpeg", line).Msg("stderr")
	})
	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	cmd.Stderr = tail
	cmd.WaitDelay = 2 * time.Second
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &model.CutFailure{Reason: fmt.Sprintf("failed to start ffmpeg: %v", err), ExitCode: -1}
	}

	waitErr := cmd.Wait()
	tail.flush()
	if waitErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	failure := &model.CutFailure{Reason: tail.String(), ExitCode: -1}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		failure.ExitCode = exitErr.ExitCode()
	}
	if failure.Reason == "" {
		failure.Reason = waitErr.Error()
	}
	failure.Transient = failure.ExitCode < 0 || isTransient(failure.Reason)
	return failure
}

func isTransient(reason string) bool {
	for _, m := range transientMarkers {
		if strings.Contains(reason, m) {
			return true
		}
	}
	return false
}

// formatSeconds keeps millisecond precision on the command line.
func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

// tailWriter receives ffmpeg's stderr, hands each line to onLine and keeps
// the last max lines.
type tailWriter struct {
	max     int
	onLine  func(string)
	partial []byte
	lines   []string
}

func newTailWriter(max int, onLine func(string)) *tailWriter {
	return &tailWriter{max: max, onLine: onLine}
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.partial = append(t.partial, p...)
	for {
		i := bytes.IndexByte(t.partial, '\n')
		if i < 0 {
			break
		}
		t.add(string(t.partial[:i]))
		t.partial = t.partial[i+1:]
	}
	return len(p), nil
}

func (t *tailWriter) flush() {
	if len(t.partial) > 0 {
		t.add(string(t.partial))
		t.partial = nil
	}
}

func (t *tailWriter) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if t.onLine != nil {
		t.onLine(line)
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailWriter) String() string {
	return strings.Join(t.lines, "\n")
}
