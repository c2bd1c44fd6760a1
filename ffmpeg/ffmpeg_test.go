package ffmpeg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/clipengine/deps"
	"github.com/user/clipengine/model"
)

// fakeBinary writes an executable shell script named name into dir.
func fakeBinary(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// fakeExecutor builds an Executor over a fake ffmpeg with the given body and
// a fake ffprobe that reports a fixed duration.
func fakeExecutor(t *testing.T, ffmpegBody string) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	ffmpegPath := fakeBinary(t, dir, "ffmpeg", ffmpegBody)
	ffprobePath := fakeBinary(t, dir, "ffprobe", `echo '{"format":{"duration":"1200.500000"}}'`)
	e, err := New(zerolog.Nop(), Options{FfmpegPath: ffmpegPath, FfprobePath: ffprobePath})
	require.NoError(t, err)
	return e, dir
}

func TestCutReencodesWithAccurateSeek(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	e, _ := fakeExecutor(t, `echo "$@" > `+argsFile+`
for last; do :; done
printf 'clip' > "$last"`)

	out := filepath.Join(dir, "out.mp4")
	require.NoError(t, e.Cut(context.Background(), "/video/src.mp4", 97.25, 105.25, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "clip", string(data))

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.TrimSpace(string(raw))
	assert.Contains(t, args, "-ss 97.250 -i /video/src.mp4 -t 8.000")
	assert.Contains(t, args, "-c:v libx264 -preset fast -crf 23 -c:a aac")
	assert.NotContains(t, args, "copy")
	assert.True(t, strings.HasSuffix(args, out))
}

func TestCutRejectsEmptyWindow(t *testing.T) {
	e, _ := fakeExecutor(t, "exit 0")
	err := e.Cut(context.Background(), "/video/src.mp4", 10, 10, "/tmp/never.mp4")
	var failure *model.CutFailure
	require.True(t, errors.As(err, &failure))
	assert.Contains(t, failure.Reason, "invalid clip duration")
}

func TestRunMapsNonZeroExit(t *testing.T) {
	e, _ := fakeExecutor(t, `echo "frame noise" >&2
echo "/video/missing.mp4: Invalid data found when processing input" >&2
exit 1`)

	err := e.Cut(context.Background(), "/video/missing.mp4", 0, 5, filepath.Join(t.TempDir(), "o.mp4"))
	var failure *model.CutFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 1, failure.ExitCode)
	assert.False(t, failure.TimedOut)
	assert.False(t, failure.Transient)
	assert.Contains(t, failure.Reason, "Invalid data found")
}

func TestRunFlagsTransientFailures(t *testing.T) {
	e, _ := fakeExecutor(t, `echo "av_interleaved_write_frame(): Resource temporarily unavailable" >&2
exit 1`)

	err := e.Run(context.Background(), "-i", "x")
	var failure *model.CutFailure
	require.True(t, errors.As(err, &failure))
	assert.True(t, failure.Transient)
}

func TestRunKillsProcessWhenContextEnds(t *testing.T) {
	e, _ := fakeExecutor(t, "exec sleep 10")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	started := time.Now()
	err := e.Run(ctx, "-i", "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	e, _ := fakeExecutor(t, "exit 0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx, "-i", "x")
	assert.ErrorIs(t, err, context.Canceled)
	var failure *model.CutFailure
	assert.False(t, errors.As(err, &failure))
}

func TestProbeDuration(t *testing.T) {
	e, _ := fakeExecutor(t, "exit 0")
	d, err := e.ProbeDuration(context.Background(), "/video/src.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 1200.5, d, 1e-9)

	_, err = e.ProbeDuration(context.Background(), "")
	assert.Error(t, err)
}

func TestProbeDurationRejectsMissingDuration(t *testing.T) {
	dir := t.TempDir()
	e, err := New(zerolog.Nop(), Options{
		FfmpegPath:  fakeBinary(t, dir, "ffmpeg", "exit 0"),
		FfprobePath: fakeBinary(t, dir, "ffprobe", `echo '{"format":{}}'`),
	})
	require.NoError(t, err)
	_, err = e.ProbeDuration(context.Background(), "/video/src.mp4")
	assert.Error(t, err)
}

func TestNewReportsMissingBinary(t *testing.T) {
	_, err := New(zerolog.Nop(), Options{FfmpegPath: filepath.Join(t.TempDir(), "nope")})
	var depErr *deps.DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "ffmpeg", depErr.Name)
}

func TestProfileStringCoversEveryField(t *testing.T) {
	a := DefaultProfile()
	b := a
	b.CRF = 18
	assert.NotEqual(t, a.String(), b.String())
	assert.Equal(t, "v=libx264;preset=fast;crf=23;a=aac", a.String())
}

func TestTailWriterKeepsLastLines(t *testing.T) {
	var seen []string
	w := newTailWriter(2, func(l string) { seen = append(seen, l) })
	_, _ = w.Write([]byte("one\ntw"))
	_, _ = w.Write([]byte("o\n\nthree"))
	w.flush()
	assert.Equal(t, []string{"one", "two", "three"}, seen)
	assert.Equal(t, "two\nthree", w.String())
}

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

func TestRealFFmpegCutAndThumbnail(t *testing.T) {
	skipIfNoFFmpeg(t)
	if testing.Short() {
		t.Skip("real transcode skipped in -short mode")
	}
	ctx := context.Background()
	e, err := New(zerolog.Nop(), Options{})
	require.NoError(t, err)

	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	if err := e.Run(ctx,
		"-f", "lavfi", "-i", "testsrc=duration=6:size=160x120:rate=25",
		"-f", "lavfi", "-i", "sine=duration=6",
		"-c:v", "libx264", "-c:a", "aac", "-shortest", src,
	); err != nil {
		t.Skipf("cannot synthesize source video: %v", err)
	}

	out := filepath.Join(dir, "clip.mp4")
	require.NoError(t, e.Cut(ctx, src, 1.5, 4.0, out))
	d, err := e.ProbeDuration(ctx, out)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, d, 0.2)

	thumb := filepath.Join(dir, "clip.jpg")
	require.NoError(t, e.Thumbnail(ctx, out, 1, thumb))
	info, err := os.Stat(thumb)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
