package mpv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/clipengine/deps"
)

func TestArgs(t *testing.T) {
	got := Args(Options{Loop: true, Title: "P1 zone exits"}, "/c/a.mp4", "/c/b.mp4")
	assert.Equal(t, []string{
		"--force-window=yes", "--keep-open=no", "--loop-playlist=inf",
		"--title=P1 zone exits", "--", "/c/a.mp4", "/c/b.mp4",
	}, got)
}

func TestPlayRunsPlayerOnClips(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	bin := filepath.Join(dir, "mpv")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho \"$@\" > "+argsFile+"\n"), 0o755))
	clip := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("clip"), 0o644))

	require.NoError(t, Play(context.Background(), Options{Path: bin}, clip))

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "--force-window=yes --keep-open=no -- "+clip, strings.TrimSpace(string(raw)))
}

func TestLaunchErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LaunchMpv(context.Background(), Options{})
	assert.ErrorContains(t, err, "nothing to play")

	_, err = LaunchMpv(context.Background(), Options{Path: filepath.Join(dir, "no-mpv")}, "x.mp4")
	var depErr *deps.DependencyError
	assert.True(t, errors.As(err, &depErr))

	if runtime.GOOS != "windows" {
		bin := filepath.Join(dir, "mpv")
		require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
		_, err = LaunchMpv(context.Background(), Options{Path: bin}, filepath.Join(dir, "gone.mp4"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	}
}
