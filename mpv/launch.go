// Package mpv previews produced clips in the mpv player.
package mpv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/user/clipengine/deps"
)

// Options controls a preview.
type Options struct {
	// Path to the mpv binary; empty searches PATH.
	Path string
	// Loop replays the playlist until the window is closed.
	Loop bool
	// Title is shown in the window title bar.
	Title string
}

// Args builds the mpv command line for files.
func Args(opts Options, files ...string) []string {
	args := []string{"--force-window=yes", "--keep-open=no"}
	if opts.Loop {
		args = append(args, "--loop-playlist=inf")
	}
	if opts.Title != "" {
		args = append(args, "--title="+opts.Title)
	}
	args = append(args, "--")
	return append(args, files...)
}

// LaunchMpv starts mpv on the given clip files. It checks that mpv is
// installed and that every file exists first. The returned *exec.Cmd is
// already started; the caller waits on it.
func LaunchMpv(ctx context.Context, opts Options, files ...string) (*exec.Cmd, error) {
	if len(files) == 0 {
		return nil, errors.New("mpv: nothing to play")
	}
	bin, err := deps.Lookup("mpv", opts.Path, deps.MpvInstallURL)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("mpv: clip file: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, bin, Args(opts, files...)...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Play runs mpv on files and blocks until the player exits.
func Play(ctx context.Context, opts Options, files ...string) error {
	cmd, err := LaunchMpv(ctx, opts, files...)
	if err != nil {
		return err
	}
	return cmd.Wait()
}
