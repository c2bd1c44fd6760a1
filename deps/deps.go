package deps

import (
	"fmt"
	"os/exec"
)

const (
	MpvInstallURL    = "https://mpv.io/installation/"
	FfmpegInstallURL = "https://ffmpeg.org/download.html"
)

// DependencyError contains information about a missing dependency
type DependencyError struct {
	Name       string
	InstallURL string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s not found. Install from: %s", e.Name, e.InstallURL)
}

// Lookup resolves a binary. An empty path searches PATH for name; a
// non-empty path may be absolute or another name to search for.
func Lookup(name, path, installURL string) (string, error) {
	if path == "" {
		path = name
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", &DependencyError{Name: name, InstallURL: installURL}
	}
	return resolved, nil
}

// CheckMpv checks if mpv is available at path, or in PATH when path is empty
func CheckMpv(path string) error {
	_, err := Lookup("mpv", path, MpvInstallURL)
	return err
}

// CheckFfmpeg checks if ffmpeg is available at path, or in PATH when path is empty
func CheckFfmpeg(path string) error {
	_, err := Lookup("ffmpeg", path, FfmpegInstallURL)
	return err
}

// CheckFfprobe checks if ffprobe is available at path, or in PATH when path is empty.
// ffprobe ships with ffmpeg.
func CheckFfprobe(path string) error {
	_, err := Lookup("ffprobe", path, FfmpegInstallURL)
	return err
}

// Status is the result of checking one dependency.
type Status struct {
	Name     string
	Required bool
	Err      error
}

// CheckAll checks every dependency. ffmpeg and ffprobe are required for
// cutting; mpv is only needed for previews.
func CheckAll(ffmpegPath, ffprobePath, mpvPath string) []Status {
	return []Status{
		{Name: "ffmpeg", Required: true, Err: CheckFfmpeg(ffmpegPath)},
		{Name: "ffprobe", Required: true, Err: CheckFfprobe(ffprobePath)},
		{Name: "mpv", Required: false, Err: CheckMpv(mpvPath)},
	}
}
