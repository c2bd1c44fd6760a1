// Package config loads clipengine settings from a YAML file, a .env file and
// CLIPENGINE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/user/clipengine/clip"
	"github.com/user/clipengine/db"
	"github.com/user/clipengine/ffmpeg"
)

// FileName is the config file looked up when no path is given.
const FileName = "clipengine.yaml"

// Config holds all engine configuration.
type Config struct {
	IndexPath  string `yaml:"index"`
	Timeline   string `yaml:"timeline"` // sqlite path or postgres:// URL
	OutputRoot string `yaml:"output_root"`

	Workers     int           `yaml:"workers"`
	CutTimeout  time.Duration `yaml:"cut_timeout"`
	RoundStep   float64       `yaml:"round_step"`
	ThumbnailAt float64       `yaml:"thumbnail_at"`

	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Profile   ProfileConfig   `yaml:"profile"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type FFmpegConfig struct {
	Path      string `yaml:"path"`
	ProbePath string `yaml:"probe_path"`
	Threads   int    `yaml:"threads"`
	MpvPath   string `yaml:"mpv_path"`
}

// ProfileConfig is the encode profile. Changing it changes every content hash.
type ProfileConfig struct {
	VideoCodec string `yaml:"video_codec"`
	Preset     string `yaml:"preset"`
	CRF        int    `yaml:"crf"`
	AudioCodec string `yaml:"audio_codec"`
}

// Ffmpeg converts the profile for the executor.
func (p ProfileConfig) Ffmpeg() ffmpeg.Profile {
	return ffmpeg.Profile{VideoCodec: p.VideoCodec, Preset: p.Preset, CRF: p.CRF, AudioCodec: p.AudioCodec}
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Default returns the built-in configuration.
func Default() *Config {
	indexPath, err := db.DefaultPath()
	if err != nil {
		indexPath = "index.db"
	}
	outputRoot := "clips"
	if home, err := os.UserHomeDir(); err == nil {
		outputRoot = filepath.Join(home, ".local", "share", "clipengine", "clips")
	}
	profile := ffmpeg.DefaultProfile()
	return &Config{
		IndexPath:   indexPath,
		Timeline:    "timeline.db",
		OutputRoot:  outputRoot,
		Workers:     clip.DefaultWorkers(),
		CutTimeout:  2 * time.Minute,
		RoundStep:   clip.DefaultRoundStep,
		ThumbnailAt: 2,
		FFmpeg: FFmpegConfig{
			Path:      "ffmpeg",
			ProbePath: "ffprobe",
			MpvPath:   "mpv",
		},
		Profile: ProfileConfig{
			VideoCodec: profile.VideoCodec,
			Preset:     profile.Preset,
			CRF:        profile.CRF,
			AudioCodec: profile.AudioCodec,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Telemetry: TelemetryConfig{
			ServiceName: "clipengine",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or the
// first clipengine.yaml found when path is empty), then .env, then the
// environment. An explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	// .env is optional; variables already set win.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, err := envInt(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	float := func(key string, dst *float64) {
		v, err := envFloat(key, *dst)
		errs = append(errs, err)
		*dst = v
	}

	str("CLIPENGINE_INDEX", &c.IndexPath)
	str("CLIPENGINE_TIMELINE", &c.Timeline)
	str("CLIPENGINE_OUTPUT_ROOT", &c.OutputRoot)
	num("CLIPENGINE_WORKERS", &c.Workers)
	timeout, err := envDuration("CLIPENGINE_CUT_TIMEOUT", c.CutTimeout)
	errs = append(errs, err)
	c.CutTimeout = timeout
	float("CLIPENGINE_ROUND_STEP", &c.RoundStep)
	float("CLIPENGINE_THUMBNAIL_AT", &c.ThumbnailAt)

	str("CLIPENGINE_FFMPEG", &c.FFmpeg.Path)
	str("CLIPENGINE_FFPROBE", &c.FFmpeg.ProbePath)
	str("CLIPENGINE_MPV", &c.FFmpeg.MpvPath)
	num("CLIPENGINE_FFMPEG_THREADS", &c.FFmpeg.Threads)

	str("CLIPENGINE_VIDEO_CODEC", &c.Profile.VideoCodec)
	str("CLIPENGINE_PRESET", &c.Profile.Preset)
	num("CLIPENGINE_CRF", &c.Profile.CRF)
	str("CLIPENGINE_AUDIO_CODEC", &c.Profile.AudioCodec)

	str("CLIPENGINE_LOG_LEVEL", &c.Log.Level)
	str("CLIPENGINE_LOG_FORMAT", &c.Log.Format)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	str("CLIPENGINE_OTEL_ENDPOINT", &c.Telemetry.Endpoint)
	str("OTEL_SERVICE_NAME", &c.Telemetry.ServiceName)

	return errors.Join(errs...)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.IndexPath == "" {
		errs = append(errs, errors.New("config: index path is required"))
	}
	if c.OutputRoot == "" {
		errs = append(errs, errors.New("config: output root is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("config: workers must be positive, got %d", c.Workers))
	}
	if c.CutTimeout <= 0 {
		errs = append(errs, fmt.Errorf("config: cut timeout must be positive, got %s", c.CutTimeout))
	}
	if c.RoundStep <= 0 {
		errs = append(errs, fmt.Errorf("config: round step must be positive, got %g", c.RoundStep))
	}
	if c.ThumbnailAt < 0 {
		errs = append(errs, fmt.Errorf("config: thumbnail offset must not be negative, got %g", c.ThumbnailAt))
	}
	if c.Profile.CRF < 0 || c.Profile.CRF > 51 {
		errs = append(errs, fmt.Errorf("config: crf must be within 0-51, got %d", c.Profile.CRF))
	}
	if c.Log.Format != "" && c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("config: log format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func findConfigFile() string {
	candidates := []string{"./" + FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "clipengine", FileName))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
