package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/user/clipengine/config"
	"github.com/user/clipengine/logging"
	"github.com/user/clipengine/telemetry"
)

var Version = "0.1.0"

var (
	cfgFile     string
	indexFlag   string
	timelineDSN string
	verbose     bool

	cfg               *config.Config
	logger            zerolog.Logger
	shutdownTelemetry telemetry.Shutdown
)

var rootCmd = &cobra.Command{
	Use:   "clipengine",
	Short: "Cut, cache and index video clips of game events",
	Long: `clipengine turns searches over a game timeline into playable clips.

A search selects players, event types and a set of games. Every matching
event or shift is mapped onto its period video, cut with ffmpeg and recorded
in a local index. Identical cuts are served from the index without running
ffmpeg again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if indexFlag != "" {
			cfg.IndexPath = indexFlag
		}
		if timelineDSN != "" {
			cfg.Timeline = timelineDSN
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		logger = logging.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		shutdownTelemetry, err = telemetry.Init(cmd.Context(), cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName, Version, cfg.Telemetry.Insecure)
		if err != nil {
			logger.Warn().Err(err).Msg("telemetry disabled")
			shutdownTelemetry = nil
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdownTelemetry == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clipengine version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./clipengine.yaml, then the user config dir)")
	rootCmd.PersistentFlags().StringVar(&indexFlag, "index", "", "Metadata index path")
	rootCmd.PersistentFlags().StringVar(&timelineDSN, "timeline", "", "Timeline store: SQLite path or postgres:// URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// command's context so in-flight cuts are stopped and cleaned up.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
