package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/clipengine/deps"
	"github.com/user/clipengine/timeline"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system dependencies and stores",
	Long:  `Check that ffmpeg and ffprobe are installed, that mpv is available for previews, and that the index and timeline store can be opened.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Checking dependencies...")
		fmt.Println()

		allGood := true

		for _, s := range deps.CheckAll(cfg.FFmpeg.Path, cfg.FFmpeg.ProbePath, cfg.FFmpeg.MpvPath) {
			if s.Err == nil {
				fmt.Printf("✓ %s: OK\n", s.Name)
				continue
			}
			if s.Required {
				fmt.Printf("✗ %s: NOT FOUND\n", s.Name)
				allGood = false
			} else {
				fmt.Printf("- %s: NOT FOUND (optional)\n", s.Name)
			}
			var depErr *deps.DependencyError
			if errors.As(s.Err, &depErr) {
				fmt.Printf("  Install from: %s\n", depErr.InstallURL)
			}
		}

		ix, err := openIndex(cmd.Context())
		if err == nil {
			err = ix.Ping(cmd.Context())
			ix.Close()
		}
		if err != nil {
			fmt.Printf("✗ index: %v\n", err)
			allGood = false
		} else {
			fmt.Printf("✓ index: %s\n", cfg.IndexPath)
		}

		store, err := timeline.Open(cmd.Context(), cfg.Timeline)
		if err != nil {
			fmt.Printf("✗ timeline: %v\n", err)
			allGood = false
		} else {
			store.Close()
			fmt.Println("✓ timeline: OK")
		}

		fmt.Println()
		if !allGood {
			return errors.New("some required dependencies are missing")
		}
		fmt.Println("All dependencies are installed!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
