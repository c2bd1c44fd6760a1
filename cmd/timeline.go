package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/clipengine/timeline"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Manage the timeline store",
}

var timelineImportCmd = &cobra.Command{
	Use:   "import <fixture.yaml>",
	Short: "Load games, events, shifts and video manifests from a YAML file",
	Long: `Load a YAML fixture into the configured timeline store. Games already in
the store are replaced along with their events, shifts and manifest rows.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := timeline.LoadFixture(args[0])
		if err != nil {
			return err
		}

		store, err := timeline.Open(cmd.Context(), cfg.Timeline)
		if err != nil {
			return fmt.Errorf("failed to open timeline: %w", err)
		}
		defer store.Close()

		if pg, ok := store.(*timeline.PostgresStore); ok {
			if err := pg.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
		}
		importer, ok := store.(timeline.Importer)
		if !ok {
			return fmt.Errorf("timeline store %T does not support import", store)
		}
		if err := importer.Import(cmd.Context(), fixture); err != nil {
			return fmt.Errorf("failed to import %s: %w", args[0], err)
		}

		var events, shifts, periods int
		for _, g := range fixture.Games {
			events += len(g.Events)
			shifts += len(g.Shifts)
			periods += len(g.Manifest)
		}
		fmt.Printf("Imported %d games: %d events, %d shifts, %d period videos\n",
			len(fixture.Games), events, shifts, periods)
		return nil
	},
}

func init() {
	timelineCmd.AddCommand(timelineImportCmd)
	rootCmd.AddCommand(timelineCmd)
}
