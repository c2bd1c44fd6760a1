package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/clipengine/db"
	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pkg/timeutil"
	"github.com/user/clipengine/tui"
)

var showCmd = &cobra.Command{
	Use:   "show <clip-id|content-hash>",
	Short: "Show one indexed clip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		ix, err := openIndex(cmd.Context())
		if err != nil {
			return err
		}
		defer ix.Close()

		rec, err := lookupClip(cmd.Context(), ix, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(newClipView(*rec))
		}
		fmt.Print(tui.RenderRecord(rec, min(termWidth(), 100)))
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List indexed clips",
	Long: `List clips in the index, newest first. Filters combine; each list flag is
repeatable or comma separated. --recent ignores filters and lists the newest
clips.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		players, _ := cmd.Flags().GetStringSlice("player")
		games, _ := cmd.Flags().GetStringSlice("game")
		types, _ := cmd.Flags().GetStringSlice("type")
		teams, _ := cmd.Flags().GetStringSlice("team")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		limit, _ := cmd.Flags().GetInt("limit")
		recent, _ := cmd.Flags().GetBool("recent")
		asJSON, _ := cmd.Flags().GetBool("json")

		f := model.Filters{Players: players, GameIDs: games, Teams: teams}
		for _, t := range types {
			et := model.EventType(t)
			if !et.Valid() {
				return fmt.Errorf("%w: unknown event type %q", model.ErrInvalidParams, t)
			}
			f.EventTypes = append(f.EventTypes, et)
		}
		var err error
		if f.From, err = timeutil.ParseDate(from); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		if f.To, err = timeutil.ParseDate(to); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}

		ix, err := openIndex(cmd.Context())
		if err != nil {
			return err
		}
		defer ix.Close()

		var recs []model.ClipRecord
		if recent {
			recs, err = ix.Recent(cmd.Context(), limit)
		} else {
			recs, err = ix.Query(cmd.Context(), f, limit)
		}
		if err != nil {
			return err
		}

		if asJSON {
			return printJSON(newClipViews(recs))
		}
		fmt.Print(tui.RenderRecords(recs))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		ix, err := openIndex(cmd.Context())
		if err != nil {
			return err
		}
		defer ix.Close()

		s, err := ix.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(map[string]int64{
				"total_clips":      s.TotalClips,
				"total_bytes":      s.TotalBytes,
				"distinct_hashes":  s.DistinctHashes,
				"distinct_players": s.DistinctPlayers,
				"distinct_games":   s.DistinctGames,
				"total_requests":   s.TotalRequests,
			})
		}
		fmt.Print(tui.RenderStats(s, termWidth()))
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "Print the clip as JSON")

	f := queryCmd.Flags()
	f.StringSliceP("player", "p", nil, "Player id")
	f.StringSliceP("game", "g", nil, "Game id")
	f.StringSliceP("type", "t", nil, "Event type")
	f.StringSlice("team", nil, "Team")
	f.String("from", "", "First game date (YYYY-MM-DD)")
	f.String("to", "", "Last game date (YYYY-MM-DD)")
	f.Int("limit", db.DefaultQueryLimit, "Maximum rows")
	f.Bool("recent", false, "Newest clips, ignoring filters")
	f.Bool("json", false, "Print rows as JSON")

	statsCmd.Flags().Bool("json", false, "Print totals as JSON")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
}
