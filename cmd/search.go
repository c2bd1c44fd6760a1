package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pipeline"
	"github.com/user/clipengine/tui"
	"github.com/user/clipengine/tui/forms"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find events or shifts and cut them into clips",
	Long: `Search the timeline and produce one clip per matching event or shift.

Exactly one timeframe is required: --game (repeatable or comma separated),
--last-n, or a --from/--to date range. In event mode at least one --type is
required; in shift mode at least one --player.

Examples:
  clipengine search -p P1 -t zone_exit --last-n 3
  clipengine search -p P1,P7 -t goal -t shot --from 2026-01-01 --opponent RIV
  clipengine search --mode shift -p P1 --game G1 --json
  clipengine search --interactive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		players, _ := cmd.Flags().GetStringSlice("player")
		types, _ := cmd.Flags().GetStringSlice("type")
		games, _ := cmd.Flags().GetStringSlice("game")
		asJSON, _ := cmd.Flags().GetBool("json")
		interactive, _ := cmd.Flags().GetBool("interactive")
		showProgress, _ := cmd.Flags().GetBool("progress")
		pre, _ := cmd.Flags().GetString("pre")
		post, _ := cmd.Flags().GetString("post")

		result := forms.SearchResult{
			Mode:       flagString(cmd, "mode"),
			Players:    strings.Join(players, ","),
			EventTypes: types,
			Games:      strings.Join(games, ","),
			LastN:      flagString(cmd, "last-n"),
			From:       flagString(cmd, "from"),
			To:         flagString(cmd, "to"),
			Opponent:   flagString(cmd, "opponent"),
			Team:       flagString(cmd, "team"),
			Limit:      flagString(cmd, "limit"),
			Pre:        pre,
			Post:       post,
		}
		if interactive {
			if err := forms.NewSearchForm(&result).Run(); err != nil {
				return fmt.Errorf("search form: %w", err)
			}
		}

		params, err := result.Params()
		if err != nil {
			return err
		}

		e, err := openEngine(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer e.Close()

		var batch *pipeline.Batch
		if showProgress && !asJSON && isTerminal(os.Stderr) {
			batch, err = tui.RunProgress(cmd.Context(), e.pipeline, params, os.Stderr)
		} else {
			batch, err = e.pipeline.Run(cmd.Context(), params)
		}
		if batch == nil {
			return err
		}

		if asJSON {
			if jerr := printJSON(newBatchView(batch)); jerr != nil {
				return jerr
			}
		} else {
			fmt.Print(tui.RenderReport(batch, termWidth()))
		}
		if err != nil {
			return err
		}
		if len(batch.Outcomes) > 0 && len(batch.Succeeded()) == 0 {
			return fmt.Errorf("none of %d requested clips could be produced", len(batch.Outcomes))
		}
		return nil
	},
}

// flagString returns a flag's value as typed, or "" when it was not set.
func flagString(cmd *cobra.Command, name string) string {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return ""
	}
	return f.Value.String()
}

func init() {
	taxonomy := make([]string, 0, len(model.Taxonomy))
	for _, t := range model.Taxonomy {
		taxonomy = append(taxonomy, string(t))
	}

	f := searchCmd.Flags()
	f.StringSliceP("player", "p", nil, "Player id (repeatable or comma separated)")
	f.StringSliceP("type", "t", nil, "Event type: "+strings.Join(taxonomy, ", "))
	f.StringSliceP("game", "g", nil, "Game id (repeatable or comma separated)")
	f.Int("last-n", 0, "Use the N most recent games")
	f.String("from", "", "First game date (YYYY-MM-DD)")
	f.String("to", "", "Last game date (YYYY-MM-DD)")
	f.String("opponent", "", "Only games against this team")
	f.String("team", "", "Only events by this team")
	f.Int("limit", 0, "Keep only the N most recent matches (0 means all)")
	f.String("pre", "5", "Seconds before the event (seconds or M:SS)")
	f.String("post", "5", "Seconds after the event (seconds or M:SS)")
	f.String("mode", string(model.ModeEvent), "event or shift")
	f.Bool("json", false, "Print the result as JSON")
	f.Bool("progress", true, "Show live progress when stderr is a terminal")
	f.BoolP("interactive", "i", false, "Fill in the search with a form")

	rootCmd.AddCommand(searchCmd)
}
