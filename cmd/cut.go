package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pipeline"
	"github.com/user/clipengine/pkg/timeutil"
	"github.com/user/clipengine/segment"
	"github.com/user/clipengine/tui"
)

var cutCmd = &cobra.Command{
	Use:   "cut <video-file> <start> <end>",
	Short: "Cut one window of a video into an indexed clip",
	Long: `Cut a single window without going through the timeline. Start and end
accept seconds, MM:SS or HH:MM:SS. The window is clamped to the file length
and served from the index when an identical cut already exists.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		start, err := timeutil.ParseTimeToSeconds(args[1])
		if err != nil {
			return fmt.Errorf("invalid start: %w", err)
		}
		end, err := timeutil.ParseTimeToSeconds(args[2])
		if err != nil {
			return fmt.Errorf("invalid end: %w", err)
		}

		player, _ := cmd.Flags().GetString("player")
		game, _ := cmd.Flags().GetString("game")
		period, _ := cmd.Flags().GetInt("period")
		eventType, _ := cmd.Flags().GetString("type")
		id, _ := cmd.Flags().GetString("id")
		date, _ := cmd.Flags().GetString("date")
		asJSON, _ := cmd.Flags().GetBool("json")

		gameDate, err := timeutil.ParseDate(date)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
		if et := model.EventType(eventType); !et.Valid() {
			return fmt.Errorf("%w: unknown event type %q", model.ErrInvalidParams, eventType)
		}

		e, err := openEngine(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()

		duration, err := e.executor.ProbeDuration(cmd.Context(), src)
		if err != nil {
			return fmt.Errorf("failed to probe %s: %w", src, err)
		}

		seg := model.ClipSegment{
			SourcePath: src,
			Kind:       model.SourceEvent,
			SourceID:   id,
			PlayerID:   player,
			GameID:     game,
			GameDate:   gameDate,
			Period:     period,
			EventType:  model.EventType(eventType),
			Timecode:   start,
		}
		seg.Start, seg.End = segment.Clamp(start, end, duration)
		if seg.Duration() <= 0 {
			return &model.InvalidSegmentError{Key: seg.Key(), Start: seg.Start, End: seg.End}
		}

		rec, cached, err := e.cutter.Cut(cmd.Context(), seg)
		if err != nil {
			return fmt.Errorf("cut %s: %s", seg.Key(), pipeline.Reason(err))
		}

		if asJSON {
			return printJSON(newClipView(*rec))
		}
		if cached {
			fmt.Println("Served from index.")
		}
		fmt.Print(tui.RenderRecord(rec, min(termWidth(), 100)))
		return nil
	},
}

func init() {
	f := cutCmd.Flags()
	f.String("player", "manual", "Player id recorded with the clip")
	f.String("game", "manual", "Game id recorded with the clip")
	f.Int("period", 1, "Period recorded with the clip")
	f.String("type", string(model.EventShot), "Event type recorded with the clip")
	f.String("id", "manual", "Source id recorded with the clip")
	f.String("date", "", "Game date (YYYY-MM-DD)")
	f.Bool("json", false, "Print the clip as JSON")

	rootCmd.AddCommand(cutCmd)
}
