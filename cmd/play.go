package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/clipengine/db"
	"github.com/user/clipengine/model"
	"github.com/user/clipengine/mpv"
)

var playCmd = &cobra.Command{
	Use:   "play <clip-id|content-hash>...",
	Short: "Play indexed clips in mpv",
	Long: `Look up clips by id or content hash and play them in mpv as one playlist.
With no arguments, plays the --recent newest clips.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loop, _ := cmd.Flags().GetBool("loop")
		recent, _ := cmd.Flags().GetInt("recent")

		ix, err := openIndex(cmd.Context())
		if err != nil {
			return err
		}
		defer ix.Close()

		var recs []model.ClipRecord
		if len(args) == 0 {
			if recs, err = ix.Recent(cmd.Context(), recent); err != nil {
				return err
			}
		}
		for _, ref := range args {
			rec, err := lookupClip(cmd.Context(), ix, ref)
			if err != nil {
				return err
			}
			recs = append(recs, *rec)
		}
		if len(recs) == 0 {
			return errors.New("no clips to play")
		}

		files := make([]string, 0, len(recs))
		for _, r := range recs {
			files = append(files, r.OutputPath)
		}
		// Playing a clip counts as a request.
		for _, r := range recs {
			if _, err := ix.Touch(cmd.Context(), r.ClipID); err != nil && !errors.Is(err, db.ErrNotFound) {
				logger.Warn().Err(err).Str("clip_id", r.ClipID).Msg("touch failed")
			}
		}

		title := filepath.Base(files[0])
		if len(files) > 1 {
			title = fmt.Sprintf("%d clips", len(files))
		}
		fmt.Printf("Playing %s\n", title)
		return mpv.Play(cmd.Context(), mpv.Options{Path: cfg.FFmpeg.MpvPath, Loop: loop, Title: title}, files...)
	},
}

func init() {
	playCmd.Flags().Bool("loop", false, "Loop the playlist")
	playCmd.Flags().Int("recent", 10, "Number of newest clips to play when no ids are given")
	rootCmd.AddCommand(playCmd)
}
