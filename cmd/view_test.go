package cmd

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pipeline"
)

func TestBatchViewJSON(t *testing.T) {
	started := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b := &pipeline.Batch{
		Outcomes: []model.Outcome{
			{Key: "event/G1/P1/p1/e1", State: model.StateIndexed, CacheHit: true, Record: &model.ClipRecord{
				ClipID:   "id-1",
				GameID:   "G1",
				GameDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				Start:    1.5,
				End:      9.5,
			}},
			{Key: "event/G1/P1/p4/e2", State: model.StateFailed, Reason: "no video for game G1 period 4"},
		},
		Started:  started,
		Finished: started.Add(250 * time.Millisecond),
	}

	data, err := json.Marshal(newBatchView(b))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.EqualValues(t, 2, got["requested"])
	assert.EqualValues(t, 1, got["indexed"])
	assert.EqualValues(t, 1, got["failed"])
	assert.EqualValues(t, 1, got["cache_hits"])
	assert.Equal(t, "250ms", got["took"])
	assert.NotContains(t, got, "no_match")

	outcomes := got["outcomes"].([]any)
	require.Len(t, outcomes, 2)
	first := outcomes[0].(map[string]any)
	clip := first["clip"].(map[string]any)
	assert.Equal(t, "id-1", clip["clip_id"])
	assert.Equal(t, "2026-03-01", clip["game_date"])
	second := outcomes[1].(map[string]any)
	assert.Equal(t, "failed", second["state"])
	assert.Equal(t, "no video for game G1 period 4", second["reason"])
	assert.NotContains(t, second, "clip")
}

func TestNoMatchBatchView(t *testing.T) {
	v := newBatchView(&pipeline.Batch{NoMatch: "no games match"})
	assert.Equal(t, "no games match", v.NoMatch)
	assert.NotNil(t, v.Outcomes)
	assert.Empty(t, v.Took)
}

func TestFlagStringOnlyWhenSet(t *testing.T) {
	c := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	c.Flags().Int("last-n", 0, "")
	c.Flags().String("from", "", "")
	require.NoError(t, c.ParseFlags([]string{"--last-n", "3"}))

	assert.Equal(t, "3", flagString(c, "last-n"))
	assert.Empty(t, flagString(c, "from"))
	assert.Empty(t, flagString(c, "missing"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"search", "cut", "show", "query", "stats", "timeline", "doctor", "play", "version"} {
		assert.True(t, names[want], want)
	}
}
