package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pipeline"
	"github.com/user/clipengine/tui/components"
)

func sampleBatch() *pipeline.Batch {
	started := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rec := &model.ClipRecord{
		ClipID:     "3f2a9c1e-0000-5000-8000-000000000000",
		OutputPath: "/clips/G1/p1/P1/zone_exit-000001-abc.mp4",
		PlayerID:   "P1",
		GameID:     "G1",
		Period:     1,
		EventType:  model.EventZoneExit,
		Start:      0,
		End:        6,
	}
	return &pipeline.Batch{
		Outcomes: []model.Outcome{
			{Key: "event/G1/P1/p1/g1-e1", State: model.StateIndexed, Record: rec, CacheHit: true},
			{Key: "event/G1/P1/p4/g1-e9", State: model.StateFailed, Reason: "no video for game G1 period 4",
				Err: &model.ManifestMissingError{GameID: "G1", Period: 4}},
		},
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
	}
}

func TestProgressTracksStates(t *testing.T) {
	cancelled := false
	m := NewProgress("Clip search", func() { cancelled = true })
	require.NotNil(t, m.Init())

	m.Update(tea.WindowSizeMsg{Width: 70})
	m.Update(ProgressMsg{Index: 1, Key: "event/G1/P1/p1/b", State: model.StateResolved})
	m.Update(ProgressMsg{Index: 0, Key: "event/G1/P1/p1/a", State: model.StateCutting})
	m.Update(ProgressMsg{Index: 1, Key: "event/G1/P1/p1/b", State: model.StateFailed})

	settled, indexed, failed := m.counts()
	assert.Equal(t, 1, settled)
	assert.Zero(t, indexed)
	assert.Equal(t, 1, failed)

	view := m.View()
	assert.Contains(t, view, "Clip search")
	assert.Contains(t, view, "1/2 settled")
	assert.Contains(t, view, "event/G1/P1/p1/a cutting")
	assert.Contains(t, view, "1 failed")

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, cancelled)
	assert.Contains(t, m.View(), "Cancelling")
}

func TestProgressQuitsWhenDone(t *testing.T) {
	m := NewProgress("Clip search", nil)
	b := sampleBatch()
	wantErr := errors.New("index unavailable")

	_, cmd := m.Update(DoneMsg{Batch: b, Err: wantErr})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	got, err := m.Result()
	assert.Same(t, b, got)
	assert.Equal(t, wantErr, err)

	// Ticks stop once the run is over.
	_, cmd = m.Update(tickMsg(time.Now()))
	assert.Nil(t, cmd)
}

func TestRenderReport(t *testing.T) {
	out := RenderReport(sampleBatch(), 120)
	assert.Contains(t, out, "Requested: 2")
	assert.Contains(t, out, "(1 from cache)")
	assert.Contains(t, out, "Failed:    1")
	assert.Contains(t, out, "3f2a9c1e")
	assert.Contains(t, out, "0:00.0-0:06.0")
	assert.Contains(t, out, "cached")
	assert.Contains(t, out, "Unresolved")
	assert.Contains(t, out, "no video for game G1 period 4")

	none := RenderReport(&pipeline.Batch{NoMatch: "no matching events"}, 80)
	assert.Equal(t, "no matching events", strings.TrimSpace(none))
}

func TestRenderRecordsAndStats(t *testing.T) {
	assert.Contains(t, RenderRecords(nil), "No clips.")

	rec := *sampleBatch().Outcomes[0].Record
	rec.FileSize = 2_500_000
	rec.RequestCount = 4
	rec.LastRequestedAt = time.Now().Add(-2 * time.Hour)
	out := RenderRecords([]model.ClipRecord{rec})
	assert.Contains(t, out, "2.5 MB")
	assert.Contains(t, out, "2 hours ago")

	rec.Extra = map[string]string{"zone": "defensive"}
	detail := RenderRecord(&rec, 120)
	assert.Contains(t, detail, "defensive")
	assert.Contains(t, detail, rec.ClipID)

	stats := RenderStats(model.Stats{TotalClips: 1200, DistinctHashes: 1100, TotalBytes: 3_000_000_000}, 80)
	assert.Contains(t, stats, "1,200")
	assert.Contains(t, stats, "3.0 GB")
	assert.Contains(t, stats, "100 clips share bytes")
}

func TestInfoBoxKeepsWidth(t *testing.T) {
	box := components.RenderInfoBox("Index", []string{"short", strings.Repeat("x", 100)}, 30)
	for _, line := range strings.Split(box, "\n") {
		assert.Equal(t, 30, lipgloss.Width(line), line)
	}
	assert.Empty(t, components.RenderInfoBox("x", nil, 3))
}

func TestProgressBar(t *testing.T) {
	bar := components.ProgressBar(1, 4, 25)
	assert.Equal(t, 25, lipgloss.Width(bar))
	assert.Contains(t, bar, " 25%")
	assert.Contains(t, components.ProgressBar(0, 0, 10), "  0%")
}

func TestStatusBar(t *testing.T) {
	bar := components.StatusBar("Running", "q cancel", 40)
	assert.Equal(t, 40, lipgloss.Width(bar))
	assert.True(t, strings.HasPrefix(bar, " Running"))
	assert.Contains(t, bar, "q cancel")

	narrow := components.StatusBar("Running", "q cancel", 10)
	assert.Equal(t, 10, lipgloss.Width(narrow))
	assert.NotContains(t, narrow, "cancel")

	assert.Equal(t, "ab  ", components.PadToWidth("ab", 4))
	assert.Equal(t, "abc", components.PadToWidth("abcdef", 3))
}
