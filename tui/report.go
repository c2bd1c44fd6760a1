package tui

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pipeline"
	"github.com/user/clipengine/pkg/timeutil"
	"github.com/user/clipengine/tui/components"
	"github.com/user/clipengine/tui/styles"
)

// shortID keeps the first block of a UUID.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func newTable(headers ...string) *table.Table {
	headerStyle := styles.Header.Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1).Foreground(styles.LightLavender)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.Purple)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cell
		})
}

// RenderReport renders a finished batch: a summary box, the produced clips
// and the requests that could not be served with their reasons.
func RenderReport(b *pipeline.Batch, width int) string {
	if b.NoMatch != "" {
		return styles.SecondaryText.Render(b.NoMatch) + "\n"
	}

	ok, failed := b.Succeeded(), b.Failed()
	summary := []string{
		fmt.Sprintf(" Requested: %d", len(b.Outcomes)),
		" Indexed:   " + styles.Success.Render(strconv.Itoa(len(ok))) +
			styles.Cached.Render(fmt.Sprintf("  (%d from cache)", b.CacheHits())),
	}
	if len(failed) > 0 {
		summary = append(summary, " Failed:    "+styles.Warning.Render(strconv.Itoa(len(failed))))
	}
	if !b.Finished.IsZero() {
		summary = append(summary, styles.SecondaryText.Render(fmt.Sprintf(" Took:      %s", b.Finished.Sub(b.Started).Round(time.Millisecond))))
	}

	var sb strings.Builder
	sb.WriteString(components.RenderInfoBox("Search", summary, min(width, 60)))
	sb.WriteString("\n")

	if len(ok) > 0 {
		t := newTable("Clip", "Player", "Game", "Per", "Type", "Window", "", "File")
		for _, o := range ok {
			r := o.Record
			cache := "new"
			if o.CacheHit {
				cache = "cached"
			}
			t.Row(shortID(r.ClipID), r.PlayerID, r.GameID, strconv.Itoa(r.Period), string(r.EventType),
				timeutil.FormatWindow(r.Start, r.End), cache, r.OutputPath)
		}
		sb.WriteString(t.String())
		sb.WriteString("\n")
	}

	if len(failed) > 0 {
		sb.WriteString(styles.Header.Render("Unresolved"))
		sb.WriteString("\n")
		for _, o := range failed {
			sb.WriteString(" " + styles.Warning.Render(styles.StateIcon(model.StateFailed)) + " " +
				styles.PrimaryText.Render(o.Key) + "  " + styles.SecondaryText.Render(o.Reason) + "\n")
		}
	}
	return sb.String()
}

// RenderRecords renders index rows as a table.
func RenderRecords(recs []model.ClipRecord) string {
	if len(recs) == 0 {
		return styles.SecondaryText.Render("No clips.") + "\n"
	}
	t := newTable("Clip", "Player", "Game", "Date", "Per", "Type", "Window", "Size", "Hits", "Last requested")
	for _, r := range recs {
		t.Row(shortID(r.ClipID), r.PlayerID, r.GameID, r.GameDate.Format(timeutil.DateLayout),
			strconv.Itoa(r.Period), string(r.EventType), timeutil.FormatWindow(r.Start, r.End),
			humanize.Bytes(uint64(max(r.FileSize, 0))), strconv.Itoa(r.RequestCount),
			humanize.Time(r.LastRequestedAt))
	}
	return t.String() + "\n"
}

// RenderRecord renders every field of one clip.
func RenderRecord(r *model.ClipRecord, width int) string {
	label := func(k, v string) string {
		return styles.SecondaryText.Render(fmt.Sprintf(" %-15s", k)) + styles.PrimaryText.Render(v)
	}
	lines := []string{
		label("clip id", r.ClipID),
		label("content hash", r.ContentHash),
		label("file", r.OutputPath),
		label("thumbnail", r.ThumbnailPath),
		label("size", humanize.Bytes(uint64(max(r.FileSize, 0)))),
		label("source", r.SourcePath),
		label("window", fmt.Sprintf("%s (%.3fs)", timeutil.FormatWindow(r.Start, r.End), r.Duration())),
		label("kind", fmt.Sprintf("%s %s", r.Kind, r.SourceID)),
		label("player", r.PlayerID),
		label("game", fmt.Sprintf("%s on %s, period %d at %s", r.GameID, r.GameDate.Format(timeutil.DateLayout), r.Period, timeutil.FormatOffset(r.Timecode))),
		label("event", strings.TrimSpace(string(r.EventType)+" "+r.Outcome)),
		label("teams", fmt.Sprintf("%s vs %s", r.Team, r.Opponent)),
		label("requests", fmt.Sprintf("%d, last %s", r.RequestCount, r.LastRequestedAt.Format(time.RFC3339))),
		label("created", r.CreatedAt.Format(time.RFC3339)),
	}
	for _, k := range slices.Sorted(maps.Keys(r.Extra)) {
		lines = append(lines, label(k, r.Extra[k]))
	}
	return components.RenderInfoBox("Clip", lines, width) + "\n"
}

// RenderStats renders the aggregate index view.
func RenderStats(s model.Stats, width int) string {
	line := func(k, v string) string {
		return styles.SecondaryText.Render(fmt.Sprintf(" %-17s", k)) + styles.PrimaryText.Render(v)
	}
	lines := []string{
		line("Clips", humanize.Comma(s.TotalClips)),
		line("Distinct files", humanize.Comma(s.DistinctHashes)),
		line("Bytes on disk", humanize.Bytes(uint64(max(s.TotalBytes, 0)))),
		line("Players", humanize.Comma(s.DistinctPlayers)),
		line("Games", humanize.Comma(s.DistinctGames)),
		line("Requests served", humanize.Comma(s.TotalRequests)),
	}
	if s.TotalClips > 0 && s.DistinctHashes < s.TotalClips {
		lines = append(lines, styles.Cached.Render(fmt.Sprintf(" %d clips share bytes with another clip", s.TotalClips-s.DistinctHashes)))
	}
	return components.RenderInfoBox("Index", lines, min(width, 60)) + "\n"
}
