// Package segment maps resolved timeline candidates onto cut windows in a
// source video file.
package segment

import (
	"fmt"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/resolve"
)

// Padding is the window added around an event timecode.
type Padding struct {
	Pre  float64
	Post float64
}

// Bounds returns the clip window around at, clamped to [0, duration]. A
// non-positive duration means the file length is unknown and only the lower
// bound is clamped.
func Bounds(at float64, pad Padding, duration float64) (start, end float64) {
	return Clamp(at-pad.Pre, at+pad.Post, duration)
}

// Clamp limits [start, end] to [0, duration].
func Clamp(start, end, duration float64) (float64, float64) {
	if start < 0 {
		start = 0
	}
	if duration > 0 && end > duration {
		end = duration
	}
	return start, end
}

// Map converts a candidate into a cut segment against its manifest entry.
// Offsets are shifted by the manifest's offset correction before padding.
// Shift candidates are cut at their recorded bounds with no padding. A
// window with no positive duration after clamping is an
// *model.InvalidSegmentError.
func Map(c resolve.Candidate, m model.VideoManifestEntry, pad Padding) (model.ClipSegment, error) {
	if m.GameID != c.GameID() || m.Period != c.Period() {
		return model.ClipSegment{}, fmt.Errorf("segment: manifest %s/p%d does not cover %s", m.GameID, m.Period, c.Key())
	}

	seg := model.ClipSegment{
		SourcePath: m.SourcePath,
		Kind:       c.Kind,
		SourceID:   c.SourceID(),
		PlayerID:   c.PlayerID,
		GameID:     c.GameID(),
		GameDate:   c.GameDate(),
		Period:     c.Period(),
	}

	switch c.Kind {
	case model.SourceShift:
		s := c.Shift
		seg.EventType = model.EventShift
		seg.Team = s.Team
		seg.Opponent = s.Opponent
		seg.Timecode = s.Start
		seg.Start, seg.End = Clamp(s.Start+m.OffsetCorrection, s.End+m.OffsetCorrection, m.DurationSeconds)
	default:
		e := c.Event
		seg.EventType = e.EventType
		seg.Outcome = e.Outcome
		seg.Team = e.Team
		seg.Opponent = e.Opponent
		seg.Timecode = e.Timecode
		seg.Extra = e.Extra
		seg.Start, seg.End = Bounds(e.Timecode+m.OffsetCorrection, pad, m.DurationSeconds)
	}

	if seg.Duration() <= 0 {
		return seg, &model.InvalidSegmentError{Key: c.Key(), Start: seg.Start, End: seg.End}
	}
	return seg, nil
}
