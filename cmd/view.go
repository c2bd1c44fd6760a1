package cmd

import (
	"time"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pipeline"
)

// clipView is the --json shape of a clip record.
type clipView struct {
	ClipID          string            `json:"clip_id"`
	ContentHash     string            `json:"content_hash"`
	OutputPath      string            `json:"output_path"`
	ThumbnailPath   string            `json:"thumbnail_path,omitempty"`
	SourcePath      string            `json:"source_path"`
	Start           float64           `json:"start"`
	End             float64           `json:"end"`
	Kind            model.SourceKind  `json:"kind"`
	SourceID        string            `json:"source_id"`
	PlayerID        string            `json:"player_id"`
	GameID          string            `json:"game_id"`
	GameDate        string            `json:"game_date,omitempty"`
	Period          int               `json:"period"`
	EventType       model.EventType   `json:"event_type"`
	Outcome         string            `json:"outcome,omitempty"`
	Team            string            `json:"team,omitempty"`
	Opponent        string            `json:"opponent,omitempty"`
	Timecode        float64           `json:"timecode"`
	Extra           map[string]string `json:"extra,omitempty"`
	FileSize        int64             `json:"file_size"`
	RequestCount    int               `json:"request_count"`
	CreatedAt       time.Time         `json:"created_at"`
	LastRequestedAt time.Time         `json:"last_requested_at"`
}

func newClipView(r model.ClipRecord) clipView {
	v := clipView{
		ClipID:          r.ClipID,
		ContentHash:     r.ContentHash,
		OutputPath:      r.OutputPath,
		ThumbnailPath:   r.ThumbnailPath,
		SourcePath:      r.SourcePath,
		Start:           r.Start,
		End:             r.End,
		Kind:            r.Kind,
		SourceID:        r.SourceID,
		PlayerID:        r.PlayerID,
		GameID:          r.GameID,
		Period:          r.Period,
		EventType:       r.EventType,
		Outcome:         r.Outcome,
		Team:            r.Team,
		Opponent:        r.Opponent,
		Timecode:        r.Timecode,
		Extra:           r.Extra,
		FileSize:        r.FileSize,
		RequestCount:    r.RequestCount,
		CreatedAt:       r.CreatedAt,
		LastRequestedAt: r.LastRequestedAt,
	}
	if !r.GameDate.IsZero() {
		v.GameDate = r.GameDate.Format(time.DateOnly)
	}
	return v
}

type outcomeView struct {
	Key      string    `json:"key"`
	State    string    `json:"state"`
	CacheHit bool      `json:"cache_hit,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Clip     *clipView `json:"clip,omitempty"`
}

// batchView is the --json shape of a search result.
type batchView struct {
	NoMatch   string        `json:"no_match,omitempty"`
	Requested int           `json:"requested"`
	Indexed   int           `json:"indexed"`
	Failed    int           `json:"failed"`
	CacheHits int           `json:"cache_hits"`
	Took      string        `json:"took,omitempty"`
	Outcomes  []outcomeView `json:"outcomes"`
}

func newBatchView(b *pipeline.Batch) batchView {
	v := batchView{
		NoMatch:   b.NoMatch,
		Requested: len(b.Outcomes),
		Indexed:   len(b.Succeeded()),
		Failed:    len(b.Failed()),
		CacheHits: b.CacheHits(),
		Outcomes:  make([]outcomeView, 0, len(b.Outcomes)),
	}
	if !b.Finished.IsZero() {
		v.Took = b.Finished.Sub(b.Started).Round(time.Millisecond).String()
	}
	for _, o := range b.Outcomes {
		ov := outcomeView{Key: o.Key, State: string(o.State), CacheHit: o.CacheHit, Reason: o.Reason}
		if o.Record != nil {
			c := newClipView(*o.Record)
			ov.Clip = &c
		}
		v.Outcomes = append(v.Outcomes, ov)
	}
	return v
}

func newClipViews(recs []model.ClipRecord) []clipView {
	out := make([]clipView, 0, len(recs))
	for _, r := range recs {
		out = append(out, newClipView(r))
	}
	return out
}
