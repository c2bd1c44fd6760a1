// Package model holds the types that flow through the clip engine: search
// parameters, timeline rows, manifest entries, cut segments and the persisted
// clip record.
package model

import (
	"fmt"
	"time"
)

// Mode selects how clip boundaries are computed.
type Mode string

const (
	// ModeEvent cuts a padded window around a single event timecode.
	ModeEvent Mode = "event"
	// ModeShift cuts exactly from shift start to shift end with no padding.
	ModeShift Mode = "shift"
)

// EventType is a tag from the fixed event taxonomy.
type EventType string

const (
	EventGoal      EventType = "goal"
	EventShot      EventType = "shot"
	EventZoneEntry EventType = "zone_entry"
	EventZoneExit  EventType = "zone_exit"
	EventShift     EventType = "shift"
	EventPass      EventType = "pass"
	EventHit       EventType = "hit"
	EventFaceoff   EventType = "faceoff"
	EventTakeaway  EventType = "takeaway"
	EventGiveaway  EventType = "giveaway"
	EventBlock     EventType = "block"
	EventPenalty   EventType = "penalty"
)

// Taxonomy lists every event type in display order.
var Taxonomy = []EventType{
	EventGoal, EventShot, EventZoneEntry, EventZoneExit, EventShift, EventPass,
	EventHit, EventFaceoff, EventTakeaway, EventGiveaway, EventBlock, EventPenalty,
}

var taxonomy = func() map[EventType]bool {
	m := make(map[EventType]bool, len(Taxonomy))
	for _, t := range Taxonomy {
		m[t] = true
	}
	return m
}()

// Valid reports whether t belongs to the taxonomy.
func (t EventType) Valid() bool {
	return taxonomy[t]
}

// SourceKind says whether a segment came from an atomic event or a shift.
type SourceKind string

const (
	SourceEvent SourceKind = "event"
	SourceShift SourceKind = "shift"
)

// Timeframe selects the set of games a search runs over. Exactly one of
// GameIDs, LastN or the From/To range is set.
type Timeframe struct {
	GameIDs []string
	LastN   int
	From    time.Time
	To      time.Time
}

// IsRange reports whether the timeframe is a date range.
func (tf Timeframe) IsRange() bool {
	return !tf.From.IsZero() || !tf.To.IsZero()
}

// Validate checks that exactly one selector is used.
func (tf Timeframe) Validate() error {
	set := 0
	if len(tf.GameIDs) > 0 {
		set++
	}
	if tf.LastN != 0 {
		if tf.LastN < 0 {
			return fmt.Errorf("%w: last-n must be positive, got %d", ErrInvalidParams, tf.LastN)
		}
		set++
	}
	if tf.IsRange() {
		if !tf.From.IsZero() && !tf.To.IsZero() && tf.To.Before(tf.From) {
			return fmt.Errorf("%w: date range ends before it starts", ErrInvalidParams)
		}
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: timeframe needs exactly one of game ids, last-n or a date range", ErrInvalidParams)
	}
	return nil
}

// SearchParams is the resolved, immutable query for one pipeline invocation.
type SearchParams struct {
	Players    []string
	EventTypes []EventType
	Opponent   string
	Team       string
	Timeframe  Timeframe
	Limit      int
	PrePad     float64
	PostPad    float64
	Mode       Mode
}

// Validate rejects malformed parameters. A malformed query is a hard failure
// of the whole call.
func (p SearchParams) Validate() error {
	switch p.Mode {
	case ModeEvent:
		if len(p.EventTypes) == 0 {
			return fmt.Errorf("%w: event mode needs at least one event type", ErrInvalidParams)
		}
	case ModeShift:
		if len(p.Players) == 0 {
			return fmt.Errorf("%w: shift mode needs at least one player", ErrInvalidParams)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidParams, p.Mode)
	}
	for _, t := range p.EventTypes {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown event type %q", ErrInvalidParams, t)
		}
	}
	if p.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidParams)
	}
	if p.PrePad < 0 || p.PostPad < 0 {
		return fmt.Errorf("%w: padding must not be negative", ErrInvalidParams)
	}
	return p.Timeframe.Validate()
}

// Game is one row of the games table in the timeline store.
type Game struct {
	GameID   string
	GameDate time.Time
	HomeTeam string
	AwayTeam string
}

// Opponent returns the team that played against team in this game.
func (g Game) Opponent(team string) string {
	switch team {
	case g.HomeTeam:
		return g.AwayTeam
	case g.AwayTeam:
		return g.HomeTeam
	}
	return ""
}

// TimelineEvent is one read-only row from the external event store.
type TimelineEvent struct {
	EventID      string
	GameID       string
	GameDate     time.Time
	Period       int
	Timecode     float64
	Participants []string
	EventType    EventType
	Outcome      string
	Team         string
	Opponent     string
	Extra        map[string]string
}

// ShiftInterval is one recorded player shift.
type ShiftInterval struct {
	ShiftID  string
	GameID   string
	GameDate time.Time
	Period   int
	PlayerID string
	Team     string
	Opponent string
	Start    float64
	End      float64
}

// Length returns the recorded shift length in seconds.
func (s ShiftInterval) Length() float64 {
	return s.End - s.Start
}

// VideoManifestEntry maps a (game, period) to its source video.
type VideoManifestEntry struct {
	GameID           string
	Period           int
	SourcePath       string
	OffsetCorrection float64
	DurationSeconds  float64
}

// ClipSegment is a resolved cut instruction with full provenance.
type ClipSegment struct {
	SourcePath string
	Start      float64
	End        float64

	Kind      SourceKind
	SourceID  string
	PlayerID  string
	GameID    string
	GameDate  time.Time
	Period    int
	EventType EventType
	Outcome   string
	Team      string
	Opponent  string
	Timecode  float64
	Extra     map[string]string
}

// Duration returns End - Start.
func (s ClipSegment) Duration() float64 {
	return s.End - s.Start
}

// Key identifies the logical request a segment came from.
func (s ClipSegment) Key() string {
	return fmt.Sprintf("%s/%s/%s/p%d/%s", s.Kind, s.GameID, s.PlayerID, s.Period, s.SourceID)
}

// ClipRecord is the persisted unit in the metadata index.
type ClipRecord struct {
	ClipID        string
	ContentHash   string
	OutputPath    string
	ThumbnailPath string

	SourcePath string
	Start      float64
	End        float64
	Kind       SourceKind
	SourceID   string
	PlayerID   string
	GameID     string
	GameDate   time.Time
	Period     int
	EventType  EventType
	Outcome    string
	Team       string
	Opponent   string
	Timecode   float64
	Extra      map[string]string

	FileSize        int64
	RequestCount    int
	CreatedAt       time.Time
	LastRequestedAt time.Time
}

// Duration returns End - Start.
func (r ClipRecord) Duration() float64 {
	return r.End - r.Start
}

// Filters narrows an index query. Zero values match everything.
type Filters struct {
	Players    []string
	GameIDs    []string
	EventTypes []EventType
	Teams      []string
	From       time.Time
	To         time.Time
}

// Stats is the aggregate view of the index.
type Stats struct {
	TotalClips      int64
	TotalBytes      int64
	DistinctHashes  int64
	DistinctPlayers int64
	DistinctGames   int64
	TotalRequests   int64
}
