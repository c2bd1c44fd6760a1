// Package resolve turns search parameters into an ordered list of timeline
// candidates: events in event mode, shifts in shift mode.
package resolve

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/timeline"
)

// Candidate is one matched event or shift, attributed to a player.
type Candidate struct {
	Kind     model.SourceKind
	Event    *model.TimelineEvent
	Shift    *model.ShiftInterval
	PlayerID string
}

// GameID returns the candidate's game.
func (c Candidate) GameID() string {
	if c.Shift != nil {
		return c.Shift.GameID
	}
	return c.Event.GameID
}

// GameDate returns the date of the candidate's game.
func (c Candidate) GameDate() time.Time {
	if c.Shift != nil {
		return c.Shift.GameDate
	}
	return c.Event.GameDate
}

// Period returns the candidate's period.
func (c Candidate) Period() int {
	if c.Shift != nil {
		return c.Shift.Period
	}
	return c.Event.Period
}

// Offset is the in-period time the candidate sorts by: the timecode of an
// event or the start of a shift.
func (c Candidate) Offset() float64 {
	if c.Shift != nil {
		return c.Shift.Start
	}
	return c.Event.Timecode
}

// SourceID returns the event or shift id.
func (c Candidate) SourceID() string {
	if c.Shift != nil {
		return c.Shift.ShiftID
	}
	return c.Event.EventID
}

// Key identifies the candidate in batch reports.
func (c Candidate) Key() string {
	return fmt.Sprintf("%s/%s/%s/p%d/%s", c.Kind, c.GameID(), c.PlayerID, c.Period(), c.SourceID())
}

// Resolver queries a timeline provider.
type Resolver struct {
	provider timeline.Provider
	logger   zerolog.Logger
}

// New creates a Resolver over provider.
func New(provider timeline.Provider, logger zerolog.Logger) *Resolver {
	return &Resolver{provider: provider, logger: logger}
}

// Resolve returns the candidates matching params sorted by game date, period
// and offset ascending. The limit keeps the last Limit candidates of the
// sorted list. A valid search with no matches returns a *model.NoMatchError.
func (r *Resolver) Resolve(ctx context.Context, params model.SearchParams) ([]Candidate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	games, err := r.Games(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, &model.NoMatchError{Reason: "no games in timeframe"}
	}
	gameIDs := make([]string, len(games))
	for i, g := range games {
		gameIDs[i] = g.GameID
	}

	var candidates []Candidate
	switch params.Mode {
	case model.ModeShift:
		shifts, err := r.provider.Shifts(ctx, timeline.ShiftQuery{
			GameIDs:  gameIDs,
			Players:  params.Players,
			Team:     params.Team,
			Opponent: params.Opponent,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve shifts: %w", err)
		}
		for i := range shifts {
			s := shifts[i]
			candidates = append(candidates, Candidate{Kind: model.SourceShift, Shift: &s, PlayerID: s.PlayerID})
		}
	default:
		events, err := r.provider.Events(ctx, timeline.EventQuery{
			GameIDs:    gameIDs,
			Players:    params.Players,
			EventTypes: params.EventTypes,
			Team:       params.Team,
			Opponent:   params.Opponent,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve events: %w", err)
		}
		for i := range events {
			e := events[i]
			candidates = append(candidates, Candidate{
				Kind:     model.SourceEvent,
				Event:    &e,
				PlayerID: attribute(e.Participants, params.Players),
			})
		}
	}

	if len(candidates) == 0 {
		return nil, &model.NoMatchError{Reason: fmt.Sprintf("%d game(s) searched", len(games))}
	}

	Sort(candidates)
	if params.Limit > 0 && len(candidates) > params.Limit {
		candidates = candidates[len(candidates)-params.Limit:]
	}

	r.logger.Debug().
		Int("games", len(games)).
		Int("candidates", len(candidates)).
		Str("mode", string(params.Mode)).
		Msg("resolved search")
	return candidates, nil
}

// Games resolves the timeframe of params to a game set.
func (r *Resolver) Games(ctx context.Context, params model.SearchParams) ([]model.Game, error) {
	tf := params.Timeframe
	q := timeline.GameQuery{Team: params.Team, Opponent: params.Opponent}
	switch {
	case len(tf.GameIDs) > 0:
		q.GameIDs = tf.GameIDs
	case tf.LastN > 0:
		q.Latest = tf.LastN
		q.Players = params.Players
	default:
		q.From, q.To = tf.From, tf.To
	}
	games, err := r.provider.Games(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("resolve games: %w", err)
	}
	return games, nil
}

// Sort orders candidates by game date, period and offset, breaking ties on
// game and source id so the order is total.
func Sort(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if da, db := a.GameDate(), b.GameDate(); !da.Equal(db) {
			return da.Before(db)
		}
		if a.GameID() != b.GameID() {
			return a.GameID() < b.GameID()
		}
		if a.Period() != b.Period() {
			return a.Period() < b.Period()
		}
		if a.Offset() != b.Offset() {
			return a.Offset() < b.Offset()
		}
		return a.SourceID() < b.SourceID()
	})
}

// attribute picks the player an event clip is filed under: the first
// requested player who took part, else the first participant.
func attribute(participants, requested []string) string {
	for _, p := range requested {
		if slices.Contains(participants, p) {
			return p
		}
	}
	if len(participants) > 0 {
		return participants[0]
	}
	return ""
}
