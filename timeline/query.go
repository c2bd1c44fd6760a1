package timeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/clipengine/model"
)

const dateLayout = "2006-01-02"

// dialect captures the few places the SQLite and Postgres stores differ.
type dialect struct {
	placeholder func(n int) string
	dateExpr    string
	dateArg     func(t time.Time) any
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	dateExpr:    "g.game_date",
	dateArg:     func(t time.Time) any { return t.Format(dateLayout) },
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	dateExpr:    "to_char(g.game_date, 'YYYY-MM-DD')",
	dateArg:     func(t time.Time) any { return t },
}

// opponentExpr resolves the opposing team of a team column against the
// joined games row g.
func opponentExpr(teamCol string) string {
	return fmt.Sprintf("(CASE WHEN %[1]s = g.home_team THEN g.away_team WHEN %[1]s = g.away_team THEN g.home_team ELSE '' END)", teamCol)
}

type builder struct {
	d     dialect
	conds []string
	args  []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

func (b *builder) list(values []string) string {
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = b.arg(v)
	}
	return "(" + strings.Join(ph, ", ") + ")"
}

func (b *builder) where(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *builder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func gamesSQL(d dialect, q GameQuery) (string, []any) {
	b := &builder{d: d}
	if len(q.GameIDs) > 0 {
		b.where("g.game_id IN " + b.list(q.GameIDs))
	}
	if !q.From.IsZero() {
		b.where("g.game_date >= " + b.arg(d.dateArg(q.From)))
	}
	if !q.To.IsZero() {
		b.where("g.game_date <= " + b.arg(d.dateArg(q.To)))
	}
	switch {
	case q.Team != "" && q.Opponent != "":
		b.where(fmt.Sprintf("((g.home_team = %s AND g.away_team = %s) OR (g.away_team = %s AND g.home_team = %s))",
			b.arg(q.Team), b.arg(q.Opponent), b.arg(q.Team), b.arg(q.Opponent)))
	case q.Team != "":
		b.where(fmt.Sprintf("(g.home_team = %s OR g.away_team = %s)", b.arg(q.Team), b.arg(q.Team)))
	case q.Opponent != "":
		b.where(fmt.Sprintf("(g.home_team = %s OR g.away_team = %s)", b.arg(q.Opponent), b.arg(q.Opponent)))
	}
	if len(q.Players) > 0 {
		b.where("(EXISTS (SELECT 1 FROM event_players ep JOIN events e ON e.event_id = ep.event_id" +
			" WHERE e.game_id = g.game_id AND ep.player_id IN " + b.list(q.Players) + ")" +
			" OR EXISTS (SELECT 1 FROM shifts s WHERE s.game_id = g.game_id AND s.player_id IN " + b.list(q.Players) + "))")
	}

	query := "SELECT g.game_id, " + d.dateExpr + ", g.home_team, g.away_team FROM games g" +
		b.clause() + " ORDER BY g.game_date DESC, g.game_id DESC"
	if q.Latest > 0 {
		query += " LIMIT " + b.arg(q.Latest)
	}
	return query, b.args
}

func eventsSQL(d dialect, q EventQuery) (string, []any) {
	b := &builder{d: d}
	b.where("e.game_id IN " + b.list(q.GameIDs))
	if len(q.EventTypes) > 0 {
		types := make([]string, len(q.EventTypes))
		for i, t := range q.EventTypes {
			types[i] = string(t)
		}
		b.where("e.event_type IN " + b.list(types))
	}
	if len(q.Players) > 0 {
		b.where("EXISTS (SELECT 1 FROM event_players ep WHERE ep.event_id = e.event_id AND ep.player_id IN " + b.list(q.Players) + ")")
	}
	if q.Team != "" {
		b.where("e.team = " + b.arg(q.Team))
	}
	if q.Opponent != "" {
		b.where(opponentExpr("e.team") + " = " + b.arg(q.Opponent))
	}

	query := "SELECT e.event_id, e.game_id, " + d.dateExpr + ", e.period, e.timecode, e.event_type," +
		" e.outcome, e.team, " + opponentExpr("e.team") + ", e.extra" +
		" FROM events e JOIN games g ON g.game_id = e.game_id" +
		b.clause() + " ORDER BY e.game_id, e.period, e.timecode, e.event_id"
	return query, b.args
}

func participantsSQL(d dialect, eventIDs []string) (string, []any) {
	b := &builder{d: d}
	b.where("event_id IN " + b.list(eventIDs))
	return "SELECT event_id, player_id FROM event_players" + b.clause() + " ORDER BY event_id, position, player_id", b.args
}

func shiftsSQL(d dialect, q ShiftQuery) (string, []any) {
	b := &builder{d: d}
	b.where("s.game_id IN " + b.list(q.GameIDs))
	if len(q.Players) > 0 {
		b.where("s.player_id IN " + b.list(q.Players))
	}
	if q.Team != "" {
		b.where("s.team = " + b.arg(q.Team))
	}
	if q.Opponent != "" {
		b.where(opponentExpr("s.team") + " = " + b.arg(q.Opponent))
	}

	query := "SELECT s.shift_id, s.game_id, " + d.dateExpr + ", s.period, s.player_id, s.team, " +
		opponentExpr("s.team") + ", s.start_offset, s.end_offset" +
		" FROM shifts s JOIN games g ON g.game_id = s.game_id" +
		b.clause() + " ORDER BY s.game_id, s.period, s.start_offset, s.shift_id"
	return query, b.args
}

func manifestSQL(d dialect) string {
	return "SELECT source_path, offset_correction, duration_seconds FROM video_manifest WHERE game_id = " +
		d.placeholder(1) + " AND period = " + d.placeholder(2)
}

// rows is the iteration surface shared by *sql.Rows and pgx.Rows.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanGames(r rows) ([]model.Game, error) {
	var games []model.Game
	for r.Next() {
		var g model.Game
		var date string
		if err := r.Scan(&g.GameID, &date, &g.HomeTeam, &g.AwayTeam); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		d, err := parseDate(date)
		if err != nil {
			return nil, fmt.Errorf("game %s: %w", g.GameID, err)
		}
		g.GameDate = d
		games = append(games, g)
	}
	return games, r.Err()
}

func scanEvents(r rows) ([]model.TimelineEvent, error) {
	var events []model.TimelineEvent
	for r.Next() {
		var e model.TimelineEvent
		var date, eventType, extra string
		if err := r.Scan(&e.EventID, &e.GameID, &date, &e.Period, &e.Timecode, &eventType,
			&e.Outcome, &e.Team, &e.Opponent, &extra); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		d, err := parseDate(date)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", e.EventID, err)
		}
		e.GameDate = d
		e.EventType = model.EventType(eventType)
		if extra != "" && extra != "{}" {
			if err := json.Unmarshal([]byte(extra), &e.Extra); err != nil {
				return nil, fmt.Errorf("event %s extra: %w", e.EventID, err)
			}
		}
		events = append(events, e)
	}
	return events, r.Err()
}

func scanParticipants(r rows) (map[string][]string, error) {
	out := make(map[string][]string)
	for r.Next() {
		var eventID, playerID string
		if err := r.Scan(&eventID, &playerID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[eventID] = append(out[eventID], playerID)
	}
	return out, r.Err()
}

func scanShifts(r rows) ([]model.ShiftInterval, error) {
	var shifts []model.ShiftInterval
	for r.Next() {
		var s model.ShiftInterval
		var date string
		if err := r.Scan(&s.ShiftID, &s.GameID, &date, &s.Period, &s.PlayerID, &s.Team,
			&s.Opponent, &s.Start, &s.End); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		d, err := parseDate(date)
		if err != nil {
			return nil, fmt.Errorf("shift %s: %w", s.ShiftID, err)
		}
		s.GameDate = d
		shifts = append(shifts, s)
	}
	return shifts, r.Err()
}

func eventIDs(events []model.TimelineEvent) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.EventID
	}
	return ids
}

func attachParticipants(events []model.TimelineEvent, byEvent map[string][]string) {
	for i := range events {
		events[i].Participants = byEvent[events[i].EventID]
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse game date %q: %w", s, err)
	}
	return d, nil
}
