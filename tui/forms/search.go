// Package forms provides huh-based forms for interactive searches.
package forms

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pkg/timeutil"
)

// SearchResult holds the raw text of a search, as typed into the form or
// given as command-line flags.
type SearchResult struct {
	Mode       string
	Players    string
	EventTypes []string
	Games      string
	LastN      string
	From       string
	To         string
	Opponent   string
	Team       string
	Limit      string
	Pre        string
	Post       string
}

// Params converts the result into validated search parameters.
func (r *SearchResult) Params() (model.SearchParams, error) {
	p := model.SearchParams{
		Mode:     model.Mode(strings.TrimSpace(r.Mode)),
		Players:  splitList(r.Players),
		Opponent: strings.TrimSpace(r.Opponent),
		Team:     strings.TrimSpace(r.Team),
	}
	if p.Mode == "" {
		p.Mode = model.ModeEvent
	}
	for _, t := range r.EventTypes {
		p.EventTypes = append(p.EventTypes, model.EventType(strings.TrimSpace(t)))
	}
	p.Timeframe.GameIDs = splitList(r.Games)

	var err error
	if p.Timeframe.LastN, err = optionalInt("last-n", r.LastN); err != nil {
		return p, err
	}
	if p.Limit, err = optionalInt("limit", r.Limit); err != nil {
		return p, err
	}
	if p.Timeframe.From, err = timeutil.ParseDate(strings.TrimSpace(r.From)); err != nil {
		return p, fmt.Errorf("%w: from: %v", model.ErrInvalidParams, err)
	}
	if p.Timeframe.To, err = timeutil.ParseDate(strings.TrimSpace(r.To)); err != nil {
		return p, fmt.Errorf("%w: to: %v", model.ErrInvalidParams, err)
	}
	if p.PrePad, err = optionalSeconds("pre", r.Pre); err != nil {
		return p, err
	}
	if p.PostPad, err = optionalSeconds("post", r.Post); err != nil {
		return p, err
	}
	return p, p.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalInt(name, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number, got '%s'", model.ErrInvalidParams, name, s)
	}
	return n, nil
}

func optionalSeconds(name, s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	v, err := timeutil.ParseTimeToSeconds(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", model.ErrInvalidParams, name, err)
	}
	return v, nil
}

func validInt(name string) func(string) error {
	return func(s string) error {
		_, err := optionalInt(name, s)
		return err
	}
}

func validSeconds(name string) func(string) error {
	return func(s string) error {
		_, err := optionalSeconds(name, s)
		return err
	}
}

// NewSearchForm creates a huh form for building a search. Fields start out
// with the values already in result, so flags given on the command line are
// pre-filled.
func NewSearchForm(result *SearchResult) *huh.Form {
	if result.Mode == "" {
		result.Mode = string(model.ModeEvent)
	}
	var typeOptions []huh.Option[string]
	for _, t := range model.Taxonomy {
		typeOptions = append(typeOptions, huh.NewOption(string(t), string(t)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title("Clip search"),

			huh.NewSelect[string]().
				Title("Mode").
				Options(
					huh.NewOption("Events (padded window)", string(model.ModeEvent)),
					huh.NewOption("Shifts (exact bounds)", string(model.ModeShift)),
				).
				Value(&result.Mode),

			huh.NewInput().
				Title("Players").
				Description("Comma separated ids; required for shifts").
				Value(&result.Players),

			huh.NewMultiSelect[string]().
				Title("Event types").
				Description("Required for event mode").
				Options(typeOptions...).
				Value(&result.EventTypes),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Games").
				Description("Comma separated game ids").
				Value(&result.Games),

			huh.NewInput().
				Title("Last N games").
				Value(&result.LastN).
				Validate(validInt("last-n")),

			huh.NewInput().
				Title("From").
				Description("YYYY-MM-DD").
				Value(&result.From),

			huh.NewInput().
				Title("To").
				Description("YYYY-MM-DD").
				Value(&result.To),

			huh.NewInput().
				Title("Opponent").
				Description("Optional").
				Value(&result.Opponent),

			huh.NewInput().
				Title("Team").
				Description("Optional").
				Value(&result.Team),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Limit").
				Description("Most recent N matches; empty for all").
				Value(&result.Limit).
				Validate(validInt("limit")),

			huh.NewInput().
				Title("Pre padding").
				Description("Seconds or MM:SS before each event").
				Value(&result.Pre).
				Validate(validSeconds("pre")),

			huh.NewInput().
				Title("Post padding").
				Description("Seconds or MM:SS after each event").
				Value(&result.Post).
				Validate(validSeconds("post")),
		).WithShowErrors(true),
	).WithTheme(Theme())
}
