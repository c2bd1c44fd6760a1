// Package tui renders search runs in the terminal: a live progress view, the
// final batch report and index listings.
package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/clipengine/model"
	"github.com/user/clipengine/pipeline"
	"github.com/user/clipengine/tui/components"
	"github.com/user/clipengine/tui/styles"
)

const (
	// defaultWidth is used until the terminal reports its size.
	defaultWidth = 80
	// visibleRows is how many requests the progress box lists.
	visibleRows = 8
	// tickInterval refreshes the elapsed-time counter.
	tickInterval = 250 * time.Millisecond
)

// ProgressMsg reports a state change of one request.
type ProgressMsg struct {
	Index int
	Key   string
	State model.State
}

// DoneMsg carries the finished batch.
type DoneMsg struct {
	Batch *pipeline.Batch
	Err   error
}

type tickMsg time.Time

type row struct {
	key   string
	state model.State
}

// Progress is the Bubbletea model for a running search.
type Progress struct {
	title   string
	cancel  context.CancelFunc
	rows    []row
	width   int
	started time.Time
	now     time.Time

	cancelling bool
	done       bool
	batch      *pipeline.Batch
	err        error
}

// NewProgress creates the model. cancel aborts the search when the user
// quits early; the view itself stays up until a DoneMsg arrives.
func NewProgress(title string, cancel context.CancelFunc) *Progress {
	now := time.Now()
	return &Progress{title: title, cancel: cancel, width: defaultWidth, started: now, now: now}
}

// Result returns the batch and error once the run has finished.
func (m *Progress) Result() (*pipeline.Batch, error) {
	return m.batch, m.err
}

func (m *Progress) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
	case ProgressMsg:
		for len(m.rows) <= msg.Index {
			m.rows = append(m.rows, row{})
		}
		m.rows[msg.Index] = row{key: msg.Key, state: msg.State}
	case tickMsg:
		m.now = time.Time(msg)
		if !m.done {
			return m, tick()
		}
	case DoneMsg:
		m.done = true
		m.batch, m.err = msg.Batch, msg.Err
		m.now = time.Now()
		return m, tea.Quit
	}
	return m, nil
}

// counts returns settled, indexed and failed totals.
func (m *Progress) counts() (settled, indexed, failed int) {
	for _, r := range m.rows {
		switch r.state {
		case model.StateIndexed:
			indexed++
		case model.StateFailed:
			failed++
		}
	}
	return indexed + failed, indexed, failed
}

func (m *Progress) View() string {
	width := min(m.width, 100)
	settled, indexed, failed := m.counts()

	lines := []string{" " + components.ProgressBar(settled, len(m.rows), width-4)}

	summary := fmt.Sprintf(" %d/%d settled  %s indexed", settled, len(m.rows), styles.Success.Render(fmt.Sprint(indexed)))
	if failed > 0 {
		summary += "  " + styles.Warning.Render(fmt.Sprintf("%d failed", failed))
	}
	summary += styles.SecondaryText.Render(fmt.Sprintf("  %s", m.now.Sub(m.started).Round(time.Second)))
	lines = append(lines, summary)

	// Show requests still in flight first, then the most recently settled.
	var shown []row
	for _, r := range m.rows {
		if r.key != "" && !r.state.Terminal() {
			shown = append(shown, r)
		}
	}
	for i := len(m.rows) - 1; i >= 0 && len(shown) < visibleRows; i-- {
		if m.rows[i].state.Terminal() {
			shown = append(shown, m.rows[i])
		}
	}
	if len(shown) > visibleRows {
		shown = shown[:visibleRows]
	}
	for _, r := range shown {
		st := styles.State(r.state)
		lines = append(lines, " "+st.Render(styles.StateIcon(r.state))+" "+
			styles.PrimaryText.Render(r.key)+" "+st.Render(string(r.state)))
	}

	status, hints := styles.SecondaryText.Render("Running"), "q cancel"
	switch {
	case m.done:
		status, hints = styles.Success.Render("Done"), ""
	case m.cancelling:
		status, hints = styles.Warning.Render("Cancelling…"), ""
	}
	lines = append(lines, components.StatusBar(status, hints, width-2))

	return lipgloss.NewStyle().MarginBottom(1).Render(components.RenderInfoBox(m.title, lines, width))
}

// RunProgress runs a search under the live progress view, writing the view
// to out. Quitting the view cancels the search.
func RunProgress(ctx context.Context, p *pipeline.Pipeline, params model.SearchParams, out io.Writer) (*pipeline.Batch, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewProgress("Clip search", cancel)
	prog := tea.NewProgram(m, tea.WithOutput(out))

	p.OnProgress(func(i int, key string, state model.State) {
		prog.Send(ProgressMsg{Index: i, Key: key, State: state})
	})
	defer p.OnProgress(nil)

	finished := make(chan DoneMsg, 1)
	go func() {
		b, err := p.Run(ctx, params)
		finished <- DoneMsg{Batch: b, Err: err}
		prog.Send(DoneMsg{Batch: b, Err: err})
	}()

	if _, err := prog.Run(); err != nil {
		// The view failed; stop the search and wait for it to unwind.
		cancel()
		<-finished
		return nil, fmt.Errorf("progress view: %w", err)
	}
	done := <-finished
	return done.Batch, done.Err
}
