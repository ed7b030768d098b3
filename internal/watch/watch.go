// Package watch renders a live terminal view of the scan state.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/auros/internal/model"
)

// maxErrorsShown caps the error lines rendered; the full list stays in the store.
const maxErrorsShown = 5

// StatusSource reports the current scan state.
type StatusSource interface {
	Status(ctx context.Context) (model.ScanState, error)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

type statusMsg struct {
	state model.ScanState
	err   error
}

type pollMsg struct{}

type watchModel struct {
	ctx      context.Context
	source   StatusSource
	interval time.Duration

	spinner spinner.Model
	bar     progress.Model

	state  model.ScanState
	err    error
	loaded bool
	done   bool
}

func newModel(ctx context.Context, source StatusSource, interval time.Duration) watchModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	return watchModel{
		ctx:      ctx,
		source:   source,
		interval: interval,
		spinner:  s,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m watchModel) fetch() tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		st, err := source.Status(ctx)
		return statusMsg{state: st, err: err}
	}
}

func (m watchModel) poll() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.done = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-24, 60))
		return m, nil

	case statusMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.state = msg.state
			if !m.state.Running() {
				m.done = true
				return m, tea.Quit
			}
		}
		return m, m.poll()

	case pollMsg:
		return m, m.fetch()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) percent() float64 {
	if m.state.CompaniesTotal <= 0 {
		return 0
	}
	return min(1, float64(m.state.CompaniesScanned)/float64(m.state.CompaniesTotal))
}

func (m watchModel) View() string {
	var b strings.Builder

	switch {
	case !m.loaded:
		fmt.Fprintf(&b, "%s Loading scan status...\n", m.spinner.View())
		return b.String()
	case m.state.Running():
		fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), titleStyle.Render("Scan in progress"))
	default:
		fmt.Fprintf(&b, "%s\n\n", titleStyle.Render("Scan "+stateLabel(m.state)))
	}

	fmt.Fprintf(&b, "%s\n", m.bar.ViewAs(m.percent()))
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s%s\n", labelStyle.Render(label), value)
	}
	row("Scan ID", m.state.ScanID)
	row("Companies", fmt.Sprintf("%d / %d", m.state.CompaniesScanned, m.state.CompaniesTotal))
	row("Jobs found", fmt.Sprintf("%d", m.state.JobsFound))
	row("Jobs new", fmt.Sprintf("%d", m.state.JobsNew))
	if m.state.StartedAt != nil {
		row("Started", m.state.StartedAt.Local().Format("Jan 2 15:04:05"))
	}
	if m.state.CancelRequested {
		row("Cancellation", "requested")
	}

	if n := len(m.state.Errors); n > 0 {
		fmt.Fprintf(&b, "\n%s\n", errorStyle.Render(fmt.Sprintf("Errors (%d)", n)))
		for _, e := range m.state.Errors[:min(n, maxErrorsShown)] {
			fmt.Fprintf(&b, "  • %s\n", e)
		}
		if n > maxErrorsShown {
			fmt.Fprintf(&b, "  … and %d more\n", n-maxErrorsShown)
		}
	}
	if m.err != nil {
		fmt.Fprintf(&b, "\n%s\n", errorStyle.Render("status unavailable: "+m.err.Error()))
	}
	if !m.done {
		fmt.Fprintf(&b, "\n%s\n", hintStyle.Render("q to quit (the scan keeps running)"))
	}
	return b.String()
}

func stateLabel(st model.ScanState) string {
	switch {
	case st.Stale:
		return "stale (abandoned)"
	case st.Status == model.ScanCompleted && st.CancelRequested:
		return "cancelled"
	default:
		return string(st.Status)
	}
}

// Run polls source every interval and renders the scan until it finishes or
// the user quits. It renders inline (no alt screen) so the final state stays
// on the terminal.
func Run(ctx context.Context, source StatusSource, interval time.Duration) (model.ScanState, error) {
	p := tea.NewProgram(newModel(ctx, source, interval), tea.WithContext(ctx))
	result, err := p.Run()
	if err != nil {
		return model.ScanState{}, err
	}
	final := result.(watchModel)
	return final.state, final.err
}
