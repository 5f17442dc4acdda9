// Package labeledspinner shows a spinner with a label while a long call
// (transcription, generation, saving) is in flight.
package labeledspinner

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/tui/style"
)

// Model displays a spinner with title, subtitle, help text and the time
// spent since Start.
type Model struct {
	Spinner  spinner.Model
	Title    string
	Subtitle string
	Help     string

	started time.Time
	now     func() time.Time
}

// New creates a new labeled spinner with the given configuration.
func New(s spinner.Spinner, title, subtitle, help string) Model {
	sp := spinner.New()
	sp.Spinner = s

	return Model{
		Spinner:  sp,
		Title:    title,
		Subtitle: subtitle,
		Help:     help,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for the elapsed time.
func (ls Model) WithClock(now func() time.Time) Model {
	ls.now = now
	return ls
}

// Start relabels the spinner and resets the elapsed time.
func (ls Model) Start(title string) Model {
	ls.Title = title
	ls.started = ls.now()

	return ls
}

// Elapsed is the time since Start, or zero before the first Start.
func (ls Model) Elapsed() time.Duration {
	if ls.started.IsZero() {
		return 0
	}

	return ls.now().Sub(ls.started)
}

// Init returns the initial command for the spinner.
func (ls Model) Init() tea.Cmd {
	return ls.Spinner.Tick
}

// Update handles spinner tick messages.
func (ls Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	if tickMsg, ok := teaMsg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		ls.Spinner, cmd = ls.Spinner.Update(tickMsg)

		return ls, cmd
	}

	return ls, nil
}

// View renders the labeled spinner.
func (ls Model) View() string {
	var sb strings.Builder

	sb.WriteString(ls.Spinner.View())
	sb.WriteString(" ")
	sb.WriteString(style.Title.Render(ls.Title))
	if elapsed := ls.Elapsed(); elapsed >= time.Second {
		sb.WriteString(style.Muted.Render(fmt.Sprintf(" %ds", int(elapsed.Seconds()))))
	}
	sb.WriteString("\n\n")

	if ls.Subtitle != "" {
		sb.WriteString(style.Subtitle.Render(ls.Subtitle))
		sb.WriteString("\n\n")
	}

	sb.WriteString(style.Help.Render(ls.Help))

	return sb.String()
}
