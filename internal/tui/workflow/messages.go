// Package workflow implements one bubbletea phase per annotation wizard step.
// Phases act on the shared wizard and report back with ChangedMsg; the root
// model then follows the wizard to its current step.
package workflow

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/store"
)

// ChangedMsg reports that a wizard operation finished, successfully or not.
type ChangedMsg struct {
	Err error
}

// BusyMsg marks the start of a long-running operation. The label is shown
// next to the spinner until the matching ChangedMsg arrives.
type BusyMsg struct {
	Label string
}

// SavedMsg reports a saved annotation. The wizard is back on the patient
// step by then.
type SavedMsg struct {
	Annotation store.Annotation
}

type patientsLoadedMsg struct {
	patients []store.Patient
	err      error
}

type clipReadyMsg struct {
	clip audio.Clip
	err  error
}

func changed(err error) tea.Cmd {
	return func() tea.Msg {
		return ChangedMsg{Err: err}
	}
}

// run reports busy, then runs op off the update loop.
func run(label string, op func() error) tea.Cmd {
	return tea.Sequence(
		func() tea.Msg { return BusyMsg{Label: label} },
		func() tea.Msg { return ChangedMsg{Err: op()} },
	)
}
