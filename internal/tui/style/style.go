// Package style defines the lipgloss styles shared by the wizard screens.
package style

import "github.com/charmbracelet/lipgloss"

// Palette. Teal is the MedAnnot accent; amber and red are kept for
// warnings and errors so they stand out from it.
var (
	accent  = lipgloss.AdaptiveColor{Light: "30", Dark: "44"}
	soft    = lipgloss.AdaptiveColor{Light: "244", Dark: "246"}
	faint   = lipgloss.AdaptiveColor{Light: "250", Dark: "240"}
	good    = lipgloss.Color("35")
	caution = lipgloss.Color("214")
	bad     = lipgloss.Color("160")
)

var (
	// Header is the application name at the top of every screen.
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("231")).
		Background(accent).
		Padding(0, 1)

	// Title is used for screen titles and the active state of a phase.
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(accent)

	// Subtitle is used for instructions under a title.
	Subtitle = lipgloss.NewStyle().
			Foreground(soft)

	Success = lipgloss.NewStyle().
		Foreground(good)

	Error = lipgloss.NewStyle().
		Foreground(bad)

	Warning = lipgloss.NewStyle().
		Foreground(caution)

	// Viewport frames the generated annotation.
	Viewport = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	// Dialog frames the restore prompt.
	Dialog = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(caution).
		Padding(1, 2)

	// Help is used for keyboard shortcut hints.
	Help = lipgloss.NewStyle().
		Foreground(faint)

	// Key highlights a key inside a hint.
	Key = lipgloss.NewStyle().
		Foreground(accent).
		Bold(true)

	// Wave draws the input level meter.
	Wave = lipgloss.NewStyle().
		Foreground(accent)

	// Label is used for form and detail labels ("Date", "Étape:").
	Label = lipgloss.NewStyle().
		Bold(true)

	// Muted is used for secondary details: ages, pathologies, paths.
	Muted = lipgloss.NewStyle().
		Foreground(soft)

	// Selected marks the highlighted row of a list.
	Selected = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	// Bullet is the cursor in front of the highlighted row.
	Bullet = lipgloss.NewStyle().
		Foreground(accent)
)
