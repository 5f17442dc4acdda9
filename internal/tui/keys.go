package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the bindings handled by the root model on every phase.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the global key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quitter"),
		),
	}
}

type restoreKeyMap struct {
	Restore key.Binding
	Discard key.Binding
	Dismiss key.Binding
}

func defaultRestoreKeyMap() restoreKeyMap {
	return restoreKeyMap{
		Restore: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reprendre"),
		),
		Discard: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "supprimer"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "plus tard"),
		),
	}
}
