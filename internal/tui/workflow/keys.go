package workflow

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/medannot/medannot/internal/tui/style"
	"github.com/medannot/medannot/pkg/collections"
)

var backKey = key.NewBinding(
	key.WithKeys("esc"),
	key.WithHelp("esc", "retour"),
)

func renderKeyHelp(keyBinding key.Binding, suffix ...string) string {
	s := style.Help.Render("[") + style.Key.Render(keyBinding.Help().Key) +
		style.Help.Render("] ") +
		style.Help.Render(keyBinding.Help().Desc)

	return s + strings.Join(suffix, "")
}

func renderHelpLine(bindings ...key.Binding) string {
	parts := collections.Apply(bindings, func(b key.Binding) string {
		return renderKeyHelp(b)
	})

	return strings.Join(parts, " ")
}

// wrapText wraps text to width using lipgloss.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	return lipgloss.NewStyle().Width(width).Render(text)
}
