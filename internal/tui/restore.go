package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/tui/style"
)

const previewLen = 120

// restoreDialog offers to resume an interrupted annotation.
type restoreDialog struct {
	keys  restoreKeyMap
	draft draft.Record
}

func newRestoreDialog(rec draft.Record) *restoreDialog {
	return &restoreDialog{
		keys:  defaultRestoreKeyMap(),
		draft: rec,
	}
}

func (d *restoreDialog) View() string {
	return style.Dialog.Render(d.body())
}

func (d *restoreDialog) body() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render("Annotation en cours"))
	sb.WriteString("\n\n")

	sb.WriteString(style.Subtitle.Render("Une annotation non terminée a été trouvée."))
	sb.WriteString("\n")
	sb.WriteString(style.Label.Render("Étape: "))
	sb.WriteString(d.draft.Step.Title())
	if !d.draft.UpdatedAt.IsZero() {
		sb.WriteString(style.Muted.Render("  (" + d.draft.UpdatedAt.Local().Format("02/01/2006 15:04") + ")"))
	}
	sb.WriteString("\n\n")

	if text := preview(d.draft); text != "" {
		sb.WriteString(style.Muted.Render("« " + text + " »"))
		sb.WriteString("\n\n")
	}

	for _, b := range []key.Binding{d.keys.Restore, d.keys.Discard, d.keys.Dismiss} {
		sb.WriteString(style.Help.Render("[") + style.Key.Render(b.Help().Key) + style.Help.Render("] "+b.Help().Desc) + " ")
	}

	return sb.String()
}

// preview returns the start of the most advanced text in rec.
func preview(rec draft.Record) string {
	text := strings.TrimSpace(rec.Annotation)
	if text == "" {
		text = strings.TrimSpace(rec.Transcription)
	}
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > previewLen {
		return string(runes[:previewLen]) + "…"
	}

	return text
}
