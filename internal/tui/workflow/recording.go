package workflow

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/tui/components/waveform"
	"github.com/medannot/medannot/internal/tui/style"
)

// recordingKeyMap defines the key bindings for the recording phase.
type recordingKeyMap struct {
	Toggle key.Binding
	Finish key.Binding
	Import key.Binding
	Retry  key.Binding
}

func defaultRecordingKeyMap() recordingKeyMap {
	return recordingKeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("espace", "enregistrer/pause"),
		),
		Finish: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "terminer"),
		),
		Import: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "importer un fichier"),
		),
		Retry: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "relancer la transcription"),
		),
	}
}

// recordingPhase captures the visit from the microphone, or imports an audio
// file, then sends the clip for transcription.
type recordingPhase struct {
	s        *Session
	keys     recordingKeyMap
	spinner  spinner.Model
	progress progress.Model
	wave     waveform.Model
	path     textinput.Model

	take      *Take
	importing bool
	// clip is kept after a failed transcription so it can be retried.
	clip *audio.Clip
}

// NewRecording creates the recording phase.
func NewRecording(s *Session) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Points

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	path := textinput.New()
	path.Placeholder = "/chemin/vers/visite.m4a"
	path.Width = 50

	return &recordingPhase{
		s:        s,
		keys:     defaultRecordingKeyMap(),
		spinner:  sp,
		progress: p,
		path:     path,
	}
}

// Init returns the initial command for the recording phase.
func (r *recordingPhase) Init() tea.Cmd {
	r.take = nil
	r.clip = nil
	r.importing = false
	r.path.Blur()
	r.path.SetValue("")

	return r.spinner.Tick
}

// Update handles messages for the recording phase.
func (r *recordingPhase) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.KeyMsg:
		if r.importing {
			return r.updateImport(msg)
		}

		return r.updateKeys(msg)

	case clipReadyMsg:
		r.take = nil
		if msg.err != nil {
			return r, changed(msg.err)
		}
		r.clip = &msg.clip

		return r, r.transcribe(msg.clip)

	case spinner.TickMsg:
		var cmd tea.Cmd
		r.spinner, cmd = r.spinner.Update(msg)
		if r.capReached() {
			return r, tea.Batch(cmd, r.finish())
		}

		return r, cmd

	case waveform.TickMsg:
		if r.take == nil {
			return r, nil
		}
		var cmd tea.Cmd
		r.wave, cmd = r.wave.Update(msg)

		return r, cmd
	}

	if r.importing {
		var cmd tea.Cmd
		r.path, cmd = r.path.Update(teaMsg)

		return r, cmd
	}

	return r, nil
}

func (r *recordingPhase) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, r.keys.Toggle):
		return r, r.toggle()

	case key.Matches(msg, r.keys.Finish):
		return r, r.finish()

	case key.Matches(msg, r.keys.Import):
		if r.take != nil {
			return r, nil
		}
		r.importing = true

		return r, r.path.Focus()

	case key.Matches(msg, r.keys.Retry):
		if r.clip == nil || r.take != nil {
			return r, nil
		}

		return r, r.transcribe(*r.clip)

	case key.Matches(msg, backKey):
		// The take has to be finished before leaving.
		if r.take != nil {
			return r, nil
		}

		return r, changed(r.s.Wizard.Back(r.s.Ctx))
	}

	return r, nil
}

func (r *recordingPhase) updateImport(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		r.importing = false
		r.path.Blur()

		return r, nil

	case tea.KeyEnter:
		path := strings.TrimSpace(r.path.Value())
		if path == "" {
			return r, nil
		}
		r.importing = false
		r.path.Blur()

		importer := r.s.Importer

		return r, tea.Sequence(
			func() tea.Msg { return BusyMsg{Label: "Import du fichier audio..."} },
			func() tea.Msg {
				clip, err := importer.ImportFile(path)
				return clipReadyMsg{clip: clip, err: err}
			},
		)
	}

	var cmd tea.Cmd
	r.path, cmd = r.path.Update(msg)

	return r, cmd
}

func (r *recordingPhase) toggle() tea.Cmd {
	if r.take == nil {
		if r.s.NewTake == nil {
			return changed(audio.ErrMicrophoneUnavailable)
		}

		take, err := r.s.NewTake(r.s.Ctx)
		if err != nil {
			return changed(fmt.Errorf("%w (appuyez sur i pour importer un fichier)", err))
		}
		r.take = take
		r.clip = nil
		r.wave = waveform.New(take.Levels, 40, 3)
		take.StartStopPause.Toggle()

		return r.wave.Init()
	}

	r.take.StartStopPause.Toggle()

	return nil
}

func (r *recordingPhase) finish() tea.Cmd {
	if r.take == nil {
		return nil
	}

	take := r.take
	if take.StartStopPause.Read() {
		take.StartStopPause.Off()
	}

	return tea.Sequence(
		func() tea.Msg { return BusyMsg{Label: "Finalisation de l'enregistrement..."} },
		func() tea.Msg {
			clip, err := take.Finish()
			return clipReadyMsg{clip: clip, err: err}
		},
	)
}

func (r *recordingPhase) transcribe(clip audio.Clip) tea.Cmd {
	ctx, w := r.s.Ctx, r.s.Wizard

	return run("Transcription en cours...", func() error {
		return w.Transcribe(ctx, clip)
	})
}

func (r *recordingPhase) capReached() bool {
	if r.take == nil || r.take.Captured == nil || !r.take.StartStopPause.Read() {
		return false
	}

	current, limit := r.take.Captured.Cap()

	return limit > 0 && current >= limit
}

// IsRecording returns whether recording is currently active.
func (r *recordingPhase) IsRecording() bool {
	return r.take != nil && r.take.StartStopPause.Read()
}

// View renders the recording phase UI.
func (r *recordingPhase) View() string {
	var sb strings.Builder

	switch {
	case r.importing:
		sb.WriteString(style.Label.Render("Fichier audio: "))
		sb.WriteString(r.path.View())
		sb.WriteString("\n")
		sb.WriteString(style.Muted.Render("Formats acceptés: " + strings.Join(audio.AcceptedExtensions(), " ")))
		sb.WriteString("\n\n")
		sb.WriteString(renderHelpLine(
			key.NewBinding(key.WithHelp("enter", "importer")),
			key.NewBinding(key.WithHelp("esc", "annuler")),
		))

		return sb.String()

	case r.take != nil:
		r.renderTake(&sb)
		sb.WriteString(renderHelpLine(r.keys.Toggle, r.keys.Finish))

		return sb.String()

	case r.clip != nil:
		sb.WriteString(style.Success.Render(fmt.Sprintf("Audio prêt (%s)", formatSeconds(int64(r.clip.Seconds())))))
		sb.WriteString("\n\n")
		sb.WriteString(renderHelpLine(r.keys.Retry, r.keys.Toggle, r.keys.Import, backKey))

		return sb.String()
	}

	sb.WriteString(style.Subtitle.Render("Enregistrez la visite ou importez un fichier audio."))
	sb.WriteString("\n\n")
	sb.WriteString(renderHelpLine(r.keys.Toggle, r.keys.Import, backKey))

	return sb.String()
}

func (r *recordingPhase) renderTake(sb *strings.Builder) {
	var current, limit int64
	if r.take.Captured != nil {
		current, limit = r.take.Captured.Cap()
	}

	if r.IsRecording() {
		sb.WriteString(r.spinner.View())
		sb.WriteString(" ")
		sb.WriteString(style.Title.Render("Enregistrement"))
	} else {
		sb.WriteString(style.Warning.Render("En pause"))
	}
	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(formatProgress(current, limit)))
	sb.WriteString("\n\n")

	if r.take.Levels != nil {
		sb.WriteString(r.wave.View())
		sb.WriteString("\n")
		switch r.wave.Signal() {
		case waveform.SignalSilent:
			if r.IsRecording() {
				sb.WriteString(style.Warning.Render("Aucun son détecté: vérifiez le micro."))
			}
		case waveform.SignalClipping:
			sb.WriteString(style.Warning.Render("Niveau trop fort: éloignez le micro."))
		}
		sb.WriteString("\n\n")
	}

	if limit > 0 {
		sb.WriteString(r.progress.ViewAs(float64(current) / float64(limit)))
		sb.WriteString("\n\n")
	}
}

// formatProgress renders recorded seconds against the cap.
func formatProgress(current, limit int64) string {
	if limit <= 0 {
		return formatSeconds(current)
	}

	return formatSeconds(current) + " / " + formatSeconds(limit)
}

func formatSeconds(s int64) string {
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
