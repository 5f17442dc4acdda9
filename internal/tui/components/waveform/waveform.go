// Package waveform draws the microphone input level while a visit is being
// recorded, so the nurse can tell at a glance whether the microphone hears
// anything and whether it is saturating.
package waveform

import (
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/tui/style"
	"github.com/medannot/medannot/pkg/uictl"
)

// Block characters for amplitude visualization (8 levels, bottom to top).
// Index 0 = empty (space), 1-8 = increasing fill levels.
const blockChars = " ▁▂▃▄▅▆▇█"

const (
	// silenceFloor is the peak below which the input counts as silent.
	silenceFloor = 300
	// clipCeiling is the peak at or above which the input counts as clipping.
	clipCeiling = 32000
)

// Signal summarises the latest input window.
type Signal int

const (
	// SignalNone means no samples have arrived yet.
	SignalNone Signal = iota
	SignalSilent
	SignalOK
	SignalClipping
)

// TickMsg triggers a waveform redraw.
type TickMsg struct{}

// Model renders recent samples as vertical bars, oldest on the left.
// Columns that reach full scale are drawn in the warning colour.
type Model struct {
	levels uictl.Levels[int16]
	width  int
	height int
}

// New creates a waveform width columns wide and height rows tall.
// Samples are aggregated to fit the width.
func New(levels uictl.Levels[int16], width, height int) Model {
	return Model{
		levels: levels,
		width:  max(width, 1),
		height: max(height, 1),
	}
}

// Init returns the initial tick command.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles tick messages for animation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok {
		return m, m.tick()
	}

	return m, nil
}

// Signal classifies the current input window.
func (m Model) Signal() Signal {
	samples := m.read()
	if len(samples) == 0 {
		return SignalNone
	}

	switch peak := peakAmplitude(samples); {
	case peak < silenceFloor:
		return SignalSilent
	case peak >= clipCeiling:
		return SignalClipping
	default:
		return SignalOK
	}
}

// View renders the waveform.
func (m Model) View() string {
	samples := m.read()
	if len(samples) == 0 {
		return m.renderBaseline()
	}

	return m.render(samples)
}

func (m Model) read() []int16 {
	if m.levels == nil {
		return nil
	}

	return m.levels.Read()
}

// tick schedules the next redraw at about 20 FPS.
func (m Model) tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

type column struct {
	level    int // 0..height*8
	clipping bool
}

func (m Model) render(samples []int16) string {
	cols := m.columns(samples)
	runes := []rune(blockChars)

	var sb strings.Builder

	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		for _, c := range cols {
			ch := string(runes[m.blockIndex(c.level, row)])
			if c.clipping {
				sb.WriteString(style.Warning.Render(ch))
			} else {
				sb.WriteString(style.Wave.Render(ch))
			}
		}
	}

	return sb.String()
}

// columns buckets samples into one peak per column.
func (m Model) columns(samples []int16) []column {
	cols := make([]column, m.width)
	bucket := max(1, len(samples)/m.width)
	maxLevel := m.height * 8

	for i := range cols {
		start := i * bucket
		if start >= len(samples) {
			break
		}

		peak := peakAmplitude(samples[start:min(start+bucket, len(samples))])
		cols[i] = column{
			level:    scaleLevel(peak, maxLevel),
			clipping: peak >= clipCeiling,
		}
	}

	return cols
}

// blockIndex returns the glyph (0-8) for a column at row; row 0 is the top.
func (m Model) blockIndex(level, row int) int {
	base := (m.height - 1 - row) * 8

	return min(max(level-base, 0), 8)
}

func (m Model) renderBaseline() string {
	var sb strings.Builder

	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		fill := " "
		if row == m.height-1 {
			fill = "▁"
		}
		sb.WriteString(style.Muted.Render(strings.Repeat(fill, m.width)))
	}

	return sb.String()
}

// peakAmplitude returns the largest absolute sample, saturating at 32767.
func peakAmplitude(samples []int16) int {
	peak := 0
	for _, s := range samples {
		a := int(s)
		if a < 0 {
			a = -a
		}
		peak = max(peak, a)
	}

	return min(peak, math.MaxInt16)
}

// scaleLevel maps 0..32767 onto 0..maxLevel on a square-root curve so quiet
// speech still shows.
func scaleLevel(amp, maxLevel int) int {
	if amp <= 0 {
		return 0
	}

	scaled := math.Sqrt(float64(amp)/math.MaxInt16) * float64(maxLevel)

	return min(int(scaled), maxLevel)
}
