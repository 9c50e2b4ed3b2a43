package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/0xlemi/fiddletone/internal/pitch"
	"github.com/0xlemi/fiddletone/internal/tone"
	"github.com/charmbracelet/lipgloss"
)

// trendWidth is how many of the latest pitch readings the trend line shows
const trendWidth = 48

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFA500"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5555"))

	labelStyle = lipgloss.NewStyle().
			Width(10).
			Foreground(lipgloss.Color("#888888"))

	inTuneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))

	// Note colors
	noteColors = map[string]string{
		"C": "#E8D6B0", // Beige
		"D": "#A020F0", // Purple
		"E": "#FFFF00", // Yellow
		"F": "#FFA500", // Orange
		"G": "#00FF00", // Green
		"A": "#FF0000", // Red
		"B": "#0000FF", // Blue
	}

	trendLevels = []rune("▁▂▃▄▅▆▇█")
)

func noteBlock(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(color)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333"))
}

// Get the next note in the scale (for sharp note colors)
func nextNatural(note string) string {
	switch note {
	case "C":
		return "D"
	case "D":
		return "E"
	case "F":
		return "G"
	case "G":
		return "A"
	case "A":
		return "B"
	default:
		return "C"
	}
}

// renderNote draws the note in its colour. Sharps are split between the
// colours of the two naturals they sit between.
func renderNote(n pitch.Note) string {
	if !strings.HasSuffix(n.Name, "#") {
		return noteBlock(noteColors[n.Name]).Padding(2, 4).Render(n.String())
	}

	base := n.Name[:1]
	left := noteBlock(noteColors[base]).
		BorderRight(false).
		PaddingLeft(2).PaddingRight(1).PaddingTop(2).PaddingBottom(2)
	right := noteBlock(noteColors[nextNatural(base)]).
		BorderLeft(false).
		PaddingLeft(1).PaddingRight(2).PaddingTop(2).PaddingBottom(2)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		left.Render(base),
		right.Render(fmt.Sprintf("#%d", n.Octave)))
}

// renderCents shows the offset from the target, green within 5 cents
func renderCents(cents float64) string {
	text := fmt.Sprintf("%+.1f cents", cents)
	if math.Abs(cents) <= 5 {
		return inTuneStyle.Render(text)
	}
	return offStyle.Render(text)
}

// renderTrend maps recent cents readings to block heights, clamped to
// ±50 cents around the target.
func renderTrend(history []tone.TunerEntry) string {
	if len(history) > trendWidth {
		history = history[len(history)-trendWidth:]
	}
	var b strings.Builder
	top := len(trendLevels) - 1
	for _, h := range history {
		c := math.Max(-50, math.Min(50, h.Cents))
		b.WriteRune(trendLevels[int(math.Round((c+50)/100*float64(top)))])
	}
	return b.String()
}

// Stars renders an accuracy in [0,1] as five stars
func Stars(accuracy float64) string {
	n := int(math.Round(math.Max(0, math.Min(1, accuracy)) * 5))
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

func renderMetric(name string, s tone.Score) string {
	return labelStyle.Render(name) + infoStyle.Render(s.String())
}

// View renders the UI
func (m Model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(m.title))
	s.WriteString("\n")

	target := m.engine.Target()
	s.WriteString(infoStyle.Render(fmt.Sprintf("Target: %s (%.2f Hz)", target.Name, target.Frequency)))
	s.WriteString("\n\n")

	switch {
	case m.permissionDenied():
		s.WriteString(errorStyle.Render("Microphone access was denied."))
		s.WriteString("\n")
		s.WriteString(infoStyle.Render("Allow microphone access for this terminal, then press s to try again."))
	case m.err != nil:
		s.WriteString(errorStyle.Render("Audio error: " + m.err.Error()))
	case m.paused:
		s.WriteString(warnStyle.Render("Paused while the terminal is in the background. Press s to resume."))
	case !m.running:
		s.WriteString(infoStyle.Render("Stopped. Press s to start."))
	case m.silent:
		s.WriteString(warnStyle.Render("No sound detected"))
	case m.note == nil:
		s.WriteString(infoStyle.Render("Listening for audio..."))
	default:
		s.WriteString(renderNote(*m.note))
		s.WriteString("\n")
		s.WriteString(infoStyle.Render(fmt.Sprintf("Frequency: %.2f Hz | ", m.frequency)))
		s.WriteString(renderCents(m.cents))
	}
	s.WriteString("\n\n")

	s.WriteString(renderMetric("Stability", m.metrics.Stability) + "\n")
	s.WriteString(renderMetric("Dynamics", m.metrics.Dynamics) + "\n")
	s.WriteString(renderMetric("Warmth", m.metrics.Warmth) + "\n")
	s.WriteString(renderMetric("Vibrato", m.metrics.Vibrato) + "\n\n")

	s.WriteString(labelStyle.Render("Trend"))
	s.WriteString(renderTrend(m.engine.TunerHistory()))
	s.WriteString("\n")
	s.WriteString(labelStyle.Render("Accuracy"))
	if acc, ok := m.SessionAccuracy(); ok {
		s.WriteString(infoStyle.Render(fmt.Sprintf("%s %3.0f%%", Stars(acc), acc*100)))
	} else {
		s.WriteString(infoStyle.Render(Stars(0)))
	}

	s.WriteString("\n\n")
	s.WriteString(infoStyle.Render("s start/stop • t or 1-4 target string • q quit"))
	return s.String()
}
