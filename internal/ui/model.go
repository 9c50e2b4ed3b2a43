package ui

import (
	"context"
	"errors"
	"time"

	"github.com/0xlemi/fiddletone/internal/audio"
	"github.com/0xlemi/fiddletone/internal/engine"
	"github.com/0xlemi/fiddletone/internal/pitch"
	"github.com/0xlemi/fiddletone/internal/tone"
	tea "github.com/charmbracelet/bubbletea"
)

// Constants for UI behavior
const (
	// How long a note needs to be present to replace the displayed one
	noteStabilityThreshold = 300 * time.Millisecond

	// How long without a pitch before telling the player nothing is heard
	silenceTimeout = 1500 * time.Millisecond
)

// ResultMsg carries one engine cycle to the UI
type ResultMsg engine.Result

// StartErrMsg reports that the driver could not acquire the device
type StartErrMsg struct{ Err error }

type startedMsg struct{}

type stoppedMsg struct{ err error }

// sessionEndedMsg is sent when a session stops producing on its own
type sessionEndedMsg struct{ done <-chan struct{} }

// Model represents the UI state
type Model struct {
	ctx    context.Context
	engine *engine.Engine
	driver engine.Driver
	title  string

	running bool
	paused  bool // stopped because the terminal lost focus
	done    <-chan struct{}
	err     error

	note         *pitch.Note // displayed note
	pending      string
	pendingSince time.Time
	cents        float64
	frequency    float64
	metrics      tone.Metrics

	silentSince time.Time
	silent      bool

	accuracySum   float64
	accuracyCount int

	targetIndex int
	width       int
	height      int
}

// NewModel creates a model that controls driver and reads from e. The
// driver's sink should forward results with Program.Send(ResultMsg(res)).
func NewModel(ctx context.Context, e *engine.Engine, driver engine.Driver, title string) Model {
	m := Model{
		ctx:         ctx,
		engine:      e,
		driver:      driver,
		title:       title,
		targetIndex: -1,
	}
	for i, t := range pitch.OpenStrings {
		if t == e.Target() {
			m.targetIndex = i
		}
	}
	return m
}

// Init starts the driver
func (m Model) Init() tea.Cmd {
	return m.start()
}

func (m Model) start() tea.Cmd {
	driver, ctx := m.driver, m.ctx
	return func() tea.Msg {
		if err := driver.Start(ctx); err != nil {
			return StartErrMsg{Err: err}
		}
		return startedMsg{}
	}
}

// stop runs Stop off the event loop: the driver's sink may be blocked in
// Program.Send until Update returns.
func (m Model) stop() tea.Cmd {
	driver := m.driver
	return func() tea.Msg {
		return stoppedMsg{err: driver.Stop()}
	}
}

func waitSession(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return sessionEndedMsg{done: done}
	}
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s", " ":
			if m.running {
				m.running = false
				return m, m.stop()
			}
			m.err = nil
			m.paused = false
			return m, m.start()
		case "t":
			return m.selectTarget((m.targetIndex + 1) % len(pitch.OpenStrings)), nil
		case "1", "2", "3", "4":
			return m.selectTarget(int(msg.String()[0] - '1')), nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.BlurMsg:
		if m.running {
			m.running = false
			m.paused = true
			return m, m.stop()
		}

	case startedMsg:
		m.running = true
		m.clearSession()
		m.done = m.driver.Done()
		return m, waitSession(m.done)

	case StartErrMsg:
		m.running = false
		m.err = msg.Err

	case stoppedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.clearSession()

	case sessionEndedMsg:
		// A stale wait from an earlier session is ignored.
		if msg.done == m.done {
			m.running = false
		}

	case ResultMsg:
		m = m.applyResult(engine.Result(msg))
	}

	return m, nil
}

func (m Model) selectTarget(i int) Model {
	if i < 0 || i >= len(pitch.OpenStrings) {
		return m
	}
	m.targetIndex = i
	m.engine.SetTarget(pitch.OpenStrings[i])
	m.accuracySum, m.accuracyCount = 0, 0
	return m
}

func (m Model) applyResult(res engine.Result) Model {
	m.metrics = res.Metrics
	now := res.Detection.Time

	if !res.Voiced {
		if m.silentSince.IsZero() {
			m.silentSince = now
		}
		if now.Sub(m.silentSince) >= silenceTimeout {
			m.silent = true
			m.note = nil
			m.pending = ""
		}
		return m
	}

	m.silentSince = time.Time{}
	m.silent = false
	m.cents = res.Sample.Cents
	m.frequency = res.Detection.Frequency
	m.accuracySum += res.Accuracy
	m.accuracyCount++

	// Note stability: a new note replaces the displayed one only after it
	// has been heard for noteStabilityThreshold.
	note := res.Note
	name := note.String()
	switch {
	case m.note == nil:
		m.note = &note
		m.pending = ""
	case name == m.note.String():
		m.note = &note
		m.pending = ""
	case name != m.pending:
		m.pending = name
		m.pendingSince = now
	case now.Sub(m.pendingSince) >= noteStabilityThreshold:
		m.note = &note
		m.pending = ""
	}
	return m
}

func (m *Model) clearSession() {
	m.note = nil
	m.pending = ""
	m.metrics = tone.Metrics{}
	m.silentSince = time.Time{}
	m.silent = false
	m.accuracySum, m.accuracyCount = 0, 0
}

// SessionAccuracy returns the mean accuracy of voiced cycles since the
// session or target last changed
func (m Model) SessionAccuracy() (float64, bool) {
	if m.accuracyCount == 0 {
		return 0, false
	}
	return m.accuracySum / float64(m.accuracyCount), true
}

// Running reports whether the UI believes capture is active
func (m Model) Running() bool { return m.running }

func (m Model) permissionDenied() bool {
	return errors.Is(m.err, audio.ErrPermissionDenied)
}
