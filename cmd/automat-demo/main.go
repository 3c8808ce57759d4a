// Command automat-demo is a terminal playground for the recording engine:
// three automation lanes, a transport, and the Touch/Latch/Write modes, all
// driven from the keyboard or from a MIDI control surface.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/automaudio/automat"
	"github.com/automaudio/automat/debug"
	"github.com/automaudio/automat/engine"
	"github.com/automaudio/automat/gomidi"
)

var (
	midiInput = flag.String("midi-input", "", "connect MIDI input to matching device name prefix")
	debugLog  = flag.Bool("debug", false, "write a debug log under the user config dir")
)

const tickInterval = 50 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	recStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	armedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

type (
	model struct {
		registry *engine.Registry
		lanes    automat.Lanes
		order    []automat.LaneID
		cursor   int
		touching map[automat.LaneID]bool
		now      float64
		events   []string
		quitting bool
	}

	tickMsg   struct{}
	engineMsg struct{ inner any }
)

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// forwardEngine pumps engine notifications into the program until the
// broker asks it to close, then reports back on FinishedUI.
func forwardEngine(b *engine.Broker, p *tea.Program) {
	defer close(b.FinishedUI)
	for {
		select {
		case msg := <-b.ToUI:
			p.Send(engineMsg{msg})
		case <-b.CloseUI:
			return
		}
	}
}

func newModel(registry *engine.Registry, lanes automat.Lanes, order []automat.LaneID) model {
	return model{
		registry: registry,
		lanes:    lanes,
		order:    order,
		touching: make(map[automat.LaneID]bool),
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) selected() *automat.Lane {
	return m.lanes[m.order[m.cursor]]
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.registry.Playing() {
			m.now += tickInterval.Seconds()
			m.registry.AdvanceTime(m.now)
		}
		return m, tick()

	case engineMsg:
		m.pushEvent(msg.inner)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// the registry is closed in main, after the MIDI input that
			// feeds it has been closed
			m.quitting = true
			return m, tea.Quit
		case "up", "shift+tab":
			m.cursor = (m.cursor + len(m.order) - 1) % len(m.order)
		case "down", "tab":
			m.cursor = (m.cursor + 1) % len(m.order)
		case " ":
			m.registry.SetPlaying(!m.registry.Playing())
		case "m":
			m.registry.SetMode((m.registry.Mode() + 1) % 4)
		case "a":
			l := m.selected()
			if l.Armed {
				m.registry.Disarm(l.ID)
			} else {
				m.registry.Arm(l.ID)
			}
		case "enter":
			m.registry.StartRecording(m.selected().ID, m.registry.Mode())
		case "x":
			m.registry.StopRecording(m.selected().ID)
		case "t":
			l := m.selected()
			if m.touching[l.ID] {
				m.registry.EndTouch(l.ID)
			} else {
				m.registry.BeginTouch(l.ID)
			}
			m.touching[l.ID] = !m.touching[l.ID]
		case "left":
			m.nudge(-0.02)
		case "right":
			m.nudge(0.02)
		}
	}
	return m, nil
}

func (m *model) nudge(delta float64) {
	l := m.selected()
	v, ok := m.registry.LaneValue(l.ID)
	if !ok {
		return
	}
	v = min(max(v+delta, 0), 1)
	m.registry.SetLaneValue(l.ID, v)
	debug.Logf("input", "%s -> %.3f", l.Name, v)
}

func (m *model) pushEvent(inner any) {
	var s string
	switch e := inner.(type) {
	case engine.RecordingMsg:
		if e.On() {
			s = "recording started"
		} else {
			s = "recording stopped"
		}
	case engine.ModeChangedMsg:
		s = "mode: " + e.Mode.String()
	case engine.TouchBeganMsg:
		s = fmt.Sprintf("touch began on %s", m.laneName(e.Lane))
	case engine.TouchEndedMsg:
		s = fmt.Sprintf("touch ended on %s", m.laneName(e.Lane))
	case engine.PointRecordedMsg:
		s = fmt.Sprintf("point %s (%.2f, %.3f)", m.laneName(e.Lane), e.Time, e.Value)
	default:
		return
	}
	debug.Logf("event", "%s", s)
	m.events = append(m.events, s)
	if len(m.events) > 8 {
		m.events = m.events[len(m.events)-8:]
	}
}

func (m model) laneName(id automat.LaneID) string {
	if l, ok := m.lanes[id]; ok {
		return l.Name
	}
	return fmt.Sprintf("lane %d", id)
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("automat demo"))
	fmt.Fprintf(&b, "  %7.2fs  mode: %-5s", m.now, m.registry.Mode())
	if m.registry.Playing() {
		b.WriteString("  playing")
	} else {
		b.WriteString("  stopped")
	}
	if m.registry.IsRecording() {
		b.WriteString("  " + recStyle.Render("● REC"))
	}
	b.WriteString("\n\n")
	for i, id := range m.order {
		l := m.lanes[id]
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		v, _ := m.registry.LaneValue(id)
		fmt.Fprintf(&b, "%s%-10s %s %5.3f", prefix, l.Name, bar(v), v)
		if l.Armed {
			b.WriteString(armedStyle.Render("  armed"))
		}
		if s, ok := m.registry.SessionInfo(id); ok {
			b.WriteString(recStyle.Render(fmt.Sprintf("  %s: %d pts", s.Mode, s.RecordedPointCount)))
		}
		if m.touching[id] {
			b.WriteString("  touching")
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	for _, e := range m.events {
		b.WriteString(faintStyle.Render("  " + e))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(faintStyle.Render("  space play · m mode · a arm · t touch · enter/x start/stop · ←/→ move fader · q quit"))
	b.WriteByte('\n')
	return b.String()
}

func bar(value float64) string {
	const width = 24
	n := min(max(int(value*width+0.5), 0), width)
	return barStyle.Render(strings.Repeat("█", n) + strings.Repeat("░", width-n))
}

func main() {
	flag.Parse()
	if *debugLog {
		if err := debug.Enable(); err != nil {
			log.Printf("could not enable debug log: %v", err)
		}
		defer debug.Disable()
	}

	configPath, err := automat.ConfigPath()
	if err != nil {
		configPath = ""
	}
	config := automat.DefaultConfig()
	if configPath != "" {
		if config, err = automat.LoadConfig(configPath); err != nil {
			log.Printf("using default config: %v", err)
		}
	}

	lanes := automat.Lanes{}
	cutoff := lanes.Add("cutoff")
	resonance := lanes.Add("resonance")
	volume := lanes.Add("volume")
	volume.Value = 0.8

	broker := engine.NewBroker()
	registry := engine.NewRegistry(broker, lanes, config)
	defer registry.Close()
	registry.SetMode(automat.ModeTouch)

	midiContext := gomidi.NewContext(registry, gomidi.Mapping{
		CC:        map[uint8]automat.LaneID{1: cutoff.ID, 2: resonance.ID, 7: volume.ID},
		TouchNote: map[uint8]automat.LaneID{104: cutoff.ID, 105: resonance.ID, 106: volume.ID},
	})
	defer midiContext.Close()
	if *midiInput != "" {
		if err := midiContext.Open(*midiInput); err != nil {
			log.Printf("MIDI input not connected: %v", err)
		}
	}

	order := []automat.LaneID{cutoff.ID, resonance.ID, volume.ID}
	p := tea.NewProgram(newModel(registry, lanes, order))
	go forwardEngine(broker, p)
	_, err = p.Run()
	engine.TrySend(broker.CloseUI, struct{}{})
	engine.TimeoutReceive(broker.FinishedUI, 3*time.Second)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
