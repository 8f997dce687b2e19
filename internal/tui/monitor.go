// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"heliecho/internal/analysis"
	"heliecho/internal/driver"
	"heliecho/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MonitorTransport hands snapshots to the monitor UI. Only the newest
// snapshot is kept, so a slow terminal never holds up analysis.
type MonitorTransport struct {
	snapshots chan analysis.Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

// NewMonitorTransport creates an open monitor transport.
func NewMonitorTransport() *MonitorTransport {
	return &MonitorTransport{
		snapshots: make(chan analysis.Snapshot, 1),
		done:      make(chan struct{}),
	}
}

// Send replaces any pending snapshot with data.
func (t *MonitorTransport) Send(data any) error {
	snap, ok := data.(analysis.Snapshot)
	if !ok {
		return fmt.Errorf("monitor: unsupported payload %T", data)
	}
	select {
	case <-t.done:
		return errors.New("monitor closed")
	default:
	}

	for {
		select {
		case t.snapshots <- snap:
			return nil
		default:
		}
		select {
		case <-t.snapshots: // Discard the stale one.
		default:
		}
	}
}

// Close tells the monitor UI to exit.
func (t *MonitorTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

var _ transport.Transport = (*MonitorTransport)(nil)

type snapshotMsg analysis.Snapshot

type monitorClosedMsg struct{}

func waitForSnapshot(t *MonitorTransport) tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-t.snapshots:
			return snapshotMsg(snap)
		case <-t.done:
			return monitorClosedMsg{}
		}
	}
}

const defaultBarWidth = 40

var (
	labelStyle = lipgloss.NewStyle().Width(12)
	swatchText = strings.Repeat(" ", 24)
)

// MonitorModel shows the requested colour, band levels and driver counters
// while the light show runs.
type MonitorModel struct {
	source   *MonitorTransport
	stats    func() driver.Stats
	device   string
	latest   analysis.Snapshot
	received uint64

	bass, mid, high, brightness progress.Model
}

// NewMonitorModel creates a monitor fed by source. stats may be nil.
func NewMonitorModel(source *MonitorTransport, stats func() driver.Stats, device string) MonitorModel {
	bar := func(color string) progress.Model {
		return progress.New(progress.WithSolidFill(color), progress.WithWidth(defaultBarWidth))
	}
	return MonitorModel{
		source:     source,
		stats:      stats,
		device:     device,
		bass:       bar("#E0443E"),
		mid:        bar("#3EC46D"),
		high:       bar("#3E7BE0"),
		brightness: bar("#FFFDF5"),
	}
}

// Init starts listening for snapshots.
func (m MonitorModel) Init() tea.Cmd {
	return waitForSnapshot(m.source)
}

// Update handles snapshots, resizes and key presses.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.latest = analysis.Snapshot(msg)
		m.received++
		return m, waitForSnapshot(m.source)

	case monitorClosedMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		width := max(10, min(msg.Width-24, 80))
		for _, bar := range []*progress.Model{&m.bass, &m.mid, &m.high, &m.brightness} {
			bar.Width = width
		}

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the monitor.
func (m MonitorModel) View() string {
	var sb strings.Builder
	s := m.latest

	sb.WriteString(titleStyle.Render("heliecho → " + m.device))
	sb.WriteString("\n\n")

	swatch := lipgloss.NewStyle().Background(lipgloss.Color(s.Color.Hex())).Render(swatchText)
	fmt.Fprintf(&sb, "%s %s %s\n\n", labelStyle.Render("Colour"), swatch, s.Color.Hex())

	rows := []struct {
		label string
		bar   progress.Model
		value float64
	}{
		{"Bass", m.bass, s.BassLevel},
		{"Mid", m.mid, s.MidLevel},
		{"High", m.high, s.HighLevel},
		{"Brightness", m.brightness, s.Brightness},
	}
	for _, r := range rows {
		fmt.Fprintf(&sb, "%s %s %.2f\n", labelStyle.Render(r.label), r.bar.ViewAs(r.value), r.value)
	}

	fmt.Fprintf(&sb, "\n%s %.1f Hz (%.1f dB)\n", labelStyle.Render("Loudest"), s.LoudestHz, s.Loudest.DB)
	fmt.Fprintf(&sb, "%s %d\n", labelStyle.Render("Blocks"), m.received)
	if m.stats != nil {
		st := m.stats()
		fmt.Fprintf(&sb, "%s written %d, dropped %d\n", labelStyle.Render("Frames"), st.Written, st.Dropped)
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("q: Stop"))
	return sb.String()
}

// RunMonitor runs the monitor until the user quits or source is closed.
func RunMonitor(source *MonitorTransport, stats func() driver.Stats, device string, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(NewMonitorModel(source, stats, device), opts...).Run()
	return err
}
