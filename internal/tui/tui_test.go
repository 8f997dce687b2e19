// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	"heliecho/internal/analysis"
	"heliecho/internal/audio"
	"heliecho/internal/color"
	"heliecho/internal/driver"

	tea "github.com/charmbracelet/bubbletea"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 96000},
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func press(m tea.Model, keys ...string) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

func newLoadedDeviceList(t *testing.T) tea.Model {
	t.Helper()
	m := NewDeviceListModel()
	m.fetch = func() ([]audio.Device, error) { return testDevices, nil }

	msg := m.Init()()
	if _, ok := msg.(devicesMsg); !ok {
		t.Fatalf("Init produced %T, want devicesMsg", msg)
	}
	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	model, _ = model.Update(msg)
	return model
}

func TestDeviceListRendersDevices(t *testing.T) {
	m := newLoadedDeviceList(t)
	view := m.View()
	for _, want := range []string{"Capture Devices", "[0] Speakers (Output)", "[1] USB Interface (Input/Output)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDeviceListSkipsOutputOnlyDevices(t *testing.T) {
	m := newLoadedDeviceList(t)
	m, _ = press(m, "enter")
	if m.(DeviceListModel).activeScreen != ListScreen {
		t.Error("output-only device opened the config screen")
	}
}

func TestDeviceListSelection(t *testing.T) {
	m := newLoadedDeviceList(t)

	m, _ = press(m, "down", "enter")
	if !strings.Contains(m.View(), "Configure Device: USB Interface") {
		t.Fatalf("config screen not shown:\n%s", m.View())
	}
	if !strings.Contains(m.View(), "96000 Hz") {
		t.Errorf("device default rate not preselected:\n%s", m.View())
	}

	// Rate down one step, block size up one step.
	m, _ = press(m, "left", "down", "right")
	m, cmd := press(m, "enter")
	if !isQuit(cmd) {
		t.Fatal("choosing should quit the program")
	}

	sel := m.(DeviceListModel).Selection()
	want := Selection{DeviceID: 1, DeviceName: "USB Interface", SampleRate: 88200, BlockSize: 4096}
	if sel == nil || *sel != want {
		t.Fatalf("Selection() = %+v, want %+v", sel, want)
	}
	if got := sel.Flags(); got != "--device 1 --sample-rate 88200 --block-size 4096" {
		t.Errorf("Flags() = %q", got)
	}
}

func TestDeviceListBackAndQuit(t *testing.T) {
	m := newLoadedDeviceList(t)
	m, _ = press(m, "down", "enter", "esc")
	if m.(DeviceListModel).activeScreen != ListScreen {
		t.Error("esc should return to the list")
	}
	m, cmd := press(m, "q")
	if !isQuit(cmd) {
		t.Error("q should quit")
	}
	if m.(DeviceListModel).Selection() != nil {
		t.Error("quitting should not select anything")
	}
}

func TestDeviceListFetchError(t *testing.T) {
	m := NewDeviceListModel()
	m.fetch = func() ([]audio.Device, error) { return nil, errors.New("PortAudio unavailable") }

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model, _ = model.Update(m.Init()())
	if !strings.Contains(model.View(), "PortAudio unavailable") {
		t.Errorf("error not shown:\n%s", model.View())
	}
}

func TestMonitorTransportKeepsLatest(t *testing.T) {
	mt := NewMonitorTransport()
	for i := uint64(1); i <= 5; i++ {
		if err := mt.Send(analysis.Snapshot{Sequence: i}); err != nil {
			t.Fatalf("Send error: %v", err)
		}
	}
	if err := mt.Send("nope"); err == nil {
		t.Error("expected error for unsupported payload")
	}

	msg := waitForSnapshot(mt)()
	snap, ok := msg.(snapshotMsg)
	if !ok || snap.Sequence != 5 {
		t.Fatalf("got %#v, want snapshot 5", msg)
	}

	mt.Close()
	mt.Close()
	if _, ok := waitForSnapshot(mt)().(monitorClosedMsg); !ok {
		t.Error("closed transport should end the monitor")
	}
	if err := mt.Send(analysis.Snapshot{}); err == nil {
		t.Error("Send after Close should fail")
	}
}

func TestMonitorModel(t *testing.T) {
	mt := NewMonitorTransport()
	stats := func() driver.Stats { return driver.Stats{Written: 12, Dropped: 3} }
	var m tea.Model = NewMonitorModel(mt, stats, "/dev/ttyACM0")

	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m, cmd := m.Update(snapshotMsg(analysis.Snapshot{
		Sequence:   1,
		BassLevel:  0.5,
		Brightness: 0.25,
		LoudestHz:  234.375,
		Loudest:    analysis.Peak{Bin: 10, DB: 54.2},
		Color:      color.RGB{R: 0x40},
	}))
	if cmd == nil {
		t.Fatal("monitor stopped listening after a snapshot")
	}

	view := m.View()
	for _, want := range []string{"/dev/ttyACM0", "#400000", "234.4 Hz (54.2 dB)", "written 12, dropped 3", "0.50"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	if _, cmd := m.Update(monitorClosedMsg{}); !isQuit(cmd) {
		t.Error("closed source should quit")
	}
	if _, cmd := press(m, "q"); !isQuit(cmd) {
		t.Error("q should quit")
	}
}
