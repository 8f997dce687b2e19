// SPDX-License-Identifier: MIT
//
// Package device opens the link to the LED controller: a serial port running
// Adalight firmware, or a udp://host:port endpoint that accepts the same
// frames as datagrams.
package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"heliecho/internal/config"
	applog "heliecho/internal/log"
	"heliecho/internal/transport/udp"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	udpScheme = "udp://"

	// Adalight firmware greets with "Ada\n" after the port open resets the
	// board.
	helloTimeout     = 2 * time.Second
	helloReadTimeout = 100 * time.Millisecond
)

var hello = []byte("Ada")

// Swappable in tests.
var (
	serialOpen             = func(path string, mode *serial.Mode) (serial.Port, error) { return serial.Open(path, mode) }
	serialGetPortsList     = serial.GetPortsList
	serialGetDetailedPorts = enumerator.GetDetailedPortsList
)

// Open connects to the device named by cfg.Port.
func Open(cfg config.DeviceConfig) (io.WriteCloser, error) {
	if addr, ok := strings.CutPrefix(cfg.Port, udpScheme); ok {
		if addr == "" {
			return nil, fmt.Errorf("device port %q has no address", cfg.Port)
		}
		sender, err := udp.NewUDPSender(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to open UDP device: %w", err)
		}
		applog.Infof("Device: Sending frames to udp://%s", addr)
		return sender, nil
	}
	return OpenSerial(cfg.Port, cfg.BaudRate)
}

// OpenSerial opens an 8N1 serial port and waits briefly for the Adalight
// greeting. A missing greeting is logged, not fatal: some boards do not
// reset on open.
func OpenSerial(path string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serialOpen(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	if err := port.SetReadTimeout(helloReadTimeout); err != nil {
		applog.Debugf("Device: Cannot set read timeout on %s: %v", path, err)
	} else if waitForHello(port, helloTimeout) {
		applog.Infof("Device: Adalight controller on %s is ready (%d baud)", path, baudRate)
	} else {
		applog.Warnf("Device: No Adalight greeting from %s within %s; sending anyway", path, helloTimeout)
	}
	return port, nil
}

// waitForHello reads from r until the greeting shows up, r fails, or
// timeout passes. r is expected to return (0, nil) on read timeouts.
func waitForHello(r io.Reader, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 64)
	var seen []byte

	for time.Now().Before(deadline) {
		n, err := r.Read(buf)
		seen = append(seen, buf[:n]...)
		if bytes.Contains(seen, hello) {
			return true
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				applog.Debugf("Device: Read while waiting for greeting failed: %v", err)
			}
			return false
		}
		if len(seen) > 256 {
			seen = seen[len(seen)-len(hello):]
		}
	}
	return false
}

// Port describes a serial port candidate.
type Port struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Product string
	Serial  string
}

func (p Port) String() string {
	if !p.IsUSB {
		return p.Name
	}
	desc := fmt.Sprintf("%s (USB %s:%s", p.Name, p.VID, p.PID)
	if p.Product != "" {
		desc += " " + p.Product
	}
	if p.Serial != "" {
		desc += ", serial " + p.Serial
	}
	return desc + ")"
}

// ListPorts returns the serial ports on this machine. USB details are added
// when the platform enumerator supports them.
func ListPorts() ([]Port, error) {
	details, err := serialGetDetailedPorts()
	if err == nil && len(details) > 0 {
		ports := make([]Port, len(details))
		for i, d := range details {
			ports[i] = Port{
				Name:    d.Name,
				IsUSB:   d.IsUSB,
				VID:     d.VID,
				PID:     d.PID,
				Product: d.Product,
				Serial:  d.SerialNumber,
			}
		}
		return ports, nil
	}
	if err != nil {
		applog.Debugf("Device: Detailed port enumeration failed: %v", err)
	}

	names, err := serialGetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	ports := make([]Port, len(names))
	for i, name := range names {
		ports[i] = Port{Name: name}
	}
	return ports, nil
}

// PrintPorts writes the port list to w.
func PrintPorts(w io.Writer) error {
	ports, err := ListPorts()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nAvailable Serial Ports\n\n")
	if len(ports) == 0 {
		fmt.Fprintln(w, "    (none found)")
	}
	for _, p := range ports {
		fmt.Fprintf(w, "    %s\n", p)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Use udp://host:port to drive a network controller instead.\n")
	return nil
}
