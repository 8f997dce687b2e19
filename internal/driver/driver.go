// SPDX-License-Identifier: MIT
//
// Package driver owns the colour shown on the LED strip. A single goroutine
// runs Driver.Run; the analysis loop hands it requested colours through an
// unbuffered channel and the driver smooths, frames and writes them at its
// own pace.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"heliecho/internal/adalight"
	"heliecho/internal/color"
	applog "heliecho/internal/log"
)

// ErrStopped is returned by Submit once Run has returned.
var ErrStopped = errors.New("output driver stopped")

// Stats is a point-in-time copy of the driver counters.
type Stats struct {
	Written uint64 // Frames fully written.
	Dropped uint64 // Frames lost to short writes or I/O errors.
}

// Driver smooths requested colours into the device colour and writes one
// Adalight frame per step. Everything except the channels and counters is
// confined to the goroutine running Run.
type Driver struct {
	out      io.Writer
	frame    *adalight.Frame
	interval time.Duration

	requests chan color.RGB
	done     chan struct{}
	running  atomic.Bool

	// Goroutine-confined state.
	current   color.RGB
	requested color.RGB
	dropRun   uint64

	written atomic.Uint64
	dropped atomic.Uint64
}

// New creates a driver writing frames for ledCount LEDs to out. A positive
// interval spaces frames at least that far apart; 0 writes back to back and
// leaves pacing to the device.
func New(out io.Writer, ledCount int, interval time.Duration) (*Driver, error) {
	if out == nil {
		return nil, errors.New("output writer is nil")
	}
	if interval < 0 {
		return nil, fmt.Errorf("refresh interval must not be negative, got %s", interval)
	}
	frame, err := adalight.NewFrame(ledCount)
	if err != nil {
		return nil, err
	}
	return &Driver{
		out:      out,
		frame:    frame,
		interval: interval,
		requests: make(chan color.RGB),
		done:     make(chan struct{}),
	}, nil
}

// Submit hands a requested colour to the driver. It blocks until the driver
// takes it, the driver stops (ErrStopped) or ctx is done.
func (d *Driver) Submit(ctx context.Context, c color.RGB) error {
	select {
	case d.requests <- c:
		return nil
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the driver loop. It returns nil when ctx is cancelled, after a
// best-effort black frame so the strip does not stay lit. Run must be called
// at most once.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("driver is already running")
	}
	defer close(d.done)

	applog.Infof("Driver: Started (%d LEDs, %d byte frames, interval %s)", d.frame.LEDCount(), d.frame.Len(), d.interval)

	var tick <-chan time.Time
	if d.interval > 0 {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			d.blank()
			stats := d.Stats()
			applog.Infof("Driver: Stopped (written %d, dropped %d)", stats.Written, stats.Dropped)
			return nil
		case c := <-d.requests:
			d.requested = c
		default:
			// Nothing pending; keep easing towards the last request.
		}

		d.step()

		if tick != nil {
			select {
			case <-ctx.Done():
			case <-tick:
			}
		}
	}
}

// step advances the device colour one smoothing step and writes it.
func (d *Driver) step() {
	d.current = color.Smooth(d.current, d.requested)
	d.write(d.frame.Fill(d.current.R, d.current.G, d.current.B))
}

// write sends one frame. Failures drop the frame; there is no retry and the
// device colour is kept so the next step picks up from it.
func (d *Driver) write(frame []byte) {
	n, err := d.out.Write(frame)
	if err == nil && n != len(frame) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(frame))
	}

	if err != nil {
		d.dropped.Add(1)
		d.dropRun++
		if d.dropRun == 1 {
			applog.Warnf("Driver: Dropping frame: %v", err)
		} else {
			applog.Debugf("Driver: Dropping frame (%d in a row): %v", d.dropRun, err)
		}
		return
	}

	if d.dropRun > 0 {
		applog.Infof("Driver: Device recovered after %d dropped frames", d.dropRun)
		d.dropRun = 0
	}
	d.written.Add(1)
}

func (d *Driver) blank() {
	d.current = color.Black
	d.write(d.frame.Fill(0, 0, 0))
}

// Current returns the device colour. It is only meaningful from the
// goroutine running Run, or after Run has returned.
func (d *Driver) Current() color.RGB {
	return d.current
}

// Done is closed when Run returns.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Stats returns the frame counters. Safe for concurrent use.
func (d *Driver) Stats() Stats {
	return Stats{
		Written: d.written.Load(),
		Dropped: d.dropped.Load(),
	}
}
