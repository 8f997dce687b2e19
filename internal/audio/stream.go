// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"heliecho/internal/config"
	applog "heliecho/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Stream is a blocking-mode PortAudio input stream. Each ReadBlock waits for
// the next full block from the device.
type Stream struct {
	stream    *portaudio.Stream
	device    *portaudio.DeviceInfo
	latency   time.Duration
	buffer    []float32
	overflows atomic.Uint64
}

// OpenStream opens and starts a stereo float32 input stream on the
// configured device.
func OpenStream(cfg config.AudioConfig) (*Stream, error) {
	device, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		device: device,
		buffer: make([]float32, cfg.BlockSize*config.Channels),
	}
	if cfg.LowLatency {
		s.latency = device.DefaultLowInputLatency
	} else {
		s.latency = device.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: config.Channels,
			Latency:  s.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: cfg.BlockSize,
		SampleRate:      cfg.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream on %q: %w", device.Name, err)
	}
	s.stream = stream

	applog.Infof("Audio: Capturing from %q (%.0f Hz, %d frames, latency %s)",
		device.Name, cfg.SampleRate, cfg.BlockSize, s.latency)
	return s, nil
}

// ReadBlock blocks until the device delivers a block and copies it into
// block. Input overflows mean samples were lost upstream; the block is still
// delivered.
func (s *Stream) ReadBlock(block []float32) error {
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return fmt.Errorf("audio read failed: %w", err)
		}
		if n := s.overflows.Add(1); n == 1 || n%100 == 0 {
			applog.Warnf("Audio: Input overflowed (%d so far); analysis is falling behind", n)
		}
	}
	copy(block, s.buffer)
	return nil
}

// Overflows returns the number of overflowed reads so far.
func (s *Stream) Overflows() uint64 {
	return s.overflows.Load()
}

// Close stops and closes the stream.
func (s *Stream) Close() error {
	if s.stream == nil {
		return nil
	}
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	s.stream = nil
	return errors.Join(stopErr, closeErr)
}
