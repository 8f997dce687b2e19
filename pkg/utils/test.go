// SPDX-License-Identifier: MIT
package utils

import (
	"errors"
	"math"
	"sync"
)

// ErrMockWrite is returned by MockWriter when a write is configured to fail.
var ErrMockWrite = errors.New("mock write failure")

// MockTransport implements the Transport interface for testing.
type MockTransport struct {
	mu       sync.Mutex
	LastData any
	Count    int
	Closed   bool
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	m.LastData = data
	m.Count++
	m.mu.Unlock()
	return nil
}

// Close marks the transport as closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// Sent returns the number of Send calls and the last payload.
func (m *MockTransport) Sent() (int, any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Count, m.LastData
}

// MockWriter records every frame written to it. FailEvery makes every n-th
// write fail with ErrMockWrite, ShortBy truncates every write by that many
// bytes.
type MockWriter struct {
	mu        sync.Mutex
	Frames    [][]byte
	FailEvery int
	ShortBy   int
	calls     int
}

// Write copies p into the frame log.
func (w *MockWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls++
	if w.FailEvery > 0 && w.calls%w.FailEvery == 0 {
		return 0, ErrMockWrite
	}

	n := len(p) - w.ShortBy
	if n < 0 {
		n = 0
	}
	frame := make([]byte, n)
	copy(frame, p[:n])
	w.Frames = append(w.Frames, frame)
	return n, nil
}

// Calls returns how many times Write has been invoked.
func (w *MockWriter) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// Last returns a copy of the most recent recorded frame, or nil.
func (w *MockWriter) Last() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.Frames) == 0 {
		return nil
	}
	last := w.Frames[len(w.Frames)-1]
	out := make([]byte, len(last))
	copy(out, last)
	return out
}

// GenerateStereoSine returns an interleaved L/R block of the given number of
// frames with the same sine on both channels.
func GenerateStereoSine(frames int, sampleRate, frequency, amplitude float64) []float32 {
	block := make([]float32, frames*2)
	for i := range frames {
		t := float64(i) / sampleRate
		s := float32(amplitude * math.Sin(2*math.Pi*frequency*t))
		block[2*i] = s
		block[2*i+1] = s
	}
	return block
}

// GenerateComplexWave returns an interleaved stereo block with a 440Hz
// fundamental plus two harmonics, slightly louder on the left channel.
func GenerateComplexWave(frames int, sampleRate float64) []float32 {
	block := make([]float32, frames*2)
	for i := range frames {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		block[2*i] = float32(signal * 0.9)
		block[2*i+1] = float32(signal * 0.7)
	}
	return block
}
