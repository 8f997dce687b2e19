// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"heliecho/internal/config"
	applog "heliecho/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const recordBitDepth = 16

// Recorder tees captured blocks into a 16-bit stereo WAV file.
type Recorder struct {
	mu          sync.Mutex
	isRecording bool
	sampleRate  int
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *goaudio.IntBuffer // Reusable buffer for format conversion
	failed      bool
}

// NewRecorder creates an idle recorder for blocks of blockSize frames.
func NewRecorder(sampleRate float64, blockSize int) *Recorder {
	return &Recorder{
		sampleRate: int(sampleRate),
		sampleBuf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: config.Channels,
				SampleRate:  int(sampleRate),
			},
			SourceBitDepth: recordBitDepth,
			Data:           make([]int, blockSize*config.Channels),
		},
	}
}

// Start creates filename and begins recording into it.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording {
		return errors.New("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, recordBitDepth, config.Channels, 1)
	r.isRecording = true
	r.failed = false

	applog.Infof("Recorder: Recording to %s", filename)
	return nil
}

// Recording reports whether Start has been called without Stop.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRecording
}

// Write appends one interleaved stereo block. Samples are clipped to
// [-1, 1]. After the first encoder error the recorder stops writing and
// logs once; capture carries on.
func (r *Recorder) Write(block []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRecording || r.failed {
		return
	}

	if cap(r.sampleBuf.Data) < len(block) {
		r.sampleBuf.Data = make([]int, len(block))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(block)]
	for i, s := range block {
		r.sampleBuf.Data[i] = toPCM16(s)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		r.failed = true
		applog.Errorf("Recorder: Error writing to WAV file, recording halted: %v", err)
	}
}

// Stop finalises the WAV header and closes the file. Stopping an idle
// recorder is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRecording {
		return nil
	}
	r.isRecording = false

	var errs []error
	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to finalise recording: %w", err))
		}
		r.wavEncoder = nil
	}
	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close recording: %w", err))
		}
		r.outputFile = nil
	}
	return errors.Join(errs...)
}

func toPCM16(s float32) int {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	case math.IsNaN(float64(s)):
		return 0
	}
	return int(s * 32767)
}
