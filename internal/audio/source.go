// SPDX-License-Identifier: MIT
package audio

import (
	"heliecho/internal/config"
	applog "heliecho/internal/log"
)

// Source delivers blocks of interleaved stereo float32 samples in [-1, 1].
//
// ReadBlock fills block completely, blocking until a whole block is
// available. It returns io.EOF once a finite source is exhausted; any other
// error is fatal to the analysis loop.
type Source interface {
	ReadBlock(block []float32) error
	Close() error
}

// OpenSource opens the capture source described by cfg: the WAV file named
// by audio.input_file when set, the PortAudio input device otherwise.
// PortAudio must already be initialised for live capture.
func OpenSource(cfg *config.Config) (Source, error) {
	a := cfg.Audio
	if a.InputFile != "" {
		applog.Infof("Audio: Replaying %s (loop: %v)", a.InputFile, a.LoopInput)
		return OpenWavSource(a.InputFile, a.SampleRate, a.LoopInput, true)
	}
	return OpenStream(a)
}
