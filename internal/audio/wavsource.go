// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"heliecho/internal/config"
	applog "heliecho/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavSource replays a stereo PCM WAV file as if it were captured live.
type WavSource struct {
	file       *os.File
	dec        *wav.Decoder
	intBuf     *goaudio.IntBuffer
	sampleRate float64
	scale      float32
	loop       bool

	// Real-time pacing. A zero start means pacing is off.
	pace    bool
	start   time.Time
	elapsed time.Duration
}

// OpenWavSource opens path for replay. The file must be stereo PCM at
// sampleRate. With loop set, replay restarts at the end of the file instead
// of returning io.EOF. With pace set, ReadBlock returns blocks no faster than
// real time.
func OpenWavSource(path string, sampleRate float64, loop, pace bool) (*WavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	dec.ReadInfo()

	switch {
	case int(dec.NumChans) != config.Channels:
		f.Close()
		return nil, fmt.Errorf("%s has %d channels, only stereo input is supported", path, dec.NumChans)
	case float64(dec.SampleRate) != sampleRate:
		f.Close()
		return nil, fmt.Errorf("%s is sampled at %d Hz but audio.sample_rate is %.0f Hz", path, dec.SampleRate, sampleRate)
	}

	var scale float32
	switch dec.BitDepth {
	case 16:
		scale = 32768.0
	case 24:
		scale = 8388608.0
	case 32:
		scale = 2147483648.0
	default:
		f.Close()
		return nil, fmt.Errorf("%s has unsupported bit depth %d", path, dec.BitDepth)
	}

	applog.Debugf("Audio: %s is %d-bit, %d Hz, %d channels", path, dec.BitDepth, dec.SampleRate, dec.NumChans)

	return &WavSource{
		file:       f,
		dec:        dec,
		sampleRate: sampleRate,
		scale:      scale,
		loop:       loop,
		pace:       pace,
	}, nil
}

// ReadBlock fills block with the next samples of the file. A final partial
// block is zero-padded and returned without error; the call after it returns
// io.EOF, unless looping.
func (s *WavSource) ReadBlock(block []float32) error {
	if s.intBuf == nil || cap(s.intBuf.Data) < len(block) {
		s.intBuf = &goaudio.IntBuffer{
			Data:   make([]int, len(block)),
			Format: s.dec.Format(),
		}
	}
	s.intBuf.Data = s.intBuf.Data[:len(block)]

	n, err := s.fill()
	if err != nil {
		return err
	}
	if n == 0 && s.loop {
		if err := s.rewind(); err != nil {
			return err
		}
		if n, err = s.fill(); err != nil {
			return err
		}
	}
	if n == 0 {
		return io.EOF
	}

	for i := range n {
		block[i] = float32(s.intBuf.Data[i]) / s.scale
	}
	clear(block[n:])

	s.wait(len(block) / config.Channels)
	return nil
}

// fill reads up to a full buffer of samples, across short decoder reads.
func (s *WavSource) fill() (int, error) {
	data := s.intBuf.Data
	total := 0
	for total < len(data) {
		s.intBuf.Data = data[total:]
		n, err := s.dec.PCMBuffer(s.intBuf)
		total += n
		if err != nil && !errors.Is(err, io.EOF) {
			s.intBuf.Data = data
			return total, fmt.Errorf("failed to decode input file: %w", err)
		}
		if n == 0 {
			break
		}
	}
	s.intBuf.Data = data
	return total, nil
}

func (s *WavSource) rewind() error {
	if err := s.dec.Rewind(); err != nil {
		return fmt.Errorf("failed to rewind input file: %w", err)
	}
	applog.Debugf("Audio: Input file rewound")
	return nil
}

// wait sleeps until frames more audio would have been captured live.
func (s *WavSource) wait(frames int) {
	if !s.pace {
		return
	}
	if s.start.IsZero() {
		s.start = time.Now()
	}
	s.elapsed += time.Duration(float64(frames) / s.sampleRate * float64(time.Second))
	if d := time.Until(s.start.Add(s.elapsed)); d > 0 {
		time.Sleep(d)
	}
}

// Close closes the underlying file.
func (s *WavSource) Close() error {
	return s.file.Close()
}
