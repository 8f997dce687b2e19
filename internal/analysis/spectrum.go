// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	applog "heliecho/internal/log"
	"heliecho/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Pre-allocated buffers for the FFT.
type fftWorkspace struct {
	mono   []float64    // Averaged, optionally windowed, input.
	coeffs []complex128 // FFT output, N/2+1 values.
}

// Analyzer turns a block of interleaved stereo samples into a decibel
// spectrum of N/2 bins, bin i covering frequency i*sampleRate/N.
type Analyzer struct {
	fftCalculator *fourier.FFT
	blockSize     int
	sampleRate    float64
	window        []float64 // nil means rectangular
	workspace     fftWorkspace
}

// NewAnalyzer creates an analyzer for blocks of blockSize stereo frames.
func NewAnalyzer(blockSize int, sampleRate float64, windowType WindowFunc) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(blockSize) {
		return nil, fmt.Errorf("block size must be a power of 2, got %d", blockSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	coeffs, err := windowCoefficients(blockSize, windowType)
	if err != nil {
		return nil, err
	}

	applog.Infof("Analysis: Initializing analyzer (Block: %d, SampleRate: %.1f Hz, Window: %v)", blockSize, sampleRate, windowType)

	return &Analyzer{
		fftCalculator: fourier.NewFFT(blockSize),
		blockSize:     blockSize,
		sampleRate:    sampleRate,
		window:        coeffs,
		workspace: fftWorkspace{
			mono:   make([]float64, blockSize),
			coeffs: make([]complex128, blockSize/2+1),
		},
	}, nil
}

// Process averages L/R to mono, runs the FFT and writes 20*log10(|X[i]|) for
// the first N/2 bins into spectrum. Silent bins come out as -Inf. block must
// hold 2*N interleaved samples; a short block is zero-padded. spectrum must
// have Bins() elements.
func (a *Analyzer) Process(block []float32, spectrum []float64) {
	ws := &a.workspace
	for i := range a.blockSize {
		if 2*i+1 < len(block) {
			ws.mono[i] = (float64(block[2*i]) + float64(block[2*i+1])) / 2
		} else {
			ws.mono[i] = 0
		}
	}
	if a.window != nil {
		for i, w := range a.window {
			ws.mono[i] *= w
		}
	}

	a.fftCalculator.Coefficients(ws.coeffs, ws.mono)

	// The upper half of a real signal's spectrum mirrors the lower half, and
	// the Nyquist bin is dropped with it.
	for i := range spectrum {
		spectrum[i] = 20 * math.Log10(cmplx.Abs(ws.coeffs[i]))
	}
}

// Bins returns the spectrum length, N/2.
func (a *Analyzer) Bins() int {
	return a.blockSize / 2
}

// BlockSize returns N.
func (a *Analyzer) BlockSize() int {
	return a.blockSize
}

// SampleRate returns the configured sample rate (Hz).
func (a *Analyzer) SampleRate() float64 {
	return a.sampleRate
}

// FrequencyForBin returns the frequency (Hz) of a spectrum bin.
func (a *Analyzer) FrequencyForBin(bin int) float64 {
	return float64(bin) * a.sampleRate / float64(a.blockSize)
}

// BinForFrequency converts a frequency to the nearest bin index,
// round(freq*N/sampleRate).
func (a *Analyzer) BinForFrequency(freq float64) int {
	return int(math.Round(freq * float64(a.blockSize) / a.sampleRate))
}
