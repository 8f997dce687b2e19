// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"heliecho/internal/config"
)

// PassTo is a soft low-pass curve. It keeps amp at 0 Hz, falls off with a
// steepness set by the cutoff, reaches 0 at the cutoff and stays there.
func PassTo(freq, amp, cutoff float64) float64 {
	if !(amp > 0) || freq > cutoff {
		return 0
	}
	sharpness := math.Pow(cutoff/400, 2)
	return amp * math.Max(1-math.Pow(3*sharpness, 7*(freq/cutoff-1)), 0)
}

// PassFrom is a soft high-pass curve. It is 0 below the cutoff and rises
// towards amp above it, reaching full scale well before config.MaxFrequency.
// cutoff must be below config.MaxFrequency.
func PassFrom(freq, amp, cutoff float64) float64 {
	if !(amp > 0) || freq < cutoff {
		return 0
	}
	span := config.MaxFrequency - cutoff
	sharpness := math.Pow(span/2700, 10)
	return amp * math.Max(1-math.Pow(3*sharpness, -7*(freq-cutoff)/span), 0)
}

// BandPass chains the two curves: the high-pass is applied to the output of
// the low-pass.
func BandPass(freq, amp, lowCut, highCut float64) float64 {
	return PassFrom(freq, PassTo(freq, amp, highCut), lowCut)
}

// Band names one of the three shaped bands.
type Band int

const (
	Bass Band = iota
	Mid
	High
)

func (b Band) String() string {
	switch b {
	case Bass:
		return "bass"
	case Mid:
		return "mid"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// ShapedSpectra holds the three band-filtered copies of one spectrum.
type ShapedSpectra struct {
	Bass []float64
	Mid  []float64
	High []float64
}

// NewShapedSpectra allocates three spectra of the given length.
func NewShapedSpectra(bins int) ShapedSpectra {
	return ShapedSpectra{
		Bass: make([]float64, bins),
		Mid:  make([]float64, bins),
		High: make([]float64, bins),
	}
}

// Shaper applies the bass, mid and high curves to every bin of a spectrum.
// The mid band reaches margin Hz into each neighbour so the colour blends
// rather than switches at the crossovers.
type Shaper struct {
	bassCutoff float64
	highCutoff float64
	margin     float64

	// Every curve is amp times a function of frequency alone, so the
	// per-bin gains are computed once.
	gains [3][]float64
}

// NewShaper builds a shaper for a spectrum whose bin i sits at freqOf(i).
func NewShaper(cfg config.AnalysisConfig, bins int, freqOf func(bin int) float64) (*Shaper, error) {
	lowCut := cfg.BassCutoff - cfg.MidMargin
	switch {
	case lowCut < 0:
		return nil, fmt.Errorf("mid band lower cutoff %g Hz is negative", lowCut)
	case cfg.HighCutoff >= config.MaxFrequency:
		return nil, fmt.Errorf("high cutoff %g Hz must be below %g Hz", cfg.HighCutoff, config.MaxFrequency)
	case lowCut >= config.MaxFrequency:
		return nil, fmt.Errorf("mid band lower cutoff %g Hz must be below %g Hz", lowCut, config.MaxFrequency)
	}

	s := &Shaper{
		bassCutoff: cfg.BassCutoff,
		highCutoff: cfg.HighCutoff,
		margin:     cfg.MidMargin,
	}
	for band := range s.gains {
		s.gains[band] = make([]float64, bins)
		for i := range bins {
			s.gains[band][i] = s.Shape(Band(band), freqOf(i), 1)
		}
	}
	return s, nil
}

// Shape applies one band's curve to a single (frequency, amplitude) pair.
func (s *Shaper) Shape(band Band, freq, amp float64) float64 {
	switch band {
	case Bass:
		return PassTo(freq, amp, s.bassCutoff)
	case Mid:
		return BandPass(freq, amp, s.bassCutoff-s.margin, s.highCutoff+s.margin)
	case High:
		return PassFrom(freq, amp, s.highCutoff)
	default:
		return 0
	}
}

// Apply fills out with the three shaped copies of spectrum. Bins with a
// non-positive amplitude (including -Inf from silent bins) shape to 0.
func (s *Shaper) Apply(spectrum []float64, out ShapedSpectra) {
	bass, mid, high := s.gains[Bass], s.gains[Mid], s.gains[High]
	for i, amp := range spectrum {
		if !(amp > 0) {
			out.Bass[i], out.Mid[i], out.High[i] = 0, 0, 0
			continue
		}
		out.Bass[i] = amp * bass[i]
		out.Mid[i] = amp * mid[i]
		out.High[i] = amp * high[i]
	}
}
