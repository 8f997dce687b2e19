// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"heliecho/internal/color"
	"heliecho/internal/config"
	applog "heliecho/internal/log"
)

// Snapshot is everything one analysis iteration derived from a block. It is
// handed to observers by value.
type Snapshot struct {
	Sequence   uint64    `json:"seq"`
	Bass       Peak      `json:"bass"`
	Mid        Peak      `json:"mid"`
	High       Peak      `json:"high"`
	Loudest    Peak      `json:"loudest"`
	LoudestHz  float64   `json:"loudestHz"`
	BassLevel  float64   `json:"bassLevel"`
	MidLevel   float64   `json:"midLevel"`
	HighLevel  float64   `json:"highLevel"`
	Brightness float64   `json:"brightness"`
	Color      color.RGB `json:"color"`
}

// Pipeline runs the per-block chain: spectrum, band shaping, peak search,
// normalisation and colour mapping. All buffers are allocated up front and
// Process does not allocate. A Pipeline is not safe for concurrent use.
type Pipeline struct {
	analyzer    *Analyzer
	shaper      *Shaper
	ranges      BandRanges
	referenceDB float64

	spectrum []float64
	shaped   ShapedSpectra
	sequence uint64
}

// NewPipeline builds a pipeline for the audio and analysis sections of cfg.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	windowType, err := ParseWindowFunc(cfg.Analysis.FFTWindow)
	if err != nil {
		return nil, err
	}
	analyzer, err := NewAnalyzer(cfg.Audio.BlockSize, cfg.Audio.SampleRate, windowType)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	bins := analyzer.Bins()
	shaper, err := NewShaper(cfg.Analysis, bins, analyzer.FrequencyForBin)
	if err != nil {
		return nil, fmt.Errorf("failed to create band shaper: %w", err)
	}
	if cfg.Analysis.ReferenceDB <= 0 {
		return nil, fmt.Errorf("reference level must be positive, got %g dB", cfg.Analysis.ReferenceDB)
	}

	ranges := BandRanges{
		BassEnd:   analyzer.BinForFrequency(cfg.Analysis.BassCutoff),
		HighStart: analyzer.BinForFrequency(cfg.Analysis.HighCutoff),
	}
	applog.Debugf("Analysis: Peak ranges bass [0,%d) mid (%d,%d) high [%d,%d)",
		ranges.BassEnd, ranges.BassEnd, ranges.HighStart, ranges.HighStart, bins)

	return &Pipeline{
		analyzer:    analyzer,
		shaper:      shaper,
		ranges:      ranges,
		referenceDB: cfg.Analysis.ReferenceDB,
		spectrum:    make([]float64, bins),
		shaped:      NewShapedSpectra(bins),
	}, nil
}

// Process analyses one block of interleaved stereo samples.
func (p *Pipeline) Process(block []float32) Snapshot {
	p.analyzer.Process(block, p.spectrum)
	p.shaper.Apply(p.spectrum, p.shaped)

	bass, mid, high := p.ranges.Peaks(p.shaped)
	loudest := FindPeak(p.spectrum, 0, len(p.spectrum))

	bassLevel := NormalizeDB(bass.DB, p.referenceDB)
	midLevel := NormalizeDB(mid.DB, p.referenceDB)
	highLevel := NormalizeDB(high.DB, p.referenceDB)
	c, brightness := color.Map(bassLevel, midLevel, highLevel)

	p.sequence++
	return Snapshot{
		Sequence:   p.sequence,
		Bass:       bass,
		Mid:        mid,
		High:       high,
		Loudest:    loudest,
		LoudestHz:  p.analyzer.FrequencyForBin(loudest.Bin),
		BassLevel:  bassLevel,
		MidLevel:   midLevel,
		HighLevel:  highLevel,
		Brightness: brightness,
		Color:      c,
	}
}

// Spectrum returns the dB spectrum of the last processed block. The slice is
// reused by the next call.
func (p *Pipeline) Spectrum() []float64 {
	return p.spectrum
}

// Ranges returns the peak search boundaries.
func (p *Pipeline) Ranges() BandRanges {
	return p.ranges
}

// Analyzer returns the underlying spectral analyzer.
func (p *Pipeline) Analyzer() *Analyzer {
	return p.analyzer
}
