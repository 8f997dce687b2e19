// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"heliecho/internal/color"
	"heliecho/internal/config"
	"heliecho/pkg/utils"
)

func newTestPipeline(t testing.TB) *Pipeline {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Audio.BlockSize = testBlockSize
	cfg.Audio.SampleRate = testSampleRate
	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	return p
}

func TestPipelineRanges(t *testing.T) {
	p := newTestPipeline(t)
	want := BandRanges{BassEnd: 13, HighStart: 85}
	if got := p.Ranges(); got != want {
		t.Errorf("Ranges() = %+v, want %+v", got, want)
	}
}

func TestPipelineSilence(t *testing.T) {
	p := newTestPipeline(t)
	snap := p.Process(make([]float32, 2*testBlockSize))

	if snap.Color != color.Black {
		t.Errorf("silent block colour = %+v, want black", snap.Color)
	}
	if snap.Brightness != 0 || snap.BassLevel != 0 || snap.MidLevel != 0 || snap.HighLevel != 0 {
		t.Errorf("silent block levels = %+v", snap)
	}
	if snap.Loudest != (Peak{}) || snap.LoudestHz != 0 {
		t.Errorf("silent block loudest = %+v at %g Hz", snap.Loudest, snap.LoudestHz)
	}
}

func TestPipelineBassSine(t *testing.T) {
	p := newTestPipeline(t)
	freq := p.Analyzer().FrequencyForBin(10)
	snap := p.Process(utils.GenerateStereoSine(testBlockSize, testSampleRate, freq, 0.5))

	if snap.Loudest.Bin < 9 || snap.Loudest.Bin > 11 {
		t.Errorf("loudest bin = %d, want 10 +/- 1", snap.Loudest.Bin)
	}
	if math.Abs(snap.LoudestHz-freq) > testSampleRate/testBlockSize {
		t.Errorf("loudest frequency = %g Hz, want about %g Hz", snap.LoudestHz, freq)
	}
	if snap.Bass.Bin < 9 || snap.Bass.Bin > 11 {
		t.Errorf("bass peak bin = %d, want 10 +/- 1", snap.Bass.Bin)
	}
	if !(snap.BassLevel > 0) || snap.MidLevel != 0 || snap.HighLevel != 0 {
		t.Errorf("levels = bass %g mid %g high %g, want bass only", snap.BassLevel, snap.MidLevel, snap.HighLevel)
	}
	if snap.Color.R == 0 || snap.Color.G != 0 || snap.Color.B != 0 {
		t.Errorf("colour = %+v, want red only", snap.Color)
	}
}

func TestPipelineSequence(t *testing.T) {
	p := newTestPipeline(t)
	block := make([]float32, 2*testBlockSize)
	for want := uint64(1); want <= 3; want++ {
		if got := p.Process(block).Sequence; got != want {
			t.Fatalf("Sequence = %d, want %d", got, want)
		}
	}
}

func TestNewPipelineRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"block size", func(c *config.Config) { c.Audio.BlockSize = 1000 }},
		{"window", func(c *config.Config) { c.Analysis.FFTWindow = "triangle" }},
		{"cutoff", func(c *config.Config) { c.Analysis.HighCutoff = config.MaxFrequency }},
		{"reference", func(c *config.Config) { c.Analysis.ReferenceDB = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			tt.mutate(cfg)
			if _, err := NewPipeline(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPipelineProcessZeroAllocs(t *testing.T) {
	p := newTestPipeline(t)
	block := utils.GenerateComplexWave(testBlockSize, testSampleRate)

	p.Process(block)
	allocs := testing.AllocsPerRun(100, func() {
		_ = p.Process(block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Pipeline.Process, got %.1f", allocs)
	}
}

func BenchmarkPipelineProcess(b *testing.B) {
	p := newTestPipeline(b)
	block := utils.GenerateComplexWave(testBlockSize, testSampleRate)

	b.ReportAllocs()
	for b.Loop() {
		_ = p.Process(block)
	}
}
