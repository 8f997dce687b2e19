// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"testing"
)

func TestNewGate(t *testing.T) {
	if NewGate(0).Enabled() {
		t.Error("zero threshold should leave the gate disabled")
	}
	if !NewGate(0.01).Enabled() {
		t.Error("positive threshold should enable the gate")
	}
}

func TestGateEnable(t *testing.T) {
	g := NewGate(0.1)

	g.Disable()
	if g.Enabled() {
		t.Error("Gate should be disabled after Disable()")
	}
	g.Enable()
	g.Enable() // Multiple calls should be idempotent
	if !g.Enabled() {
		t.Error("Gate should remain enabled after multiple Enable()")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.5, 0.5},  // Middle
		{1.0, 1.0},  // Maximum
		{1.5, 1.0},  // Above max
	}

	g := &Gate{}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.input), func(t *testing.T) {
			g.SetThreshold(tt.input)
			if got := g.Threshold(); math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("Gate threshold: got %.3f, want %.3f", got, tt.expected)
			}
		})
	}
}

func TestGateApply(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		block     []float32
		wantOpen  bool
	}{
		{"quiet block closes", 0.1, []float32{0.01, -0.05, 0.09, -0.02}, false},
		{"negative peak opens", 0.1, []float32{0.01, -0.5, 0.02, 0.03}, true},
		{"peak at threshold opens", 0.25, []float32{0.25, 0, 0, 0}, true},
		{"silence closes", 0.001, []float32{0, 0, 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(tt.threshold)
			block := append([]float32(nil), tt.block...)

			if got := g.Apply(block); got != tt.wantOpen {
				t.Fatalf("Apply() = %v, want %v", got, tt.wantOpen)
			}
			for i, s := range block {
				want := tt.block[i]
				if !tt.wantOpen {
					want = 0
				}
				if s != want {
					t.Errorf("sample %d = %g, want %g", i, s, want)
				}
			}
		})
	}
}

func TestGateDisabledPassesEverything(t *testing.T) {
	g := NewGate(0.5)
	g.Disable()
	block := []float32{0.01, 0.01}
	if !g.Apply(block) || block[0] != 0.01 {
		t.Error("disabled gate must not touch the block")
	}
}

func TestPeak(t *testing.T) {
	if got := Peak([]float32{0.2, -0.7, 0.5}); got != 0.7 {
		t.Errorf("Peak() = %g, want 0.7", got)
	}
	if got := Peak(nil); got != 0 {
		t.Errorf("Peak(nil) = %g, want 0", got)
	}
}

func TestGateApplyZeroAllocs(t *testing.T) {
	g := NewGate(0.001)
	block := make([]float32, 4096)
	for i := range block {
		block[i] = float32(i%100) / 100
	}

	allocs := testing.AllocsPerRun(100, func() {
		g.Apply(block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Gate.Apply, got %.1f", allocs)
	}
}

func BenchmarkGateApply(b *testing.B) {
	g := NewGate(0.001)
	block := make([]float32, 4096)
	for i := range block {
		block[i] = float32(i%100) / 100
	}

	b.ReportAllocs()
	for b.Loop() {
		g.Apply(block)
	}
}
