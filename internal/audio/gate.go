// SPDX-License-Identifier: MIT
package audio

// Gate silences blocks whose peak absolute sample stays below a threshold,
// so room noise does not keep the strip faintly lit.
type Gate struct {
	enabled   bool
	threshold float32 // Fraction of full scale, 0-1.
}

// NewGate returns a gate with the given threshold. A threshold of 0 leaves
// the gate disabled.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.enabled = g.threshold > 0
	return g
}

func (g *Gate) Enable() {
	g.enabled = true
}

func (g *Gate) Disable() {
	g.enabled = false
}

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold = float32(threshold)
}

// Threshold returns the current noise gate threshold as a float64.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold)
}

// Apply zeroes block in place when the gate is enabled and the block's peak
// is below the threshold. It reports whether the block passed.
func (g *Gate) Apply(block []float32) bool {
	if !g.enabled {
		return true
	}
	if Peak(block) >= g.threshold {
		return true
	}
	clear(block)
	return false
}

// Peak returns the largest absolute sample value in block.
func Peak(block []float32) float32 {
	var peak float32
	for _, s := range block {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
