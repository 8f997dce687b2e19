// SPDX-License-Identifier: MIT
package analysis

import "math"

// NormalizeDB maps a peak in dB to a perceptual level in [0, 1].
//
// With x = db/referenceDB the curve is (1-x)*x + x*sigmoid(10*(x-0.5)): close
// to linear for quiet input, an S-shaped push through the middle and
// saturation at 1 from the reference level upwards. It is 0 at 0 dB and
// non-decreasing; negative and NaN input map to 0.
func NormalizeDB(db, referenceDB float64) float64 {
	x := db / referenceDB
	switch {
	case !(x > 0):
		return 0
	case x >= 1:
		return 1
	}
	return (1-x)*x + x*sigmoid(10*(x-0.5))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
