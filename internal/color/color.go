// SPDX-License-Identifier: MIT
//
// Package color derives the strip colour from band levels and smooths the
// device colour towards each new request.
package color

import (
	"fmt"
	"math"
)

// RGB is an 8-bit colour.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Black is the zero colour.
var Black = RGB{}

// Sum returns the summed channel magnitude used to decide whether a colour
// is brighter than another.
func (c RGB) Sum() int {
	return int(c.R) + int(c.G) + int(c.B)
}

// Hex renders the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Channel response exponents; a higher exponent suppresses low levels more.
const (
	bassExponent = 2.5
	midExponent  = 2.6
	highExponent = 2.4
)

// Band weights of the overall brightness.
const (
	bassWeight = 1.4
	midWeight  = 0.9
	highWeight = 0.7
)

// Map combines three normalised levels in [0, 1] into a colour: bass drives
// red, mid drives green and high drives blue, each scaled by the overall
// brightness. It also returns that brightness.
func Map(bass, mid, high float64) (RGB, float64) {
	brightness := (bass*bassWeight + mid*midWeight + high*highWeight) / 3

	return RGB{
		R: Clamp8(255 * math.Pow(bass, bassExponent) * brightness),
		G: Clamp8(255 * math.Pow(mid, midExponent) * brightness),
		B: Clamp8(255 * math.Pow(high, highExponent) * brightness),
	}, brightness
}

// Clamp8 rounds v and saturates it to [0, 255]. NaN maps to 0.
func Clamp8(v float64) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(v))
}

// Blend weights in tenths: a brighter request pulls 60% towards itself,
// a darker or equal one only 40%.
const (
	riseWeight = 6
	fallWeight = 4
)

// Smooth returns the next device colour on the way from current to
// requested. Light rises quickly and decays slowly. Each channel rounds
// towards its requested value, so repeated calls reach requested exactly.
func Smooth(current, requested RGB) RGB {
	w := fallWeight
	if requested.Sum() > current.Sum() {
		w = riseWeight
	}
	return RGB{
		R: blend(current.R, requested.R, w),
		G: blend(current.G, requested.G, w),
		B: blend(current.B, requested.B, w),
	}
}

func blend(current, requested uint8, w int) uint8 {
	cur, req := int(current), int(requested)
	num := w*req + (10-w)*cur
	if req > cur {
		return uint8((num + 9) / 10)
	}
	return uint8(num / 10)
}
