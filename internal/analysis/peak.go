// SPDX-License-Identifier: MIT
package analysis

// Peak is the strongest bin of a (sub-)spectrum.
type Peak struct {
	Bin int     `json:"bin"`
	DB  float64 `json:"db"`
}

// FindPeak returns the loudest bin in spectrum[start:end]. The running
// maximum starts at 0 dB, so bins at or below 0 dB never register and an
// all-quiet range reports Peak{0, 0}. Ties keep the lowest bin. The range is
// clamped to the spectrum.
func FindPeak(spectrum []float64, start, end int) Peak {
	if start < 0 {
		start = 0
	}
	if end > len(spectrum) {
		end = len(spectrum)
	}

	var peak Peak
	for i := start; i < end; i++ {
		if spectrum[i] > peak.DB {
			peak = Peak{Bin: i, DB: spectrum[i]}
		}
	}
	return peak
}

// BandRanges holds the bin boundaries of the three peak searches.
//
//	bass: [0, BassEnd)
//	mid:  (BassEnd, HighStart)
//	high: [HighStart, bins)
type BandRanges struct {
	BassEnd   int
	HighStart int
}

// Peaks finds the bass, mid and high peaks of the shaped spectra.
func (r BandRanges) Peaks(shaped ShapedSpectra) (bass, mid, high Peak) {
	bass = FindPeak(shaped.Bass, 0, r.BassEnd)
	mid = FindPeak(shaped.Mid, r.BassEnd+1, r.HighStart)
	high = FindPeak(shaped.High, r.HighStart, len(shaped.High))
	return bass, mid, high
}
