// SPDX-License-Identifier: MIT
package analysis

// BlockProcessor turns one block of interleaved stereo samples into a
// Snapshot. Implementations are called from the analysis loop and should
// not allocate.
type BlockProcessor interface {
	Process(block []float32) Snapshot
}

var _ BlockProcessor = (*Pipeline)(nil)
