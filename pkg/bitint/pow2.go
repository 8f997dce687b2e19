// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to validate and suggest
FFT block sizes.

Both functions are branch-light, allocation-free and safe to call from
configuration code as well as from the audio hot path.

What NextPowerOfTwo does:

	The subtraction (size-1) keeps exact powers of two unchanged.

	For input 2048 (binary 1000_0000_0000):
	  size-1 = 2047 -> bits.Len(2047) = 11 -> 1 << 11 = 2048

	For input 2000:
	  size-1 = 1999 -> bits.Len(1999) = 11 -> 1 << 11 = 2048

	Without the subtraction 2048 would become 4096.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
//
// Examples:
//
//	Input  Output
//	1024   1024
//	1000   1024
//	3      4
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// Powers of 2 have exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	2048   true    1000_0000_0000 & 0111_1111_1111 = 0
//	1000   false
//	0      false
//	-8     false
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
