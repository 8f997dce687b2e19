// SPDX-License-Identifier: MIT
/*
Package adalight encodes colour frames for Adalight-compatible LED firmware.

Frame layout:

	+--------+--------+--------+--------+--------+----------+---------------------+
	| 'A'    | 'd'    | 'a'    | hi     | lo     | checksum | R G B  x ledCount   |
	+--------+--------+--------+--------+--------+----------+---------------------+
	  0        1        2        3        4        5          6 ..

hi and lo are the high and low bytes of ledCount-1; checksum is
hi ^ lo ^ 0x55. The header depends only on the LED count, so it is built once
and only the payload is rewritten per frame.
*/
package adalight

import "fmt"

const (
	// HeaderSize is the number of bytes before the pixel payload.
	HeaderSize = 6
	// MaxLEDs is the largest count the 16-bit length field can describe.
	MaxLEDs = 1 << 16

	checksumSeed = 0x55
)

// Header returns the six header bytes for a strip of ledCount LEDs.
func Header(ledCount int) ([HeaderSize]byte, error) {
	var h [HeaderSize]byte
	if ledCount < 1 || ledCount > MaxLEDs {
		return h, fmt.Errorf("led count must be within [1, %d], got %d", MaxLEDs, ledCount)
	}

	n := ledCount - 1
	hi, lo := byte(n>>8), byte(n&0xFF)
	h[0], h[1], h[2] = 'A', 'd', 'a'
	h[3] = hi
	h[4] = lo
	h[5] = hi ^ lo ^ checksumSeed
	return h, nil
}

// Frame is a reusable wire buffer for one strip.
type Frame struct {
	buf      []byte
	ledCount int
}

// NewFrame allocates a frame and writes its header.
func NewFrame(ledCount int) (*Frame, error) {
	header, err := Header(ledCount)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, HeaderSize+3*ledCount)
	copy(buf, header[:])
	return &Frame{buf: buf, ledCount: ledCount}, nil
}

// Fill writes r, g, b into every LED slot and returns the complete frame.
// The returned slice is owned by the Frame and is overwritten by the next
// call.
func (f *Frame) Fill(r, g, b uint8) []byte {
	payload := f.buf[HeaderSize:]
	for i := 0; i < len(payload); i += 3 {
		payload[i] = r
		payload[i+1] = g
		payload[i+2] = b
	}
	return f.buf
}

// Bytes returns the frame as last filled.
func (f *Frame) Bytes() []byte {
	return f.buf
}

// LEDCount returns the number of LEDs the frame addresses.
func (f *Frame) LEDCount() int {
	return f.ledCount
}

// Len returns the total frame size in bytes.
func (f *Frame) Len() int {
	return len(f.buf)
}
