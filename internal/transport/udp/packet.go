// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"fmt"
	"math"

	"heliecho/internal/color"
)

// Telemetry is a decoded telemetry packet.
type Telemetry struct {
	Sequence   uint32
	Timestamp  int64
	Color      color.RGB
	Brightness float32
	BassLevel  float32
	MidLevel   float32
	HighLevel  float32
	LoudestHz  float32
	LoudestDB  float32
}

// DecodeTelemetry parses a packet produced by UDPPublisher.
func DecodeTelemetry(packet []byte) (Telemetry, error) {
	var t Telemetry
	if len(packet) != PacketSize {
		return t, fmt.Errorf("telemetry packet is %d bytes, want %d", len(packet), PacketSize)
	}

	t.Sequence = binary.BigEndian.Uint32(packet[0:4])
	t.Timestamp = int64(binary.BigEndian.Uint64(packet[4:12]))
	t.Color = color.RGB{R: packet[12], G: packet[13], B: packet[14]}

	floats := [...]*float32{&t.Brightness, &t.BassLevel, &t.MidLevel, &t.HighLevel, &t.LoudestHz, &t.LoudestDB}
	for i, f := range floats {
		off := 15 + 4*i
		*f = math.Float32frombits(binary.BigEndian.Uint32(packet[off : off+4]))
	}
	return t, nil
}

func math32bits(v float64) uint32 {
	return math.Float32bits(float32(v))
}
