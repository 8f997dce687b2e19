// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"heliecho/internal/analysis"
	applog "heliecho/internal/log"
)

// PacketSize is the length of one telemetry packet in bytes.
const PacketSize = 4 + 8 + 3 + 4*6

// UDPPublisher periodically packs the latest analysis snapshot into a binary
// telemetry packet and sends it over UDP. Send only stores the snapshot, so
// the analysis loop never waits on the network.
type UDPPublisher struct {
	sender   *UDPSender
	interval time.Duration

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	latestMu sync.Mutex
	latest   analysis.Snapshot
	fresh    bool // latest has not been sent yet

	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond // Default to ~60Hz if invalid
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s, Packet: %d bytes)", interval, PacketSize)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Send records data as the next snapshot to publish. Anything other than an
// analysis.Snapshot is rejected.
func (p *UDPPublisher) Send(data any) error {
	snap, ok := data.(analysis.Snapshot)
	if !ok {
		return fmt.Errorf("UDPPublisher: unsupported payload %T", data)
	}
	p.latestMu.Lock()
	p.latest = snap
	p.fresh = true
	p.latestMu.Unlock()
	return nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture locals so the goroutine never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
Telemetry packet (BigEndian):

+----------------+---------+------+--------------------------------------+
| Field          | Type    | Size | Description                          |
+----------------+---------+------+--------------------------------------+
| Sequence       | uint32  | 4    | Packet counter                       |
| Timestamp      | int64   | 8    | Nanoseconds since epoch              |
| R, G, B        | 3*uint8 | 3    | Requested colour                     |
| Brightness     | float32 | 4    |                                      |
| Bass/Mid/High  | 3*f32   | 12   | Normalised band levels               |
| Loudest Hz     | float32 | 4    | Frequency of the full-spectrum peak  |
| Loudest dB     | float32 | 4    |                                      |
+----------------+---------+------+--------------------------------------+
*/

// publish sends the latest snapshot if one arrived since the last tick.
func (p *UDPPublisher) publish() {
	p.latestMu.Lock()
	snap, fresh := p.latest, p.fresh
	p.fresh = false
	p.latestMu.Unlock()

	if !fresh {
		return
	}

	p.sequenceNum++
	packet := p.pack(snap, p.sequenceNum, time.Now().UnixNano())

	if err := p.sender.Send(packet); err != nil {
		applog.Debugf("UDPPublisher: Error sending packet %d: %v", p.sequenceNum, err)
		return
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
}

// pack encodes one packet into the reusable buffer.
func (p *UDPPublisher) pack(snap analysis.Snapshot, seq uint32, timestamp int64) []byte {
	buf := p.packetBuffer
	buf.Reset()

	var scratch [8]byte
	binary.BigEndian.PutUint32(scratch[:4], seq)
	buf.Write(scratch[:4])
	binary.BigEndian.PutUint64(scratch[:], uint64(timestamp))
	buf.Write(scratch[:])
	buf.Write([]byte{snap.Color.R, snap.Color.G, snap.Color.B})

	for _, v := range [...]float64{
		snap.Brightness,
		snap.BassLevel,
		snap.MidLevel,
		snap.HighLevel,
		snap.LoudestHz,
		snap.Loudest.DB,
	} {
		binary.BigEndian.PutUint32(scratch[:4], math32bits(v))
		buf.Write(scratch[:4])
	}
	return buf.Bytes()
}

// Close stops the publisher goroutine and closes the sender it owns.
func (p *UDPPublisher) Close() error {
	return errors.Join(p.Stop(), p.sender.Close())
}
