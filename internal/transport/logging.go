// SPDX-License-Identifier: MIT
package transport

import (
	"heliecho/internal/analysis"
	applog "heliecho/internal/log"
)

// LoggingTransport implements the Transport interface by logging data at
// DEBUG level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. Snapshots get a compact one-line summary
// with the loudest frequency of the block.
func (lt *LoggingTransport) Send(data any) error {
	if !applog.Enabled(applog.LevelDebug) {
		return nil
	}

	switch v := data.(type) {
	case analysis.Snapshot:
		applog.Debugf("Observer: #%d loudest %.1f Hz (%.1f dB) levels %.2f/%.2f/%.2f brightness %.3f colour %s",
			v.Sequence, v.LoudestHz, v.Loudest.DB, v.BassLevel, v.MidLevel, v.HighLevel, v.Brightness, v.Color.Hex())
	default:
		applog.Debugf("Observer: Received (%T): %+v", data, data)
	}
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
