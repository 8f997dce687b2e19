// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	applog "heliecho/internal/log"
	"heliecho/pkg/bitint"
)

// Core configuration constants that define the boundaries and defaults
// for the light show.
const (
	// Audio defaults.
	DefaultInputDevice   = MinDeviceID // System default device
	DefaultSampleRate    = 48000       // Hz
	DefaultBlockSize     = 2048        // Frames per analysed block
	DefaultLowLatency    = false       // Standard latency mode
	DefaultGateThreshold = 0.0         // Gate disabled

	// Analysis defaults.
	DefaultBassCutoff  = 300.0  // Hz, bass/mid crossover
	DefaultHighCutoff  = 2000.0 // Hz, mid/high crossover
	DefaultMidMargin   = 100.0  // Hz the mid band overlaps each neighbour
	DefaultReferenceDB = 62.0   // dB mapped to full level
	DefaultFFTWindow   = "none" // Rectangular

	// Device defaults.
	DefaultPort     = "/dev/ttyACM0"
	DefaultLEDCount = 50
	BaudRate        = 115200 // Adalight firmware speed, not negotiable

	// Transport defaults.
	DefaultWebSocketAddress = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz

	// Hardware and processing limits.
	Channels      = 2      // Stereo only
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MinBlockSize  = 64     // Smallest useful FFT
	MaxBlockSize  = 8192   // Largest block (power of 2)
	MaxLEDCount   = 1 << 16
	MaxFrequency  = 20000.0 // Upper edge of the high band curve (Hz)
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds every tunable of the process. It is loaded once at startup
// and never mutated afterwards.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error.
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Device    DeviceConfig    `yaml:"device"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`

	// Runtime options set from the command line only.
	Command string `yaml:"-"` // One-off command (list, ports, devices).
	Monitor bool   `yaml:"-"` // Show the live colour monitor.
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice   int     `yaml:"input_device"`   // PortAudio device index (-1 for default).
	SampleRate    float64 `yaml:"sample_rate"`    // Hz.
	BlockSize     int     `yaml:"block_size"`     // Frames per block, power of two.
	LowLatency    bool    `yaml:"low_latency"`    // Request low latency from PortAudio.
	InputFile     string  `yaml:"input_file"`     // Replay a stereo WAV instead of live capture.
	LoopInput     bool    `yaml:"loop_input"`     // Rewind the WAV at EOF.
	GateThreshold float64 `yaml:"gate_threshold"` // 0..1 of full scale, 0 disables the gate.
}

// AnalysisConfig holds the band shaping and normalisation tunables.
type AnalysisConfig struct {
	BassCutoff  float64 `yaml:"bass_cutoff"`  // Hz.
	HighCutoff  float64 `yaml:"high_cutoff"`  // Hz.
	MidMargin   float64 `yaml:"mid_margin"`   // Hz.
	ReferenceDB float64 `yaml:"reference_db"` // dB.
	FFTWindow   string  `yaml:"fft_window"`   // none, hann, hamming, ...
}

// DeviceConfig describes the LED strip link.
type DeviceConfig struct {
	Port            string        `yaml:"port"`             // Serial path or udp://host:port.
	LEDCount        int           `yaml:"led_count"`        // LEDs on the strip.
	BaudRate        int           `yaml:"baud_rate"`        // Must be 115200.
	RefreshInterval time.Duration `yaml:"refresh_interval"` // Minimum spacing between frames, 0 free-runs.
}

// RecordingConfig holds settings for teeing captured audio to disk.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
}

// TransportConfig holds settings for the optional observers.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:   DefaultInputDevice,
			SampleRate:    DefaultSampleRate,
			BlockSize:     DefaultBlockSize,
			LowLatency:    DefaultLowLatency,
			GateThreshold: DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			BassCutoff:  DefaultBassCutoff,
			HighCutoff:  DefaultHighCutoff,
			MidMargin:   DefaultMidMargin,
			ReferenceDB: DefaultReferenceDB,
			FFTWindow:   DefaultFFTWindow,
		},
		Device: DeviceConfig{
			Port:     DefaultPort,
			LEDCount: DefaultLEDCount,
			BaudRate: BaudRate,
		},
		Transport: TransportConfig{
			WebSocketAddress: DefaultWebSocketAddress,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// Validate checks every field and returns all violations at once, wrapped
// in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		fail("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	// Audio
	a := c.Audio
	if a.InputDevice < MinDeviceID {
		fail("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		fail("audio.sample_rate must be within [%d, %d], got %g", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	if !bitint.IsPowerOfTwo(a.BlockSize) {
		fail("audio.block_size must be a power of two, got %d (try %d)", a.BlockSize, bitint.NextPowerOfTwo(a.BlockSize))
	} else if a.BlockSize < MinBlockSize || a.BlockSize > MaxBlockSize {
		fail("audio.block_size must be within [%d, %d], got %d", MinBlockSize, MaxBlockSize, a.BlockSize)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		fail("audio.gate_threshold must be within [0, 1], got %g", a.GateThreshold)
	}

	// Analysis: these are the band shaper preconditions.
	an := c.Analysis
	if an.MidMargin < 0 {
		fail("analysis.mid_margin must not be negative, got %g", an.MidMargin)
	}
	if an.BassCutoff <= 0 {
		fail("analysis.bass_cutoff must be positive, got %g", an.BassCutoff)
	} else if an.BassCutoff-an.MidMargin <= 0 {
		fail("analysis.bass_cutoff - mid_margin must be positive, got %g", an.BassCutoff-an.MidMargin)
	}
	if an.HighCutoff <= an.BassCutoff {
		fail("analysis.high_cutoff (%g) must be above bass_cutoff (%g)", an.HighCutoff, an.BassCutoff)
	}
	if an.HighCutoff >= MaxFrequency {
		fail("analysis.high_cutoff must be below %g Hz, got %g", MaxFrequency, an.HighCutoff)
	} else if an.HighCutoff+an.MidMargin >= MaxFrequency {
		fail("analysis.high_cutoff + mid_margin must be below %g Hz, got %g", MaxFrequency, an.HighCutoff+an.MidMargin)
	}
	if an.ReferenceDB <= 0 || math.IsInf(an.ReferenceDB, 0) || math.IsNaN(an.ReferenceDB) {
		fail("analysis.reference_db must be a positive number, got %g", an.ReferenceDB)
	}

	// Device
	d := c.Device
	if strings.TrimSpace(d.Port) == "" {
		fail("device.port must be set")
	}
	if d.LEDCount < 1 || d.LEDCount > MaxLEDCount {
		fail("device.led_count must be within [1, %d], got %d", MaxLEDCount, d.LEDCount)
	}
	if d.BaudRate != BaudRate {
		fail("device.baud_rate must be %d, got %d", BaudRate, d.BaudRate)
	}
	if d.RefreshInterval < 0 {
		fail("device.refresh_interval must not be negative, got %s", d.RefreshInterval)
	}

	// Recording
	if c.Recording.Enabled && strings.TrimSpace(c.Recording.OutputFile) == "" {
		fail("recording.output_file must be set when recording is enabled")
	}

	// Transport
	t := c.Transport
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		fail("transport.websocket_address must be set when the websocket monitor is enabled")
	}
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			fail("transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			fail("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Warnings reports settings that are valid but probably not what the user
// wants. They are logged at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	an := c.Analysis

	// passTo collapses to zero everywhere once 3*(cutoff/400)^2 <= 1.
	if 3*math.Pow(an.BassCutoff/400, 2) <= 1 {
		warnings = append(warnings, fmt.Sprintf("analysis.bass_cutoff %g Hz is too low for the bass curve; the bass band will stay dark", an.BassCutoff))
	}
	// passFrom collapses once 3*((max-cutoff)/2700)^10 <= 1.
	if 3*math.Pow((MaxFrequency-an.HighCutoff)/2700, 10) <= 1 {
		warnings = append(warnings, fmt.Sprintf("analysis.high_cutoff %g Hz is too close to %g Hz; the high band will stay dark", an.HighCutoff, MaxFrequency))
	}
	if nyquist := c.Audio.SampleRate / 2; an.HighCutoff >= nyquist {
		warnings = append(warnings, fmt.Sprintf("analysis.high_cutoff %g Hz is above the Nyquist frequency %g Hz", an.HighCutoff, nyquist))
	}
	if c.Device.RefreshInterval == 0 && strings.HasPrefix(c.Device.Port, "udp://") {
		warnings = append(warnings, "device.refresh_interval is 0 with a UDP device; frames will be sent as fast as the CPU allows")
	}
	return warnings
}
