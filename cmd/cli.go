// SPDX-License-Identifier: MIT
package cmd

import (
	"time"

	"heliecho/internal/config"
	"heliecho/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands that do not start the light show.
const (
	CommandList    = "list"
	CommandPorts   = "ports"
	CommandDevices = "devices"
)

// flagValues receives the raw command line values. Only flags the user
// actually set are copied into the loaded configuration, so a config file
// value is never clobbered by a flag default.
type flagValues struct {
	configFile string

	device     int
	sampleRate float64
	blockSize  int
	lowLatency bool
	input      string
	loop       bool
	gate       float64

	bassCutoff  float64
	highCutoff  float64
	midMargin   float64
	referenceDB float64
	window      string

	port    string
	leds    int
	refresh time.Duration

	record bool
	output string

	websocket     bool
	websocketAddr string
	udp           bool
	udpTarget     string

	monitor  bool
	verbose  bool
	logLevel string
}

// ParseArgs parses args (without the program name) into a configuration.
// The YAML file and ENV_* overrides are applied first and flags last. A nil
// config with a nil error means cobra already handled the invocation, for
// example --help or --version.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		v       flagValues
		options *config.Config
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(v.configFile)
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), &v, cfg)
			options = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	command := func(name, short string) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: short,
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				options.Command = name
			},
		}
	}
	rootCmd.AddCommand(
		command(CommandList, "List available audio devices"),
		command(CommandPorts, "List serial ports that may host an LED controller"),
		command(CommandDevices, "Browse audio devices interactively and print the matching flags"),
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&v.configFile, "config", "",
		"Path to a YAML config file (default ./"+config.DefaultConfigFile+" if present)")

	// Audio Configuration
	flags.IntVarP(&v.device, "device", "d", config.DefaultInputDevice,
		"Input device ID. Use 'list' command to see available devices.")
	flags.Float64VarP(&v.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&v.blockSize, "block-size", "b", config.DefaultBlockSize,
		"Frames per analysed block, a power of two (affects latency and resolution)")
	flags.BoolVarP(&v.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	flags.StringVarP(&v.input, "input", "i", "",
		"Replay a stereo WAV file instead of capturing live audio")
	flags.BoolVar(&v.loop, "loop", false,
		"Loop the input file")
	flags.Float64Var(&v.gate, "gate", config.DefaultGateThreshold,
		"Noise gate threshold as a fraction of full scale (0 disables)")

	// Analysis Configuration
	flags.Float64Var(&v.bassCutoff, "bass-cutoff", config.DefaultBassCutoff,
		"Bass/mid crossover (Hz)")
	flags.Float64Var(&v.highCutoff, "high-cutoff", config.DefaultHighCutoff,
		"Mid/high crossover (Hz)")
	flags.Float64Var(&v.midMargin, "mid-margin", config.DefaultMidMargin,
		"Overlap of the mid band into its neighbours (Hz)")
	flags.Float64Var(&v.referenceDB, "reference-db", config.DefaultReferenceDB,
		"Peak level (dB) that maps to full brightness")
	flags.StringVar(&v.window, "window", config.DefaultFFTWindow,
		"FFT window: none, hann, hamming, blackman, blackmannuttall, bartletthann, lanczos, nuttall")

	// Device Configuration
	flags.StringVarP(&v.port, "port", "p", config.DefaultPort,
		"Serial port of the LED controller, or udp://host:port")
	flags.IntVarP(&v.leds, "leds", "n", config.DefaultLEDCount,
		"Number of LEDs on the strip")
	flags.DurationVar(&v.refresh, "refresh", 0,
		"Minimum time between frames (0 writes as fast as the link allows)")

	// Recording Configuration
	flags.BoolVarP(&v.record, "record", "r", false,
		"Record the captured audio to a WAV file")
	flags.StringVarP(&v.output, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Observer Configuration
	flags.BoolVar(&v.websocket, "websocket", false,
		"Broadcast analysis snapshots over WebSocket")
	flags.StringVar(&v.websocketAddr, "websocket-addr", config.DefaultWebSocketAddress,
		"WebSocket listen address")
	flags.BoolVar(&v.udp, "udp", false,
		"Publish binary telemetry over UDP")
	flags.StringVar(&v.udpTarget, "udp-target", config.DefaultUDPTargetAddress,
		"UDP telemetry target host:port")
	flags.BoolVarP(&v.monitor, "monitor", "m", false,
		"Show a live colour monitor in the terminal")

	// Debug Configuration
	flags.BoolVarP(&v.verbose, "verbose", "v", false,
		"Show verbose output")
	flags.StringVar(&v.logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(fs *pflag.FlagSet, v *flagValues, cfg *config.Config) {
	set := fs.Changed

	if set("device") {
		cfg.Audio.InputDevice = v.device
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = v.sampleRate
	}
	if set("block-size") {
		cfg.Audio.BlockSize = v.blockSize
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = v.lowLatency
	}
	if set("input") {
		cfg.Audio.InputFile = v.input
	}
	if set("loop") {
		cfg.Audio.LoopInput = v.loop
	}
	if set("gate") {
		cfg.Audio.GateThreshold = v.gate
	}

	if set("bass-cutoff") {
		cfg.Analysis.BassCutoff = v.bassCutoff
	}
	if set("high-cutoff") {
		cfg.Analysis.HighCutoff = v.highCutoff
	}
	if set("mid-margin") {
		cfg.Analysis.MidMargin = v.midMargin
	}
	if set("reference-db") {
		cfg.Analysis.ReferenceDB = v.referenceDB
	}
	if set("window") {
		cfg.Analysis.FFTWindow = v.window
	}

	if set("port") {
		cfg.Device.Port = v.port
	}
	if set("leds") {
		cfg.Device.LEDCount = v.leds
	}
	if set("refresh") {
		cfg.Device.RefreshInterval = v.refresh
	}

	if set("record") {
		cfg.Recording.Enabled = v.record
	}
	if set("output") {
		cfg.Recording.OutputFile = v.output
	}
	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	if set("websocket") {
		cfg.Transport.WebSocketEnabled = v.websocket
	}
	if set("websocket-addr") {
		cfg.Transport.WebSocketAddress = v.websocketAddr
	}
	if set("udp") {
		cfg.Transport.UDPEnabled = v.udp
	}
	if set("udp-target") {
		cfg.Transport.UDPTargetAddress = v.udpTarget
	}

	if set("verbose") {
		cfg.Debug = v.verbose
	}
	if set("log-level") {
		cfg.LogLevel = v.logLevel
	}
	cfg.Monitor = v.monitor
}
