// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"heliecho/cmd"
	"heliecho/internal/analysis"
	"heliecho/internal/audio"
	"heliecho/internal/config"
	"heliecho/internal/device"
	"heliecho/internal/driver"
	applog "heliecho/internal/log"
	"heliecho/internal/transport"
	"heliecho/internal/transport/udp"
	"heliecho/internal/tui"
	"heliecho/pkg/build"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

const (
	// websocketInterval caps browser updates at ~30Hz.
	websocketInterval = 33 * time.Millisecond

	// monitorLogFile receives log output while the monitor owns the terminal.
	monitorLogFile = "heliecho.log"
)

// main is the entry point for the light show.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and the config file
//   - Configure logging and validate the configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the capture source and the LED device
//   - Start observers (WebSocket, UDP telemetry, monitor)
//   - Run the output driver and the analysis loop
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or end of input
//   - Blank the strip and stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds run without ldflags; that is not an error.
	buildErr := build.Initialize()

	// Limit OS threads: one for the analysis loop (locked), one for the
	// output driver, one for observers and the UI.
	runtime.GOMAXPROCS(3)

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg == nil {
		return // --help or --version
	}

	configureLogging(cfg)
	if buildErr != nil {
		applog.Debugf("Build: %v", buildErr)
	}
	applog.Infof("%s", build.GetBuildFlags())

	// Handle one-off commands that don't need the light show
	if cfg.Command != "" {
		if err := executeCommand(cfg.Command); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		applog.Fatalf("%v", err)
	}
	for _, warning := range cfg.Warnings() {
		applog.Warnf("Config: %s", warning)
	}

	if err := run(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

// configureLogging applies log_level, with debug taking precedence.
func configureLogging(cfg *config.Config) {
	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		applog.Warnf("Config: Unknown log level %q, using %s", cfg.LogLevel, level)
	}
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
}

// executeCommand handles one-off commands that don't require the light show
// to be running.
func executeCommand(command string) error {
	switch command {
	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)

	case cmd.CommandPorts:
		return device.PrintPorts(os.Stdout)

	case cmd.CommandDevices:
		selection, err := tui.StartDeviceListUI()
		if err != nil {
			return err
		}
		if selection != nil {
			fmt.Printf("Selected %s\n", selection.DeviceName)
			fmt.Printf("Run with: %s %s\n", build.GetBuildFlags().Name, selection.Flags())
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}

// run drives the light show until a signal arrives, the input ends, the
// monitor is closed or a component fails.
func run(cfg *config.Config) error {
	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// PortAudio is only needed for live capture.
	if cfg.Audio.InputFile == "" {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer func() {
			if err := audio.Terminate(); err != nil {
				applog.Warnf("Audio: %v", err)
			}
		}()
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := audio.OpenSource(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audio input: %w", err)
	}
	defer closeAndLog("Audio", source.Close)

	dev, err := device.Open(cfg.Device)
	if err != nil {
		return fmt.Errorf("failed to open LED device: %w", err)
	}
	defer closeAndLog("Device", dev.Close)

	drv, err := driver.New(dev, cfg.Device.LEDCount, cfg.Device.RefreshInterval)
	if err != nil {
		return err
	}

	pipeline, err := analysis.NewPipeline(cfg)
	if err != nil {
		return err
	}

	observers, monitor, err := startObservers(cfg)
	if err != nil {
		return err
	}
	defer closeAndLog("Transport", observers.Close)

	engine, err := audio.NewEngine(cfg, source, pipeline, drv, observers)
	if err != nil {
		return err
	}

	// Start recording if enabled in configuration
	if cfg.Recording.Enabled {
		recorder := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.BlockSize)
		if err := recorder.Start(cfg.Recording.OutputFile); err != nil {
			return err
		}
		engine.SetRecorder(recorder)
		defer func() {
			if err := recorder.Stop(); err != nil {
				applog.Errorf("Recorder: %v", err)
				return
			}
			applog.Infof("Recorder: Saved %s", cfg.Recording.OutputFile)
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// The driver only returns once gctx is done, after blanking the strip.
	g.Go(func() error {
		return drv.Run(gctx)
	})

	// End of input stops everything else.
	g.Go(func() error {
		defer cancel()
		return engine.Run(gctx)
	})

	if monitor != nil {
		g.Go(func() error {
			defer cancel()
			return runMonitor(gctx, monitor, drv, cfg.Device.Port)
		})
	} else {
		applog.Infof("Running; press Ctrl+C to stop")
	}

	err = g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	applog.Infof("Shutdown: %d blocks analysed, %d frames written, %d dropped",
		engine.Blocks(), drv.Stats().Written, drv.Stats().Dropped)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startObservers builds the observer group from the transport settings. The
// returned monitor is nil unless --monitor was given.
func startObservers(cfg *config.Config) (*transport.Group, *tui.MonitorTransport, error) {
	group := transport.NewGroup()

	if cfg.Debug {
		group.Add(transport.NewLoggingTransport())
	}

	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, websocketInterval)
		if err := ws.Start(); err != nil {
			group.Close()
			return nil, nil, err
		}
		applog.Infof("Transport: WebSocket monitor on ws://%s%s", ws.Addr(), transport.WebSocketPath)
		group.Add(ws)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			group.Close()
			return nil, nil, err
		}
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			group.Close()
			return nil, nil, err
		}
		publisher.Start()
		group.Add(publisher)
	}

	var monitor *tui.MonitorTransport
	if cfg.Monitor {
		monitor = tui.NewMonitorTransport()
		group.Add(monitor)
	}

	applog.Debugf("Transport: %d observers", group.Len())
	return group, monitor, nil
}

// runMonitor runs the terminal monitor with logging redirected to a file, so
// log lines do not tear the display. It returns when the user quits or ctx is
// done.
func runMonitor(ctx context.Context, monitor *tui.MonitorTransport, drv *driver.Driver, port string) error {
	logFile, err := tea.LogToFile(monitorLogFile, "")
	if err != nil {
		return fmt.Errorf("failed to open monitor log: %w", err)
	}
	applog.SetOutput(logFile)
	defer func() {
		applog.SetOutput(os.Stderr)
		logFile.Close()
	}()

	go func() {
		<-ctx.Done()
		monitor.Close()
	}()

	return tui.RunMonitor(monitor, drv.Stats, port)
}

// closeAndLog runs a deferred close and logs its error.
func closeAndLog(component string, fn func() error) {
	if err := fn(); err != nil {
		applog.Warnf("%s: Close failed: %v", component, err)
	}
}
