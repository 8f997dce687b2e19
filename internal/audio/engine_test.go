// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"heliecho/internal/adalight"
	"heliecho/internal/analysis"
	"heliecho/internal/color"
	"heliecho/internal/config"
	"heliecho/internal/driver"
	"heliecho/pkg/utils"
)

// fakeSource replays a fixed list of blocks and then returns err.
type fakeSource struct {
	blocks [][]float32
	err    error
	reads  int
	closed bool
}

func (s *fakeSource) ReadBlock(block []float32) error {
	if s.reads >= len(s.blocks) {
		return s.err
	}
	copy(block, s.blocks[s.reads])
	s.reads++
	return nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// recordingSink stores every submitted colour.
type recordingSink struct {
	mu     sync.Mutex
	colors []color.RGB
	err    error
}

func (s *recordingSink) Submit(ctx context.Context, c color.RGB) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.colors = append(s.colors, c)
	s.mu.Unlock()
	return nil
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Audio.BlockSize = 1024
	cfg.Audio.SampleRate = testSampleRate
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, src Source, sink ColorSink, observers *utils.MockTransport) *Engine {
	t.Helper()
	p, err := analysis.NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	var e *Engine
	if observers == nil {
		e, err = NewEngine(cfg, src, p, sink, nil)
	} else {
		e, err = NewEngine(cfg, src, p, sink, observers)
	}
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	return e
}

func TestEngineRunsUntilInputExhausted(t *testing.T) {
	cfg := testConfig()
	src := &fakeSource{err: io.EOF}
	for range 3 {
		src.blocks = append(src.blocks, utils.GenerateStereoSine(cfg.Audio.BlockSize, testSampleRate, 140.625, 0.8))
	}
	sink := &recordingSink{}
	observers := &utils.MockTransport{}

	e := newTestEngine(t, cfg, src, sink, observers)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if e.Blocks() != 3 || len(sink.colors) != 3 {
		t.Fatalf("processed %d blocks, submitted %d colours, want 3/3", e.Blocks(), len(sink.colors))
	}
	if sink.colors[0].R == 0 {
		t.Errorf("bass sine should light red, got %+v", sink.colors[0])
	}

	count, last := observers.Sent()
	if count != 3 {
		t.Errorf("observers got %d snapshots, want 3", count)
	}
	snap, ok := last.(analysis.Snapshot)
	if !ok {
		t.Fatalf("observer payload is %T, want analysis.Snapshot", last)
	}
	if snap.Sequence != 3 || snap.Color != sink.colors[2] {
		t.Errorf("last snapshot = %+v, want sequence 3 colour %+v", snap, sink.colors[2])
	}
}

func TestEngineGateBlacksOutQuietInput(t *testing.T) {
	cfg := testConfig()
	cfg.Audio.GateThreshold = 0.5
	src := &fakeSource{
		blocks: [][]float32{utils.GenerateStereoSine(cfg.Audio.BlockSize, testSampleRate, 140.625, 0.3)},
		err:    io.EOF,
	}
	sink := &recordingSink{}

	e := newTestEngine(t, cfg, src, sink, nil)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(sink.colors) != 1 || sink.colors[0] != color.Black {
		t.Errorf("gated block colours = %+v, want one black", sink.colors)
	}
}

func TestEngineCaptureErrorIsReturned(t *testing.T) {
	cfg := testConfig()
	boom := errors.New("device unplugged")
	e := newTestEngine(t, cfg, &fakeSource{err: boom}, &recordingSink{}, nil)

	if err := e.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run = %v, want wrapped %v", err, boom)
	}
}

func TestEngineFailsWhenDriverStopped(t *testing.T) {
	cfg := testConfig()
	d, err := driver.New(&utils.MockWriter{}, cfg.Device.LEDCount, time.Millisecond)
	if err != nil {
		t.Fatalf("driver.New error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("driver Run error: %v", err)
	}

	src := &fakeSource{blocks: [][]float32{make([]float32, 2*cfg.Audio.BlockSize)}, err: io.EOF}
	e := newTestEngine(t, cfg, src, d, nil)
	if err := e.Run(context.Background()); !errors.Is(err, driver.ErrStopped) {
		t.Errorf("Run = %v, want wrapped driver.ErrStopped", err)
	}
}

func TestEngineStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	src := &fakeSource{blocks: [][]float32{make([]float32, 2*cfg.Audio.BlockSize)}, err: io.EOF}
	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{err: context.Canceled}
	cancel()

	e := newTestEngine(t, cfg, src, sink, nil)
	if err := e.Run(ctx); err != nil {
		t.Errorf("Run after cancel = %v, want nil", err)
	}
}

func TestEngineWithDriver(t *testing.T) {
	cfg := testConfig()
	w := &utils.MockWriter{}
	d, err := driver.New(w, 8, time.Millisecond)
	if err != nil {
		t.Fatalf("driver.New error: %v", err)
	}

	// One loud bass block lights the strip, then silence must fade it out.
	binHz := cfg.Audio.SampleRate / float64(cfg.Audio.BlockSize)
	src := &fakeSource{err: io.EOF}
	src.blocks = append(src.blocks, utils.GenerateStereoSine(cfg.Audio.BlockSize, cfg.Audio.SampleRate, 4*binHz, 1))
	for range 30 {
		src.blocks = append(src.blocks, make([]float32, 2*cfg.Audio.BlockSize))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	driverDone := make(chan error, 1)
	go func() { driverDone <- d.Run(ctx) }()

	e := newTestEngine(t, cfg, src, d, nil)
	if err := e.Run(ctx); err != nil {
		t.Fatalf("engine Run error: %v", err)
	}
	cancel()
	if err := <-driverDone; err != nil {
		t.Fatalf("driver Run error: %v", err)
	}

	if s := d.Stats(); s.Written < 31 {
		t.Fatalf("driver wrote %d frames, want at least 31", s.Written)
	}

	lit := false
	for _, frame := range w.Frames {
		if !allZero(frame[adalight.HeaderSize:]) {
			lit = true
			break
		}
	}
	if !lit {
		t.Fatal("loud block never lit the strip")
	}

	// The last frame is the shutdown blank; the one before it shows where
	// the silence left the strip.
	settled := w.Frames[len(w.Frames)-2]
	if !allZero(settled[adalight.HeaderSize:]) {
		t.Errorf("silence left the strip at % x", settled[adalight.HeaderSize:adalight.HeaderSize+3])
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func TestEngineRecordsBeforeGate(t *testing.T) {
	cfg := testConfig()
	cfg.Audio.GateThreshold = 0.9
	quiet := utils.GenerateStereoSine(cfg.Audio.BlockSize, testSampleRate, 440, 0.2)
	src := &fakeSource{blocks: [][]float32{quiet}, err: io.EOF}

	filename := filepath.Join(t.TempDir(), "tee.wav")
	rec := NewRecorder(testSampleRate, cfg.Audio.BlockSize)
	if err := rec.Start(filename); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	e := newTestEngine(t, cfg, src, &recordingSink{}, nil)
	e.SetRecorder(rec)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	replay, err := OpenWavSource(filename, testSampleRate, false, false)
	if err != nil {
		t.Fatalf("OpenWavSource error: %v", err)
	}
	defer replay.Close()
	block := make([]float32, len(quiet))
	if err := replay.ReadBlock(block); err != nil {
		t.Fatalf("ReadBlock error: %v", err)
	}
	if Peak(block) < 0.19 {
		t.Errorf("recorded peak %g, want the ungated signal", Peak(block))
	}
}

func TestNewEngineRequiresParts(t *testing.T) {
	if _, err := NewEngine(testConfig(), nil, nil, nil, nil); err == nil {
		t.Error("expected error")
	}
}
