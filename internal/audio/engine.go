// SPDX-License-Identifier: MIT
/*
Package audio captures stereo audio and runs the analysis loop:

	Source -> [Recorder] -> [Gate] -> analysis.BlockProcessor -> ColorSink
	                                                           -> observers

Capture sources are a blocking PortAudio stream or a paced WAV replay. The
loop owns one pre-allocated block that is overwritten in place every
iteration. The colour handoff is a rendezvous: the loop waits until the
output driver takes the colour, so at most one request is ever in flight.
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"heliecho/internal/analysis"
	"heliecho/internal/color"
	"heliecho/internal/config"
	applog "heliecho/internal/log"
	"heliecho/internal/transport"
)

// ColorSink receives the requested colour of each block. Submit blocks until
// the colour is taken or ctx is done.
type ColorSink interface {
	Submit(ctx context.Context, c color.RGB) error
}

type Engine struct {
	source    Source
	processor analysis.BlockProcessor
	sink      ColorSink
	observers transport.Transport

	gate     *Gate
	recorder *Recorder

	block  []float32
	blocks uint64
}

// NewEngine wires a source, processor and sink into an analysis loop.
// observers may be nil.
func NewEngine(cfg *config.Config, source Source, processor analysis.BlockProcessor, sink ColorSink, observers transport.Transport) (*Engine, error) {
	if source == nil || processor == nil || sink == nil {
		return nil, errors.New("engine needs a source, a processor and a sink")
	}

	e := &Engine{
		source:    source,
		processor: processor,
		sink:      sink,
		observers: observers,
		gate:      NewGate(cfg.Audio.GateThreshold),
		block:     make([]float32, cfg.Audio.BlockSize*config.Channels),
	}
	if e.gate.Enabled() {
		applog.Infof("Audio: Noise gate at %.4f of full scale", e.gate.Threshold())
	}
	return e, nil
}

// Gate returns the engine's noise gate.
func (e *Engine) Gate() *Gate {
	return e.gate
}

// SetRecorder tees every captured block, before gating, into r.
func (e *Engine) SetRecorder(r *Recorder) {
	e.recorder = r
}

// Blocks returns the number of blocks processed so far. Only meaningful
// after Run has returned.
func (e *Engine) Blocks() uint64 {
	return e.blocks
}

// Run is the analysis loop. It returns nil when ctx is cancelled or a finite
// source is exhausted. Capture errors and a failed handoff to the output
// driver are returned wrapped.
func (e *Engine) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	applog.Infof("Audio: Analysis loop started (%d frames per block)", len(e.block)/config.Channels)
	defer func() {
		applog.Infof("Audio: Analysis loop stopped after %d blocks", e.blocks)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := e.source.ReadBlock(e.block); err != nil {
			if errors.Is(err, io.EOF) {
				applog.Infof("Audio: Input exhausted")
				return nil
			}
			return fmt.Errorf("capture failed: %w", err)
		}

		if snap, err := e.process(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("handoff to output driver failed after %d blocks: %w", snap.Sequence, err)
		}
	}
}

// process runs one block through the chain and hands the colour on.
func (e *Engine) process(ctx context.Context) (analysis.Snapshot, error) {
	if e.recorder != nil {
		e.recorder.Write(e.block)
	}
	e.gate.Apply(e.block)

	snap := e.processor.Process(e.block)
	e.blocks++

	if err := e.sink.Submit(ctx, snap.Color); err != nil {
		return snap, err
	}

	if e.observers != nil {
		if err := e.observers.Send(snap); err != nil {
			applog.Debugf("Audio: Observer error: %v", err)
		}
	}
	return snap, nil
}
