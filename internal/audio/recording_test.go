// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"heliecho/pkg/utils"
)

const (
	testSampleRate = 48000.0
	testFrameSize  = 256
)

// recordBlocks writes blocks to a fresh WAV file and returns its path.
func recordBlocks(t *testing.T, blocks ...[]float32) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "capture.wav")

	r := NewRecorder(testSampleRate, testFrameSize)
	if err := r.Start(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	for _, b := range blocks {
		r.Write(b)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	return filename
}

func TestRecorderStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	r := NewRecorder(testSampleRate, testFrameSize)

	if r.Recording() {
		t.Fatal("new recorder should be idle")
	}
	if err := r.Stop(); err != nil {
		t.Errorf("Stop on idle recorder: %v", err)
	}

	if err := r.Start(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if !r.Recording() {
		t.Error("Recorder should be in recording state")
	}
	if err := r.Start(filename); err == nil {
		t.Error("second Start should fail")
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if r.Recording() {
		t.Error("Recorder should not be in recording state after stopping")
	}
	if _, err := os.Stat(filename); err != nil {
		t.Errorf("Recording file was not created: %v", err)
	}
}

func TestRecorderStartBadPath(t *testing.T) {
	r := NewRecorder(testSampleRate, testFrameSize)
	if err := r.Start(filepath.Join(t.TempDir(), "missing", "x.wav")); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestRecordAndReplay(t *testing.T) {
	first := utils.GenerateStereoSine(testFrameSize, testSampleRate, 440, 0.5)
	second := utils.GenerateComplexWave(testFrameSize, testSampleRate)
	filename := recordBlocks(t, first, second)

	src, err := OpenWavSource(filename, testSampleRate, false, false)
	if err != nil {
		t.Fatalf("OpenWavSource error: %v", err)
	}
	defer src.Close()

	block := make([]float32, 2*testFrameSize)
	for i, want := range [][]float32{first, second} {
		if err := src.ReadBlock(block); err != nil {
			t.Fatalf("ReadBlock %d error: %v", i, err)
		}
		for j := range want {
			if math.Abs(float64(block[j]-want[j])) > 2.0/32767 {
				t.Fatalf("block %d sample %d = %g, want %g", i, j, block[j], want[j])
			}
		}
	}

	if err := src.ReadBlock(block); !errors.Is(err, io.EOF) {
		t.Errorf("ReadBlock past end = %v, want io.EOF", err)
	}
}

func TestReplayPadsPartialBlock(t *testing.T) {
	half := utils.GenerateStereoSine(testFrameSize/2, testSampleRate, 440, 0.5)
	filename := recordBlocks(t, half)

	src, err := OpenWavSource(filename, testSampleRate, false, false)
	if err != nil {
		t.Fatalf("OpenWavSource error: %v", err)
	}
	defer src.Close()

	block := make([]float32, 2*testFrameSize)
	for i := range block {
		block[i] = 1 // Stale data that must be cleared.
	}
	if err := src.ReadBlock(block); err != nil {
		t.Fatalf("ReadBlock error: %v", err)
	}
	for i := len(half); i < len(block); i++ {
		if block[i] != 0 {
			t.Fatalf("sample %d = %g, want zero padding", i, block[i])
		}
	}
	if err := src.ReadBlock(block); !errors.Is(err, io.EOF) {
		t.Errorf("ReadBlock past end = %v, want io.EOF", err)
	}
}

func TestReplayLoops(t *testing.T) {
	sine := utils.GenerateStereoSine(testFrameSize, testSampleRate, 1000, 0.25)
	filename := recordBlocks(t, sine)

	src, err := OpenWavSource(filename, testSampleRate, true, false)
	if err != nil {
		t.Fatalf("OpenWavSource error: %v", err)
	}
	defer src.Close()

	block := make([]float32, 2*testFrameSize)
	for i := range 5 {
		if err := src.ReadBlock(block); err != nil {
			t.Fatalf("ReadBlock %d error: %v", i, err)
		}
		if math.Abs(float64(block[2]-sine[2])) > 2.0/32767 {
			t.Fatalf("pass %d starts at %g, want %g", i, block[2], sine[2])
		}
	}
}

func TestOpenWavSourceRejects(t *testing.T) {
	filename := recordBlocks(t, make([]float32, 2*testFrameSize))

	if _, err := OpenWavSource(filename, 44100, false, false); err == nil {
		t.Error("expected sample rate mismatch error")
	}
	if _, err := OpenWavSource(filepath.Join(t.TempDir(), "nope.wav"), testSampleRate, false, false); err == nil {
		t.Error("expected error for missing file")
	}

	notWav := filepath.Join(t.TempDir(), "text.wav")
	if err := os.WriteFile(notWav, []byte("definitely not RIFF data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenWavSource(notWav, testSampleRate, false, false); err == nil {
		t.Error("expected error for invalid WAV")
	}
}

func TestToPCM16(t *testing.T) {
	tests := []struct {
		in   float32
		want int
	}{
		{0, 0},
		{1, 32767},
		{1.5, 32767},
		{-1, -32768},
		{-2, -32768},
		{0.5, 16383},
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		if got := toPCM16(tt.in); got != tt.want {
			t.Errorf("toPCM16(%g) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
