// Package trace persists optimizer steps as zstd-compressed JSON lines.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/GoSim-25-26J-441/scene-synth/internal/anneal"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
)

// Writer appends one JSON line per step
type Writer struct {
	mu    sync.Mutex
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	count int
	err   error
}

// Create opens path for writing, creating parent directories
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

// Write appends one step. After the first failure every call returns that error.
func (w *Writer) Write(step anneal.StepResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.w == nil {
		return fmt.Errorf("trace writer closed")
	}
	b, err := json.Marshal(step)
	if err != nil {
		w.err = err
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		w.err = err
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		w.err = err
		return err
	}
	w.count++
	return nil
}

// Hook adapts the writer to an optimizer step hook. Write failures are
// logged once and kept for Err.
func (w *Writer) Hook() anneal.StepHook {
	return func(step anneal.StepResult) {
		hadErr := w.Err() != nil
		if err := w.Write(step); err != nil && !hadErr {
			logger.Error("failed to write trace step", "iteration", step.Iteration, "error", err)
		}
	}
}

// Count returns the number of steps written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Err returns the first write error
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close flushes the compressed stream and closes the file
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	var firstErr error
	if err := w.w.Flush(); err != nil {
		firstErr = err
	}
	if err := w.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	w.w, w.enc, w.f = nil, nil, nil
	return firstErr
}

// Read decodes every step from a compressed trace stream
func Read(r io.Reader) ([]anneal.StepResult, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var steps []anneal.StepResult
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var step anneal.StepResult
		if err := json.Unmarshal(sc.Bytes(), &step); err != nil {
			return steps, fmt.Errorf("trace line %d: %w", line, err)
		}
		steps = append(steps, step)
	}
	if err := sc.Err(); err != nil {
		return steps, err
	}
	return steps, nil
}

// ReadFile decodes a trace file
func ReadFile(path string) ([]anneal.StepResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
