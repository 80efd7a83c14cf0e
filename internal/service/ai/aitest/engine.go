// Package aitest provides an in-memory ai.Engine for tests.
package aitest

import (
	"sync"
	"sync/atomic"
	"time"

	"crackdetector/internal/service/ai"
)

// InferFunc computes raw outputs from the bound input tensor.
type InferFunc func(input *ai.Tensor) *ai.Outputs

// Engine mimics a runtime instance: Infer copies the input into a single
// bound buffer and reads it back after Delay, so overlapping calls on one
// Engine would corrupt each other. Overlaps are counted.
type Engine struct {
	layout   ai.Layout
	fn       InferFunc
	Delay    time.Duration
	Err      error // returned by Infer when set
	bound    *ai.Tensor
	inUse    int32
	overlaps int32
	calls    int32
	mu       sync.Mutex
	closed   bool
}

// NewEngine returns an engine with the given input size and the SSD output layout.
func NewEngine(height, width, detections int, fn InferFunc) *Engine {
	return &Engine{
		layout: ai.Layout{
			Height:    height,
			Width:     width,
			InputType: ai.InputFloat32,
			Outputs: []ai.TensorInfo{
				{Name: "boxes", Shape: []int{1, detections, 4}},
				{Name: "classes", Shape: []int{1, detections}},
				{Name: "scores", Shape: []int{1, detections}},
			},
			Detections: detections,
		},
		fn: fn,
		bound: &ai.Tensor{
			Shape: [4]int{1, height, width, 3},
			Data:  make([]float32, height*width*3),
		},
	}
}

func (e *Engine) Layout() ai.Layout {
	return e.layout
}

func (e *Engine) Infer(input *ai.Tensor) (*ai.Outputs, error) {
	atomic.AddInt32(&e.calls, 1)
	if !atomic.CompareAndSwapInt32(&e.inUse, 0, 1) {
		atomic.AddInt32(&e.overlaps, 1)
	}
	defer atomic.StoreInt32(&e.inUse, 0)

	copy(e.bound.Data, input.Data)
	if e.Delay > 0 {
		time.Sleep(e.Delay)
	}
	if e.Err != nil {
		return nil, e.Err
	}
	return e.fn(e.bound), nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Overlaps reports how many calls started while another was in flight.
func (e *Engine) Overlaps() int {
	return int(atomic.LoadInt32(&e.overlaps))
}

// Calls reports how many inferences ran.
func (e *Engine) Calls() int {
	return int(atomic.LoadInt32(&e.calls))
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Fixed returns the same raw outputs for every input.
func Fixed(boxes [][4]float32, scores []float32) InferFunc {
	return func(*ai.Tensor) *ai.Outputs {
		out := &ai.Outputs{
			Boxes:   make([][4]float32, len(boxes)),
			Classes: make([]float32, len(scores)),
			Scores:  make([]float32, len(scores)),
		}
		copy(out.Boxes, boxes)
		copy(out.Scores, scores)
		return out
	}
}

// RedKeyed returns one detection whose xmin equals the mean red intensity of
// the input, so every distinct solid-color image maps to a distinct box.
func RedKeyed() InferFunc {
	return func(input *ai.Tensor) *ai.Outputs {
		var sum float32
		pixels := len(input.Data) / 3
		for i := 0; i < pixels; i++ {
			sum += input.Data[i*3]
		}
		red := sum / float32(pixels)
		return &ai.Outputs{
			Boxes:   [][4]float32{{0, red, 1, 1}},
			Classes: []float32{0},
			Scores:  []float32{0.9},
		}
	}
}

// Pool builds an ai.Pool over the given engines.
func Pool(engines ...*Engine) (*ai.Pool, error) {
	next := 0
	return ai.NewPool(len(engines), func() (ai.Engine, error) {
		e := engines[next]
		next++
		return e, nil
	})
}
