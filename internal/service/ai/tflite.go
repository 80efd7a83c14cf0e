//go:build !notflite

package ai

import (
	"fmt"
	"os"

	"github.com/mattn/go-tflite"
)

// TFLiteEngine runs a TensorFlow Lite model through one interpreter.
type TFLiteEngine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	mapping     OutputMapping
	layout      Layout
}

func openTFLite(modelPath string, opts EngineOptions) (Engine, error) {
	engine, err := NewTFLiteEngine(modelPath, opts.Threads, opts.Mapping)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// NewTFLiteEngine loads the model, allocates its tensors and validates the
// input shape and output mapping.
func NewTFLiteEngine(modelPath string, threads int, mapping OutputMapping) (*TFLiteEngine, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	e := &TFLiteEngine{mapping: mapping}

	e.model = tflite.NewModelFromFile(modelPath)
	if e.model == nil {
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}

	e.options = tflite.NewInterpreterOptions()
	e.options.SetNumThread(threads)

	e.interpreter = tflite.NewInterpreter(e.model, e.options)
	if e.interpreter == nil {
		e.Close()
		return nil, fmt.Errorf("failed to create interpreter for %s", modelPath)
	}

	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		e.Close()
		return nil, fmt.Errorf("failed to allocate tensors: status %d", status)
	}

	if err := e.readLayout(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// readLayout queries the tensors once and caches the layout.
func (e *TFLiteEngine) readLayout() error {
	if count := e.interpreter.GetInputTensorCount(); count != 1 {
		return fmt.Errorf("%w: expected 1 input tensor, got %d", ErrModelLayout, count)
	}

	input := e.interpreter.GetInputTensor(0)
	switch input.Type() {
	case tflite.Float32:
		e.layout.InputType = InputFloat32
	case tflite.UInt8:
		e.layout.InputType = InputUint8
	default:
		return fmt.Errorf("%w: unsupported input type %v", ErrModelLayout, input.Type())
	}

	if err := validateInput(tensorShape(input), &e.layout); err != nil {
		return err
	}
	if e.layout.ChannelsFirst {
		return fmt.Errorf("%w: tflite input must be NHWC", ErrModelLayout)
	}

	count := e.interpreter.GetOutputTensorCount()
	e.layout.Outputs = make([]TensorInfo, count)
	for i := 0; i < count; i++ {
		out := e.interpreter.GetOutputTensor(i)
		e.layout.Outputs[i] = TensorInfo{Name: out.Name(), Shape: tensorShape(out)}
	}

	n, err := e.mapping.Validate(e.layout.Outputs)
	if err != nil {
		return err
	}
	for _, idx := range []int{e.mapping.Boxes, e.mapping.Classes, e.mapping.Scores} {
		if idx >= 0 && e.interpreter.GetOutputTensor(idx).Type() != tflite.Float32 {
			return fmt.Errorf("%w: output %d is not float32", ErrModelLayout, idx)
		}
	}
	e.layout.Detections = n
	return nil
}

// Layout returns the cached model layout.
func (e *TFLiteEngine) Layout() Layout {
	return e.layout
}

// Infer binds the input, invokes the interpreter and copies the mapped outputs.
func (e *TFLiteEngine) Infer(input *Tensor) (*Outputs, error) {
	tensor := e.interpreter.GetInputTensor(0)

	switch e.layout.InputType {
	case InputFloat32:
		dst := tensor.Float32s()
		if len(dst) != len(input.Data) {
			return nil, fmt.Errorf("input size %d, model expects %d", len(input.Data), len(dst))
		}
		copy(dst, input.Data)
	case InputUint8:
		dst := tensor.UInt8s()
		if len(dst) != len(input.Data) {
			return nil, fmt.Errorf("input size %d, model expects %d", len(input.Data), len(dst))
		}
		for i, v := range input.Data {
			dst[i] = uint8(v*255 + 0.5)
		}
	}

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("interpreter invoke failed: status %d", status)
	}

	raw := make([][]float32, len(e.layout.Outputs))
	for _, idx := range []int{e.mapping.Boxes, e.mapping.Classes, e.mapping.Scores} {
		if idx >= 0 {
			raw[idx] = e.interpreter.GetOutputTensor(idx).Float32s()
		}
	}
	return e.mapping.decode(raw, e.layout.Detections), nil
}

// Close releases the interpreter, its options and the model.
func (e *TFLiteEngine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}

func tensorShape(t *tflite.Tensor) []int {
	shape := make([]int, t.NumDims())
	for i := range shape {
		shape[i] = t.Dim(i)
	}
	return shape
}
