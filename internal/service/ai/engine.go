package ai

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrDecode is returned when uploaded bytes are not a decodable image.
	ErrDecode = errors.New("failed to decode image")
	// ErrModelLayout is returned when the model tensors do not match the expected layout.
	ErrModelLayout = errors.New("model layout mismatch")
	// ErrPoolClosed is returned when an engine is requested after shutdown.
	ErrPoolClosed = errors.New("engine pool closed")
	// ErrUnavailable is returned for a native backend left out of the build
	// with the notflite or noopencv tags.
	ErrUnavailable = errors.New("not available in this build")
)

// InputType is the element type of the model input tensor.
type InputType int

const (
	InputFloat32 InputType = iota
	InputUint8
)

func (t InputType) String() string {
	switch t {
	case InputFloat32:
		return "float32"
	case InputUint8:
		return "uint8"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// TensorInfo describes one model tensor as reported by the runtime.
type TensorInfo struct {
	Name  string
	Shape []int
}

// Elements returns the number of elements in the tensor.
func (t TensorInfo) Elements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Layout is the fixed input/output contract of a loaded model.
type Layout struct {
	Height        int
	Width         int
	InputType     InputType
	ChannelsFirst bool
	Outputs       []TensorInfo
	Detections    int // rows per output tensor
}

// Tensor is a single-image NHWC batch with values normalized to [0,1].
type Tensor struct {
	Shape [4]int // batch, height, width, channels
	Data  []float32
}

// Outputs holds one inference result copied out of the runtime buffers.
type Outputs struct {
	Boxes   [][4]float32 // ymin, xmin, ymax, xmax
	Classes []float32
	Scores  []float32
}

// Engine is one loaded model instance with its own tensor bindings.
// An Engine must not be used by two goroutines at the same time.
type Engine interface {
	Layout() Layout
	Infer(input *Tensor) (*Outputs, error)
	Close() error
}

// OutputMapping assigns a semantic role to each model output index.
type OutputMapping struct {
	Boxes   int
	Classes int // -1 when the model has no class output
	Scores  int
}

// DefaultOutputMapping is the SSD convention: boxes, classes, scores.
func DefaultOutputMapping() OutputMapping {
	return OutputMapping{Boxes: 0, Classes: 1, Scores: 2}
}

// Validate checks the mapping against the model outputs and returns the number
// of detection rows.
func (m OutputMapping) Validate(outputs []TensorInfo) (int, error) {
	count := len(outputs)
	if m.Boxes < 0 || m.Boxes >= count {
		return 0, fmt.Errorf("%w: boxes index %d out of range (model has %d outputs)", ErrModelLayout, m.Boxes, count)
	}
	if m.Scores < 0 || m.Scores >= count {
		return 0, fmt.Errorf("%w: scores index %d out of range (model has %d outputs)", ErrModelLayout, m.Scores, count)
	}
	if m.Classes < -1 || m.Classes >= count {
		return 0, fmt.Errorf("%w: classes index %d out of range (model has %d outputs)", ErrModelLayout, m.Classes, count)
	}
	if m.Boxes == m.Scores || m.Boxes == m.Classes || m.Scores == m.Classes {
		return 0, fmt.Errorf("%w: output indices must be distinct (boxes=%d classes=%d scores=%d)",
			ErrModelLayout, m.Boxes, m.Classes, m.Scores)
	}

	boxes := outputs[m.Boxes]
	if len(boxes.Shape) == 0 || boxes.Shape[len(boxes.Shape)-1] != 4 {
		return 0, fmt.Errorf("%w: boxes output %v must end with 4 coordinates", ErrModelLayout, boxes.Shape)
	}
	n := boxes.Elements() / 4
	if n == 0 {
		return 0, fmt.Errorf("%w: boxes output %v is empty", ErrModelLayout, boxes.Shape)
	}

	if got := outputs[m.Scores].Elements(); got != n {
		return 0, fmt.Errorf("%w: scores output %v has %d values, expected %d",
			ErrModelLayout, outputs[m.Scores].Shape, got, n)
	}
	if m.Classes >= 0 {
		if got := outputs[m.Classes].Elements(); got != n {
			return 0, fmt.Errorf("%w: classes output %v has %d values, expected %d",
				ErrModelLayout, outputs[m.Classes].Shape, got, n)
		}
	}
	return n, nil
}

// decode copies the mapped raw output buffers into Outputs.
func (m OutputMapping) decode(raw [][]float32, n int) *Outputs {
	out := &Outputs{
		Boxes:  make([][4]float32, n),
		Scores: make([]float32, n),
	}

	boxes := raw[m.Boxes]
	for i := 0; i < n; i++ {
		copy(out.Boxes[i][:], boxes[i*4:i*4+4])
	}
	copy(out.Scores, raw[m.Scores][:n])

	if m.Classes >= 0 {
		out.Classes = make([]float32, n)
		copy(out.Classes, raw[m.Classes][:n])
	}
	return out
}

// validateInput checks an NHWC or NCHW RGB input shape and fills the layout size.
func validateInput(shape []int, layout *Layout) error {
	if len(shape) != 4 || shape[0] != 1 {
		return fmt.Errorf("%w: input shape %v, expected [1 H W 3]", ErrModelLayout, shape)
	}
	switch {
	case shape[3] == 3:
		layout.Height, layout.Width = shape[1], shape[2]
	case shape[1] == 3:
		layout.Height, layout.Width = shape[2], shape[3]
		layout.ChannelsFirst = true
	default:
		return fmt.Errorf("%w: input shape %v has no 3-channel axis", ErrModelLayout, shape)
	}
	if layout.Height <= 0 || layout.Width <= 0 {
		return fmt.Errorf("%w: input shape %v has no fixed size", ErrModelLayout, shape)
	}
	return nil
}

// EngineOptions configures how engines are opened.
type EngineOptions struct {
	Threads        int
	Mapping        OutputMapping
	OnnxRuntimeLib string
}

// OpenEngine loads one engine, picking the runtime from the model file extension.
func OpenEngine(modelPath string, opts EngineOptions) (Engine, error) {
	switch strings.ToLower(filepath.Ext(modelPath)) {
	case ".tflite":
		return openTFLite(modelPath, opts)
	case ".onnx":
		if err := InitONNXRuntime(opts.OnnxRuntimeLib); err != nil {
			return nil, err
		}
		engine, err := NewONNXEngine(modelPath, opts.Threads, opts.Mapping)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unsupported model format: %s", modelPath)
	}
}
