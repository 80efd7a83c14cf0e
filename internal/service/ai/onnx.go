package ai

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	onnxInit    sync.Once
	onnxInitErr error
)

// InitONNXRuntime loads the onnxruntime shared library once per process.
func InitONNXRuntime(libPath string) error {
	onnxInit.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			onnxInitErr = fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	})
	return onnxInitErr
}

// ShutdownONNXRuntime releases the onnxruntime environment if it was started.
func ShutdownONNXRuntime() {
	if ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

// ONNXEngine runs an ONNX model through one session with preallocated tensors.
type ONNXEngine struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
	mapping OutputMapping
	layout  Layout
	chw     []float32
}

// NewONNXEngine inspects the model, validates it and binds fixed-size tensors.
func NewONNXEngine(modelPath string, threads int, mapping OutputMapping) (*ONNXEngine, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model %s: %w", modelPath, err)
	}
	if len(inputsInfo) != 1 {
		return nil, fmt.Errorf("%w: expected 1 input tensor, got %d", ErrModelLayout, len(inputsInfo))
	}
	if inputsInfo[0].DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("%w: onnx input must be float32", ErrModelLayout)
	}

	e := &ONNXEngine{mapping: mapping, layout: Layout{InputType: InputFloat32}}

	inputShape, err := fixedShape(inputsInfo[0].Dimensions)
	if err != nil {
		return nil, err
	}
	if err := validateInput(inputShape, &e.layout); err != nil {
		return nil, err
	}

	e.layout.Outputs = make([]TensorInfo, len(outputsInfo))
	for i, info := range outputsInfo {
		if info.DataType != ort.TensorElementDataTypeFloat {
			return nil, fmt.Errorf("%w: output %s is not float32", ErrModelLayout, info.Name)
		}
		shape, err := fixedShape(info.Dimensions)
		if err != nil {
			return nil, err
		}
		e.layout.Outputs[i] = TensorInfo{Name: info.Name, Shape: shape}
	}

	n, err := mapping.Validate(e.layout.Outputs)
	if err != nil {
		return nil, err
	}
	e.layout.Detections = n

	if err := e.bind(modelPath, inputsInfo[0].Name, inputShape, threads); err != nil {
		e.Close()
		return nil, err
	}
	if e.layout.ChannelsFirst {
		e.chw = make([]float32, len(e.input.GetData()))
	}
	return e, nil
}

// bind allocates the input/output tensors and creates the session.
func (e *ONNXEngine) bind(modelPath, inputName string, inputShape []int, threads int) error {
	var err error
	e.input, err = ort.NewEmptyTensor[float32](toShape(inputShape))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputNames := make([]string, len(e.layout.Outputs))
	outputValues := make([]ort.Value, len(e.layout.Outputs))
	for i, info := range e.layout.Outputs {
		t, err := ort.NewEmptyTensor[float32](toShape(info.Shape))
		if err != nil {
			return fmt.Errorf("failed to create output tensor %s: %w", info.Name, err)
		}
		e.outputs = append(e.outputs, t)
		outputNames[i] = info.Name
		outputValues[i] = t
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return fmt.Errorf("failed to set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return fmt.Errorf("failed to set inter-op threads: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(modelPath,
		[]string{inputName}, outputNames,
		[]ort.Value{e.input}, outputValues, options)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Layout returns the cached model layout.
func (e *ONNXEngine) Layout() Layout {
	return e.layout
}

// Infer copies the input into the bound tensor, runs the session and copies
// the mapped outputs.
func (e *ONNXEngine) Infer(input *Tensor) (*Outputs, error) {
	dst := e.input.GetData()
	if len(dst) != len(input.Data) {
		return nil, fmt.Errorf("input size %d, model expects %d", len(input.Data), len(dst))
	}

	if e.layout.ChannelsFirst {
		toCHW(input, e.chw)
		copy(dst, e.chw)
	} else {
		copy(dst, input.Data)
	}

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx session run failed: %w", err)
	}

	raw := make([][]float32, len(e.outputs))
	for i, t := range e.outputs {
		raw[i] = t.GetData()
	}
	return e.mapping.decode(raw, e.layout.Detections), nil
}

// Close destroys the session and all bound tensors.
func (e *ONNXEngine) Close() error {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	for _, t := range e.outputs {
		t.Destroy()
	}
	e.outputs = nil
	return nil
}

// fixedShape resolves a dynamic batch axis to 1 and rejects any other dynamic axis.
func fixedShape(dims ort.Shape) ([]int, error) {
	shape := make([]int, len(dims))
	for i, d := range dims {
		switch {
		case d > 0:
			shape[i] = int(d)
		case i == 0:
			shape[i] = 1
		default:
			return nil, fmt.Errorf("%w: dynamic dimension %d in shape %v", ErrModelLayout, i, dims)
		}
	}
	return shape, nil
}

func toShape(shape []int) ort.Shape {
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	return ort.NewShape(dims...)
}

// toCHW transposes an HWC tensor into planar channel order.
func toCHW(input *Tensor, dst []float32) {
	h, w, c := input.Shape[1], input.Shape[2], input.Shape[3]
	plane := h * w
	for i := 0; i < plane; i++ {
		for ch := 0; ch < c; ch++ {
			dst[ch*plane+i] = input.Data[i*c+ch]
		}
	}
}
