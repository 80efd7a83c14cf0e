package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"crackdetector/internal/service/ai"
)

type options struct {
	modelPath string
	imagePath string
	engine    ai.EngineOptions
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	if err := run(opts, os.Stdout); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)

	modelPath := fs.String("model", "models/wallcrack.tflite", "Model file (.tflite or .onnx)")
	imagePath := fs.String("image", "", "Optional image to run through the model")
	threads := fs.Int("threads", 1, "Runtime threads")
	boxes := fs.Int("boxes", 0, "Output index of the boxes tensor")
	classes := fs.Int("classes", 1, "Output index of the classes tensor (-1 if absent)")
	scores := fs.Int("scores", 2, "Output index of the scores tensor")
	onnxLib := fs.String("onnxlib", os.Getenv("ONNXRUNTIME_LIB"), "Path to the ONNX Runtime shared library")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *threads <= 0 {
		return options{}, fmt.Errorf("threads must be positive, got %d", *threads)
	}

	return options{
		modelPath: *modelPath,
		imagePath: *imagePath,
		engine: ai.EngineOptions{
			Threads:        *threads,
			Mapping:        ai.OutputMapping{Boxes: *boxes, Classes: *classes, Scores: *scores},
			OnnxRuntimeLib: *onnxLib,
		},
	}, nil
}

// run loads the model, which validates the output mapping, and reports on it.
func run(opts options, out io.Writer) error {
	fmt.Fprintf(out, "Inspecting model %s\n", opts.modelPath)

	engine, err := ai.OpenEngine(opts.modelPath, opts.engine)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer ai.ShutdownONNXRuntime()
	defer engine.Close()

	m := opts.engine.Mapping
	printLayout(out, engine.Layout())
	fmt.Fprintf(out, "✅ Output mapping boxes=%d classes=%d scores=%d is valid\n", m.Boxes, m.Classes, m.Scores)

	if opts.imagePath == "" {
		return nil
	}
	return detectFile(out, engine, opts.imagePath)
}

func printLayout(out io.Writer, layout ai.Layout) {
	order := "NHWC"
	if layout.ChannelsFirst {
		order = "NCHW"
	}

	fmt.Fprintf(out, "\n📐 Model layout:\n")
	fmt.Fprintf(out, "   Input: %dx%d %s (%s)\n", layout.Height, layout.Width, layout.InputType, order)
	for i, o := range layout.Outputs {
		fmt.Fprintf(out, "   Output %d: %s %v\n", i, o.Name, o.Shape)
	}
	fmt.Fprintf(out, "   Detections per frame: %d\n", layout.Detections)
}

// detectFile runs one image through the engine and prints the kept detections as JSON.
func detectFile(out io.Writer, engine ai.Engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	img, err := ai.DecodeImage(data)
	if err != nil {
		return err
	}

	layout := engine.Layout()
	outputs, err := engine.Infer(ai.PrepareInput(img, layout.Height, layout.Width))
	if err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}

	detections := ai.FilterDetections(outputs)
	fmt.Fprintf(out, "\n🔍 %d detection(s) above %.1f:\n", len(detections), ai.ScoreThreshold)

	encoded, err := json.MarshalIndent(detections, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode detections: %w", err)
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}
