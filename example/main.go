package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/josuedeavila/productbg"
)

func main() {
	input := flag.String("in", "input.jpg", "source image")
	output := flag.String("out", "output.jpg", "product photo to write")
	modelName := flag.String("model", "u2netp", "model name, or \"heuristic\" to skip ONNX")
	lib := flag.String("ort", os.Getenv("ORT_LIBRARY_PATH"), "path to the onnxruntime shared library")
	padding := flag.Float64("padding", 0.95, "fraction of the canvas the product may occupy")
	matting := flag.Bool("matting", true, "refine mask edges")
	flag.Parse()

	seg, closeFn, err := openSegmenter(*modelName, *lib)
	if err != nil {
		panic(fmt.Errorf("error loading segmenter: %w", err))
	}
	defer closeFn()

	data, err := os.ReadFile(*input)
	if err != nil {
		panic(fmt.Errorf("error opening image: %w", err))
	}

	p := &productbg.Pipeline{
		Segmenter: seg,
		Matting: productbg.MattingOptions{
			AlphaMatting:        *matting,
			ForegroundThreshold: 240,
			BackgroundThreshold: 10,
			ErodeSize:           10,
		},
		Layout: productbg.Layout{Width: 1080, Height: 1080, Padding: *padding},
	}

	start := time.Now()
	out, err := p.Process(context.Background(), data)
	if err != nil {
		panic(fmt.Errorf("error processing image: %w", err))
	}
	fmt.Printf("time for producing photo: %v\n", time.Since(start))

	if err := os.WriteFile(*output, out, 0o644); err != nil {
		panic(fmt.Errorf("error saving image: %w", err))
	}
}

func openSegmenter(name, lib string) (productbg.Segmenter, func(), error) {
	if name == "heuristic" {
		return productbg.HeuristicSegmenter{}, func() {}, nil
	}
	if err := productbg.InitRuntime(lib); err != nil {
		return nil, nil, err
	}
	path, err := productbg.EnsureModel(context.Background(), nil, productbg.DefaultModelHome(), name)
	if err != nil {
		return nil, nil, err
	}
	engine, err := productbg.New(&productbg.Config{
		ModelPath:         path,
		Model:             name,
		IntraOpNumThreads: 1,
		InterOpNumThreads: 1,
		MemPattern:        true,
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, func() { _ = engine.Close() }, nil
}
