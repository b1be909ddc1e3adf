package productbg

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
)

var runtimeOnce struct {
	sync.Mutex
	done bool
}

// InitRuntime loads the ONNX Runtime shared library and initializes the
// environment. It is safe to call more than once.
func InitRuntime(libraryPath string) error {
	runtimeOnce.Lock()
	defer runtimeOnce.Unlock()

	if runtimeOnce.done || ort.IsInitialized() {
		runtimeOnce.done = true
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to init ORT env: %w", err)
	}
	runtimeOnce.done = true
	return nil
}

// Config selects the model and the ONNX session tuning.
type Config struct {
	ModelPath         string
	Model             string
	IntraOpNumThreads int
	InterOpNumThreads int
	CpuMemArena       bool
	MemPattern        bool
}

// RemBG segments images with an ONNX model. The session is created once and
// shared by concurrent Segment calls.
type RemBG struct {
	spec        ModelSpec
	modelPath   string
	inputName   string
	outputName  string
	session     *ort.DynamicAdvancedSession
	tensorPool  *tensorPool
	mattingPool *mattingBufferPool
}

func createSession(cfg *Config) (*ort.DynamicAdvancedSession, string, string, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read model io info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, "", "", fmt.Errorf("model %s declares no inputs or outputs", cfg.ModelPath)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	intra := cfg.IntraOpNumThreads
	if intra <= 0 {
		intra = 2
	}
	inter := cfg.InterOpNumThreads
	if inter <= 0 {
		inter = 1
	}
	options.SetIntraOpNumThreads(intra)
	options.SetInterOpNumThreads(inter)
	options.SetCpuMemArena(cfg.CpuMemArena)
	options.SetMemPattern(cfg.MemPattern)
	options.SetExecutionMode(ort.ExecutionModeSequential)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		options,
	)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return session, inputs[0].Name, outputs[0].Name, nil
}

// New creates the ONNX session for cfg.Model. InitRuntime must have succeeded.
func New(cfg *Config) (*RemBG, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	name := cfg.Model
	if name == "" {
		name = "u2netp"
	}
	spec, err := LookupModel(name)
	if err != nil {
		return nil, err
	}
	if !ort.IsInitialized() {
		return nil, fmt.Errorf("onnx runtime is not initialized")
	}

	session, inputName, outputName, err := createSession(cfg)
	if err != nil {
		return nil, err
	}

	return &RemBG{
		spec:        spec,
		modelPath:   cfg.ModelPath,
		inputName:   inputName,
		outputName:  outputName,
		session:     session,
		tensorPool:  newTensorPool(spec.InputSize),
		mattingPool: newMattingBufferPool(),
	}, nil
}

// Model returns the catalog name of the loaded model.
func (r *RemBG) Model() string {
	return r.spec.Name
}

// Close destroys the session
func (r *RemBG) Close() error {
	if r.session != nil {
		return r.session.Destroy()
	}
	return nil
}

// Segment runs the model once and returns the cutout at source size.
func (r *RemBG) Segment(ctx context.Context, img image.Image, opts MattingOptions) (*image.NRGBA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("empty source image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mask, err := r.predict(img)
	if err != nil {
		return nil, err
	}

	full := resize.Resize(uint(bounds.Dx()), uint(bounds.Dy()), mask, resize.Lanczos3)
	resized := toGray(full)

	if opts.PostProcessMask {
		resized = binarize(resized)
	}
	if opts.AlphaMatting {
		if resized, err = refineMask(img, resized, opts, r.mattingPool); err != nil {
			return nil, err
		}
	}

	return cutout(img, resized), nil
}

// predict returns the normalized model mask at the model's input size.
func (r *RemBG) predict(img image.Image) (*image.Gray, error) {
	size := r.spec.InputSize

	inputTensor := r.tensorPool.getInput()
	outputTensor := r.tensorPool.getOutput()
	if inputTensor == nil || outputTensor == nil {
		return nil, fmt.Errorf("failed to allocate tensors")
	}
	defer func() {
		r.tensorPool.putInput(inputTensor)
		r.tensorPool.putOutput(outputTensor)
	}()

	resized := imaging.Resize(img, size, size, imaging.Lanczos)
	pix := resized.Pix
	stride := resized.Stride
	mean, std := r.spec.Mean, r.spec.Std

	inputData := inputTensor.GetData()
	for y := range size {
		row := pix[y*stride : y*stride+size*4]
		for x := range size {
			base := x * 4
			inputData[(0*size+y)*size+x] = (float32(row[base+0])/255.0 - mean[0]) / std[0]
			inputData[(1*size+y)*size+x] = (float32(row[base+1])/255.0 - mean[1]) / std[1]
			inputData[(2*size+y)*size+x] = (float32(row[base+2])/255.0 - mean[2]) / std[2]
		}
	}

	if err := r.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return normalizeMask(outputTensor.GetData(), size), nil
}

// normalizeMask min-max scales the first size*size values into a gray mask.
func normalizeMask(data []float32, size int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, size, size))
	data = data[:size*size]

	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		return mask
	}

	for i, v := range data {
		mask.Pix[i] = unitToByte(float64((v - lo) / span))
	}
	return mask
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			g.Pix[(y-b.Min.Y)*g.Stride+(x-b.Min.X)] = uint8(r >> 8)
		}
	}
	return g
}
