package productbg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const modelReleaseURL = "https://github.com/danielgatis/rembg/releases/download/v0.0.0/%s.onnx"

// ModelSpec describes how to feed a segmentation model.
type ModelSpec struct {
	Name      string
	InputSize int
	Mean      [3]float32
	Std       [3]float32
}

var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
	halfMean     = [3]float32{0.5, 0.5, 0.5}
	unitStd      = [3]float32{1.0, 1.0, 1.0}
)

var catalog = map[string]ModelSpec{
	"u2net":             {Name: "u2net", InputSize: 320, Mean: imagenetMean, Std: imagenetStd},
	"u2netp":            {Name: "u2netp", InputSize: 320, Mean: imagenetMean, Std: imagenetStd},
	"u2net_human_seg":   {Name: "u2net_human_seg", InputSize: 320, Mean: imagenetMean, Std: imagenetStd},
	"silueta":           {Name: "silueta", InputSize: 320, Mean: imagenetMean, Std: imagenetStd},
	"isnet-general-use": {Name: "isnet-general-use", InputSize: 1024, Mean: halfMean, Std: unitStd},
	"isnet-anime":       {Name: "isnet-anime", InputSize: 1024, Mean: halfMean, Std: unitStd},
}

// LookupModel returns the catalog entry for name.
func LookupModel(name string) (ModelSpec, error) {
	spec, ok := catalog[name]
	if !ok {
		return ModelSpec{}, fmt.Errorf("unknown model %q", name)
	}
	return spec, nil
}

// DefaultModelHome is $U2NET_HOME, falling back to ~/.u2net.
func DefaultModelHome() string {
	if dir := os.Getenv("U2NET_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".u2net"
	}
	return filepath.Join(home, ".u2net")
}

// ModelPath is where a model file lives inside the cache directory.
func ModelPath(home, name string) string {
	return filepath.Join(home, name+".onnx")
}

// EnsureModel returns the local path of the named model, downloading it
// into home when it is missing. A nil client uses http.DefaultClient.
func EnsureModel(ctx context.Context, client *http.Client, home, name string) (string, error) {
	return ensureModelFrom(ctx, client, modelReleaseURL, home, name)
}

func ensureModelFrom(ctx context.Context, client *http.Client, urlFormat, home, name string) (string, error) {
	if _, err := LookupModel(name); err != nil {
		return "", err
	}

	path := ModelPath(home, name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", fmt.Errorf("create model home: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(urlFormat, name), nil)
	if err != nil {
		return "", fmt.Errorf("build model request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download model %s: status %d", name, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(home, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp model file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write model %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close model %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("install model %s: %w", name, err)
	}

	return path, nil
}
