package service

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/josuedeavila/productbg"
	"github.com/josuedeavila/productbg/config"
	"github.com/josuedeavila/productbg/utils"
	"go.uber.org/zap"
)

// Remover is the process-wide segmenter together with the name of the model
// that actually loaded.
type Remover struct {
	productbg.Segmenter
	model string
}

// Model is the loaded model name, or the requested one when nothing loaded.
func (r *Remover) Model() string {
	return r.model
}

// Available reports whether a model is usable.
func (r *Remover) Available() bool {
	_, unavailable := r.Segmenter.(*productbg.Unavailable)
	return !unavailable
}

func (r *Remover) Close() error {
	if c, ok := r.Segmenter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type openFunc func(ctx context.Context, name string) (productbg.Segmenter, error)

// LoadRemover builds the segmenter for cfg. For the onnx backend it tries the
// primary model, then the fallback, and settles on an Unavailable segmenter
// so the server still starts.
func LoadRemover(ctx context.Context, cfg *config.ModelConfig) *Remover {
	switch cfg.Backend {
	case "heuristic":
		utils.Logger.Info("using heuristic segmenter")
		return &Remover{Segmenter: productbg.HeuristicSegmenter{}, model: "heuristic"}
	case "remote":
		utils.Logger.Info("using remote segmenter",
			zap.String("url", cfg.RemoteURL),
			zap.String("model", cfg.Name))
		return &Remover{
			Segmenter: productbg.NewRemoteSegmenter(cfg.RemoteURL, cfg.Name, cfg.RemoteTimeout),
			model:     cfg.Name,
		}
	}

	if err := productbg.InitRuntime(cfg.LibraryPath); err != nil {
		utils.Logger.Error("onnx runtime unavailable", zap.Error(err))
		return &Remover{Segmenter: &productbg.Unavailable{Model: cfg.Name, Cause: err}, model: cfg.Name}
	}
	return loadWithFallback(ctx, modelCandidates(cfg), onnxOpener(cfg))
}

func modelCandidates(cfg *config.ModelConfig) []string {
	names := []string{cfg.Name}
	if cfg.Fallback != "" && cfg.Fallback != cfg.Name {
		names = append(names, cfg.Fallback)
	}
	return names
}

func loadWithFallback(ctx context.Context, names []string, open openFunc) *Remover {
	var lastErr error
	for _, name := range names {
		seg, err := open(ctx, name)
		if err != nil {
			utils.Logger.Warn("failed to load model",
				zap.String("model", name),
				zap.Error(err))
			lastErr = err
			continue
		}
		utils.Logger.Info("model loaded", zap.String("model", name))
		return &Remover{Segmenter: seg, model: name}
	}

	primary := ""
	if len(names) > 0 {
		primary = names[0]
	}
	utils.Logger.Error("no segmentation model available, requests will fail",
		zap.Strings("tried", names),
		zap.Error(lastErr))
	return &Remover{Segmenter: &productbg.Unavailable{Model: primary, Cause: lastErr}, model: primary}
}

func onnxOpener(cfg *config.ModelConfig) openFunc {
	home := cfg.Home
	if home == "" {
		home = productbg.DefaultModelHome()
	}
	return func(ctx context.Context, name string) (productbg.Segmenter, error) {
		path := productbg.ModelPath(home, name)
		if cfg.AutoDownload {
			var err error
			if path, err = productbg.EnsureModel(ctx, nil, home, name); err != nil {
				return nil, err
			}
		} else if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("model %s not found: %w", name, err)
		}

		seg, err := productbg.New(&productbg.Config{
			ModelPath:         path,
			Model:             name,
			IntraOpNumThreads: cfg.IntraOpNumThreads,
			InterOpNumThreads: cfg.InterOpNumThreads,
			MemPattern:        true,
		})
		if err != nil {
			return nil, err
		}
		return seg, nil
	}
}
