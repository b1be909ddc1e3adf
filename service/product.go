package service

import (
	"context"
	"time"

	"github.com/josuedeavila/productbg"
	"github.com/josuedeavila/productbg/config"
	"github.com/josuedeavila/productbg/utils"
	"go.uber.org/zap"
)

// ProductService runs the product photo pipeline behind an optional cache.
type ProductService struct {
	pipeline *productbg.Pipeline
	cache    ResultCache
	model    string
}

func NewProductService(pipeline *productbg.Pipeline, cache ResultCache, model string) *ProductService {
	if cache == nil {
		cache = NopCache{}
	}
	return &ProductService{
		pipeline: pipeline,
		cache:    cache,
		model:    model,
	}
}

// PipelineFromConfig builds the pipeline options from cfg around seg.
func PipelineFromConfig(cfg *config.Config, seg productbg.Segmenter) *productbg.Pipeline {
	return &productbg.Pipeline{
		Segmenter: seg,
		Matting: productbg.MattingOptions{
			AlphaMatting:        cfg.Matting.Enabled,
			ForegroundThreshold: cfg.Matting.ForegroundThreshold,
			BackgroundThreshold: cfg.Matting.BackgroundThreshold,
			ErodeSize:           cfg.Matting.ErodeSize,
			PostProcessMask:     cfg.Matting.PostProcessMask,
		},
		Layout: productbg.Layout{
			Width:       cfg.Output.Width,
			Height:      cfg.Output.Height,
			Padding:     cfg.Output.Padding,
			RejectEmpty: cfg.Output.RejectEmpty,
		},
		MaxPixels: cfg.Upload.MaxPixels,
	}
}

func (s *ProductService) ModelName() string {
	return s.model
}

// Available reports whether the pipeline has a usable segmenter.
func (s *ProductService) Available() bool {
	seg := s.pipeline.Segmenter
	if seg == nil {
		return false
	}
	if a, ok := seg.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

// Process returns the product photo for data, serving repeated uploads from
// the cache. Cache failures are logged and never fail the request.
func (s *ProductService) Process(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, productbg.ErrMissingInput
	}

	key := s.cacheKey(data)
	if out, ok, err := s.cache.Get(ctx, key); err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
	} else if ok {
		utils.Logger.Debug("cache hit", zap.String("cache_key", key))
		return out, nil
	}

	start := time.Now()
	out, err := s.pipeline.Process(ctx, data)
	if err != nil {
		return nil, err
	}
	utils.Logger.Info("image processed",
		zap.String("model", s.model),
		zap.Int("input_bytes", len(data)),
		zap.Int("output_bytes", len(out)),
		zap.Duration("cost", time.Since(start)))

	if err := s.cache.Set(ctx, key, out); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}
	return out, nil
}

func (s *ProductService) cacheKey(data []byte) string {
	return utils.BytesMD5(data) + ":" + s.model + ":" + s.pipeline.Fingerprint()
}
