package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/josuedeavila/productbg"
	"github.com/josuedeavila/productbg/model"
	"github.com/josuedeavila/productbg/utils"
	"go.uber.org/zap"
)

// Processor turns uploaded bytes into a product photo.
type Processor interface {
	Process(ctx context.Context, data []byte) ([]byte, error)
	ModelName() string
	Available() bool
}

type RemoveHandler struct {
	processor Processor
	maxSize   int64
}

func NewRemoveHandler(processor Processor, maxSize int64) *RemoveHandler {
	return &RemoveHandler{
		processor: processor,
		maxSize:   maxSize,
	}
}

// RemoveBackground handles POST /remove-bg with the upload in field "image".
func (h *RemoveHandler) RemoveBackground(c *gin.Context) {
	if h.maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize)
	}

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "image too large"})
			return
		}
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "No image"})
		return
	}

	f, err := file.Open()
	if err != nil {
		utils.Logger.Error("failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "No image"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		utils.Logger.Error("failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "No image"})
		return
	}

	out, err := h.processor.Process(c.Request.Context(), data)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/jpeg", out)
}

// writeError maps pipeline failures to responses. Decode and processing
// failures both answer 500 and differ only in kind.
func (h *RemoveHandler) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	if productbg.IsClientError(err) {
		utils.Logger.Warn("rejected upload", zap.Error(err))
	} else {
		utils.Logger.Error("failed to process image", zap.Error(err))
	}

	var decodeErr *productbg.DecodeError
	switch {
	case errors.Is(err, productbg.ErrMissingInput):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "No image"})
	case errors.As(err, &decodeErr):
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error(), Kind: model.KindDecode})
	default:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error(), Kind: model.KindProcessing})
	}
}

// Status answers GET /.
func (h *RemoveHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{
		Status: "online",
		Model:  h.processor.ModelName(),
	})
}

// Health answers GET /health with 503 while no segmentation model is usable.
func (h *RemoveHandler) Health(c *gin.Context) {
	if !h.processor.Available() {
		c.JSON(http.StatusServiceUnavailable, model.StatusResponse{
			Status: "unavailable",
			Model:  h.processor.ModelName(),
		})
		return
	}
	h.Status(c)
}
