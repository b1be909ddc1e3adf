package productbg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const removePath = "/api/remove"

// RemoteSegmenter delegates segmentation to a rembg-compatible HTTP server.
type RemoteSegmenter struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewRemoteSegmenter talks to the server at baseURL. A zero timeout means 60s.
func NewRemoteSegmenter(baseURL, model string, timeout time.Duration) *RemoteSegmenter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteSegmenter{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *RemoteSegmenter) Segment(ctx context.Context, img image.Image, opts MattingOptions) (*image.NRGBA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	body, contentType, err := s.encodeRequest(img, opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+removePath, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote segmenter failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	out, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode remote cutout: %w", err)
	}
	if out.Bounds().Size() != img.Bounds().Size() {
		return nil, fmt.Errorf("remote cutout is %v, want %v", out.Bounds().Size(), img.Bounds().Size())
	}
	return imaging.Clone(out), nil
}

func (s *RemoteSegmenter) encodeRequest(img image.Image, opts MattingOptions) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, "", fmt.Errorf("encode upload: %w", err)
	}

	fields := map[string]string{
		"model": s.model,
		"a":     strconv.FormatBool(opts.AlphaMatting),
		"af":    strconv.Itoa(opts.ForegroundThreshold),
		"ab":    strconv.Itoa(opts.BackgroundThreshold),
		"ae":    strconv.Itoa(opts.ErodeSize),
		"ppm":   strconv.FormatBool(opts.PostProcessMask),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
