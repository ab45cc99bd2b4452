package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"xiaozhi-vision-go/internal/platform/config"
	"xiaozhi-vision-go/internal/platform/logging"
)

const jpegQuality = 80

// Pipeline orchestrates validation, downscaling, and base64 encoding of
// camera frames before they are shipped to the vision API.
type Pipeline struct {
	security config.SecurityConfig
	logger   *logging.Logger
}

// Options configures the pipeline behaviour.
type Options struct {
	Security config.SecurityConfig
	Logger   *logging.Logger
}

// Output contains the sanitised artefacts produced by the pipeline.
type Output struct {
	Base64 string
	Bytes  []byte
	Format string
	Width  int
	Height int
}

// NewPipeline constructs a frame pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}
	security := opts.Security
	if security.MaxFileSize <= 0 {
		security.MaxFileSize = 5 * 1024 * 1024
	}
	if security.MaxEdgePixels <= 0 {
		security.MaxEdgePixels = 800
	}

	return &Pipeline{
		security: security,
		logger:   opts.Logger,
	}, nil
}

// Process validates the raw frame, downscales oversized images, and returns
// the JPEG bytes both raw and base64 encoded.
func (p *Pipeline) Process(ctx context.Context, frame []byte) (*Output, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if int64(len(frame)) > p.security.MaxFileSize {
		return nil, fmt.Errorf("frame exceeds maximum size of %d bytes", p.security.MaxFileSize)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("sniff image format: %w", err)
	}
	if !p.isAllowedFormat(format) {
		return nil, fmt.Errorf("unsupported image format: %s", format)
	}
	if p.security.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > p.security.MaxPixels {
		return nil, fmt.Errorf("image dimensions %dx%d exceed pixel budget", cfg.Width, cfg.Height)
	}

	out := &Output{
		Bytes:  frame,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}

	// 长边超限时缩小后重编为 JPEG，减小 API 请求体积
	if longEdge(cfg.Width, cfg.Height) > p.security.MaxEdgePixels || format != "jpeg" {
		scaled, w, h, err := p.downscale(frame, cfg.Width, cfg.Height)
		if err != nil {
			return nil, err
		}
		out.Bytes = scaled
		out.Format = "jpeg"
		out.Width = w
		out.Height = h
	}

	out.Base64 = base64.StdEncoding.EncodeToString(out.Bytes)

	p.logger.DebugTag("视觉", "画面处理完成: format=%s size=%dx%d bytes=%d",
		out.Format, out.Width, out.Height, len(out.Bytes))
	return out, nil
}

func (p *Pipeline) downscale(frame []byte, width, height int) ([]byte, int, int, error) {
	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	newWidth, newHeight := fitWithin(width, height, p.security.MaxEdgePixels)

	var target image.Image = src
	if newWidth != width || newHeight != height {
		dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
		target = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, target, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), newWidth, newHeight, nil
}

func (p *Pipeline) isAllowedFormat(format string) bool {
	if len(p.security.AllowedFormats) == 0 {
		return true
	}
	for _, allowed := range p.security.AllowedFormats {
		if format == allowed {
			return true
		}
	}
	return false
}

func longEdge(w, h int) int {
	if w > h {
		return w
	}
	return h
}

// fitWithin 等比缩放到长边不超过 maxEdge
func fitWithin(w, h, maxEdge int) (int, int) {
	edge := longEdge(w, h)
	if edge <= maxEdge {
		return w, h
	}
	if w >= h {
		return maxEdge, h * maxEdge / w
	}
	return w * maxEdge / h, maxEdge
}
