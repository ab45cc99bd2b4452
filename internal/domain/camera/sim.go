package camera

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync/atomic"
)

var errDeviceClosed = errors.New("camera device closed")

// SimDriver 内置的模拟驱动：没有物理摄像头时生成合成 JPEG 帧，
// 便于联调与测试。真实驱动通过 Driver 接口接入。
type SimDriver struct {
	Width  int
	Height int
}

func NewSimDriver(width, height int) *SimDriver {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	return &SimDriver{Width: width, Height: height}
}

func (d *SimDriver) Open(index int) (Device, error) {
	return &simDevice{width: d.Width, height: d.Height}, nil
}

type simDevice struct {
	width  int
	height int
	frame  atomic.Uint64
	closed atomic.Bool
}

// ReadFrame 生成一帧随帧号漂移的渐变图，保证每帧内容不同
func (s *simDevice) ReadFrame() ([]byte, error) {
	if s.closed.Load() {
		return nil, errDeviceClosed
	}
	n := s.frame.Add(1)

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	shift := uint8(n * 7)
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x) + shift,
				G: uint8(y),
				B: uint8(x+y) - shift,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *simDevice) Close() error {
	s.closed.Store(true)
	return nil
}
