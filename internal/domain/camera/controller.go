package camera

import (
	"context"
	"sync"
	"time"

	perrors "xiaozhi-vision-go/internal/platform/errors"
	"xiaozhi-vision-go/internal/platform/logging"
)

const (
	captureMaxAttempts = 3
	captureRetryDelay  = 100 * time.Millisecond
)

// Device 摄像头驱动的开启实例，读帧返回 JPEG 字节
type Device interface {
	ReadFrame() ([]byte, error)
	Close() error
}

// Driver 摄像头驱动契约（外部协作者，按索引打开物理设备）
type Driver interface {
	Open(index int) (Device, error)
}

// Handle 表示一个已打开的摄像头。同一物理索引至多一个打开实例。
type Handle struct {
	index  int
	device Device
}

// Index 返回物理摄像头索引
func (h *Handle) Index() int {
	return h.index
}

// Controller 摄像头生命周期控制器。Open/Close 幂等，CaptureFrame
// 在未打开时自动打开，读帧失败时做有限次重试。
type Controller struct {
	driver Driver
	index  int
	logger *logging.Logger

	mu     sync.Mutex
	handle *Handle
}

// NewController 创建摄像头控制器
func NewController(driver Driver, index int, logger *logging.Logger) *Controller {
	return &Controller{
		driver: driver,
		index:  index,
		logger: logger,
	}
}

// Open 打开摄像头。已打开时返回既有句柄，不重复打开设备。
func (c *Controller) Open() (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *Controller) openLocked() (*Handle, error) {
	if c.handle != nil {
		return c.handle, nil
	}

	device, err := c.driver.Open(c.index)
	if err != nil {
		return nil, perrors.WrapCode(perrors.KindCamera, perrors.CodeDeviceUnavailable,
			"camera.Open", "无法打开摄像头", err)
	}

	c.handle = &Handle{index: c.index, device: device}
	c.logger.InfoTag("摄像头", "摄像头已打开: index=%d", c.index)
	return c.handle, nil
}

// Close 关闭摄像头。已关闭时为空操作，永不失败。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return
	}
	if err := c.handle.device.Close(); err != nil {
		c.logger.WarnTag("摄像头", "关闭摄像头出错: %v", err)
	}
	c.handle = nil
	c.logger.InfoTag("摄像头", "摄像头已关闭: index=%d", c.index)
}

// IsOpen 摄像头是否处于打开状态
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// CaptureFrame 截取当前画面。摄像头未打开时先自动打开，
// 读帧做有限次重试以规避偶发失败。
func (c *Controller) CaptureFrame(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	handle, err := c.openLocked()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= captureMaxAttempts; attempt++ {
		frame, err := handle.device.ReadFrame()
		if err == nil && len(frame) > 0 {
			return frame, nil
		}
		lastErr = err
		c.logger.WarnTag("摄像头", "读取画面失败，重试 %d/%d", attempt, captureMaxAttempts)

		select {
		case <-ctx.Done():
			return nil, perrors.WrapCode(perrors.KindCamera, perrors.CodeCaptureFailed,
				"camera.CaptureFrame", "截取画面被取消", ctx.Err())
		case <-time.After(captureRetryDelay):
		}
	}

	if lastErr == nil {
		return nil, perrors.NewCode(perrors.KindCamera, perrors.CodeCaptureFailed,
			"camera.CaptureFrame", "摄像头返回空画面")
	}
	return nil, perrors.WrapCode(perrors.KindCamera, perrors.CodeCaptureFailed,
		"camera.CaptureFrame", "截取画面失败", lastErr)
}
