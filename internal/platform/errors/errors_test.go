package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesTypedError(t *testing.T) {
	inner := NewCode(KindCamera, CodeDeviceUnavailable, "camera.Open", "设备被占用")
	outer := Wrap(KindVision, "vision.Analyze", "截帧失败", inner)

	// 已是结构化错误时不再二次包装
	assert.Same(t, inner, outer)
	assert.True(t, IsKind(outer, KindCamera))
}

func TestWrapNilReturnsNil(t *testing.T) {
	var err *Error = Wrap(KindSpeech, "op", "msg", nil)
	assert.Nil(t, err)
	assert.Nil(t, WrapCode(KindSpeech, CodeSynthesisFailed, "op", "msg", nil))
}

func TestCodeOf(t *testing.T) {
	plain := stderrors.New("plain")
	assert.Equal(t, CodeNone, CodeOf(plain))
	assert.Equal(t, CodeNone, CodeOf(nil))

	coded := WrapCode(KindTransport, CodeConnectionLost, "protocol.Connect", "重连耗尽", plain)
	assert.Equal(t, CodeConnectionLost, CodeOf(coded))
	assert.True(t, stderrors.Is(coded, plain))
}

func TestErrorString(t *testing.T) {
	err := New(KindSession, "session.New", "会话已存在")
	assert.Contains(t, err.Error(), "session.New")
	assert.Contains(t, err.Error(), "会话已存在")

	wrapped := WrapCode(KindCamera, CodeCaptureFailed, "camera.CaptureFrame", "截取失败", stderrors.New("io timeout"))
	assert.Contains(t, wrapped.Error(), "io timeout")
}

func TestIsKindWalksChain(t *testing.T) {
	base := NewCode(KindVision, CodeAnalysisTimeout, "vision.Analyze", "超时")
	assert.True(t, IsKind(base, KindVision))
	assert.False(t, IsKind(base, KindCamera))
	assert.False(t, IsKind(nil, KindVision))
}
