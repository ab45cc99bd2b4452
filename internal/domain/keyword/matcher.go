package keyword

import (
	"strings"

	"xiaozhi-vision-go/internal/platform/config"
)

// Class 话语分类结果
type Class int

const (
	Ordinary Class = iota
	VisionTrigger
	CameraOpen
	CameraClose
)

func (c Class) String() string {
	switch c {
	case VisionTrigger:
		return "vision_trigger"
	case CameraOpen:
		return "camera_open"
	case CameraClose:
		return "camera_close"
	default:
		return "ordinary"
	}
}

// VisionAnswerMarker 视觉回答的防回环前缀，带此前缀的文本永远不会再次触发识别
const VisionAnswerMarker = "Vision Analysis: "

type actionList struct {
	class    Class
	keywords []string
}

// Matcher 纯函数式关键词分类器。摄像头控制关键词先于视觉触发关键词匹配，
// 同一列表内先配置的关键词优先。
type Matcher struct {
	visionEnabled bool
	cameraLists   []actionList
	visionList    []string
}

// NewMatcher 从配置构建分类器
func NewMatcher(cfg config.VisionConfig) *Matcher {
	m := &Matcher{
		visionEnabled: cfg.Enabled,
		visionList:    normalizeAll(cfg.Keywords),
	}

	for _, ck := range cfg.CameraKeywords {
		var class Class
		switch strings.ToLower(ck.Action) {
		case "open":
			class = CameraOpen
		case "close":
			class = CameraClose
		default:
			continue
		}
		m.cameraLists = append(m.cameraLists, actionList{
			class:    class,
			keywords: normalizeAll(ck.Keywords),
		})
	}

	return m
}

// Classify 对文本做大小写归一化的子串匹配分类。
// fromVisionAnswer 为真时无条件返回 Ordinary，完全跳过关键词扫描；
// 带防回环前缀的文本同样直接视为普通文本，两道防线互为冗余。
func (m *Matcher) Classify(text string, fromVisionAnswer bool) Class {
	if fromVisionAnswer {
		return Ordinary
	}
	if strings.HasPrefix(text, VisionAnswerMarker) {
		return Ordinary
	}

	normalized := normalize(text)

	// 摄像头控制词先查，避免"打开摄像头"被泛化的视觉词吞掉
	for _, list := range m.cameraLists {
		for _, kw := range list.keywords {
			if kw != "" && strings.Contains(normalized, kw) {
				return list.class
			}
		}
	}

	if !m.visionEnabled {
		return Ordinary
	}
	for _, kw := range m.visionList {
		if kw != "" && strings.Contains(normalized, kw) {
			return VisionTrigger
		}
	}

	return Ordinary
}

// VisionEnabled 视觉触发是否启用
func (m *Matcher) VisionEnabled() bool {
	return m.visionEnabled
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		out = append(out, normalize(kw))
	}
	return out
}
