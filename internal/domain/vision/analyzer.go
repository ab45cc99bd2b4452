package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domainimage "xiaozhi-vision-go/internal/domain/image"
	"xiaozhi-vision-go/internal/platform/config"
	"xiaozhi-vision-go/internal/platform/logging"
)

// ErrKind 区分视觉服务的失败类别，调用方对所有失败统一处理
type ErrKind string

const (
	ErrNone      ErrKind = ""
	ErrNetwork   ErrKind = "network"
	ErrTimeout   ErrKind = "timeout"
	ErrMalformed ErrKind = "malformed_response"
)

// Result 一次图像分析的结果，由状态机消费一次后丢弃
type Result struct {
	AnalysisText string
	Success      bool
	ErrKind      ErrKind
}

// Analyzer 调用 OpenAI 兼容的多模态接口做图像理解
type Analyzer struct {
	cfg      config.VisionConfig
	pipeline *domainimage.Pipeline
	client   *openai.Client
	logger   *logging.Logger
}

// NewAnalyzer 创建视觉分析器
func NewAnalyzer(cfg config.VisionConfig, logger *logging.Logger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vision API key is required")
	}

	pipeline, err := domainimage.NewPipeline(domainimage.Options{
		Security: cfg.Security,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise image pipeline: %w", err)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		clientConfig.BaseURL = cfg.APIURL
	}

	return &Analyzer{
		cfg:      cfg,
		pipeline: pipeline,
		client:   openai.NewClientWithConfig(clientConfig),
		logger:   logger,
	}, nil
}

// Analyze 处理一帧画面并返回分析结果。超时、网络错误和响应异常
// 作为不同类别返回；本层不做任何重试。
func (a *Analyzer) Analyze(ctx context.Context, frame []byte, prompt string, timeout time.Duration) Result {
	if prompt == "" {
		prompt = a.cfg.DefaultPrompt
	}
	if timeout <= 0 {
		timeout = a.cfg.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := a.pipeline.Process(ctx, frame)
	if err != nil {
		a.logger.ErrorTag("视觉", "画面预处理失败: %v", err)
		return Result{ErrKind: ErrMalformed}
	}

	a.logger.DebugTag("视觉", "调用视觉接口: model=%s prompt_length=%d image_bytes=%d",
		a.cfg.Model, len(prompt), len(output.Bytes))

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: fmt.Sprintf("data:image/%s;base64,%s", output.Format, output.Base64),
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
				},
			},
		},
	})
	if err != nil {
		kind := ErrNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			kind = ErrTimeout
		}
		a.logger.ErrorTag("视觉", "视觉接口调用失败(%s): %v", kind, err)
		return Result{ErrKind: kind}
	}

	if len(resp.Choices) == 0 {
		a.logger.ErrorTag("视觉", "视觉接口返回空响应")
		return Result{ErrKind: ErrMalformed}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		a.logger.ErrorTag("视觉", "视觉接口返回空内容")
		return Result{ErrKind: ErrMalformed}
	}

	a.logger.InfoTag("视觉", "识别结果: %s", truncate(text, 100))
	return Result{AnalysisText: text, Success: true}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
