package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const logRetentionDays = 7 // 日志保留天数

// Config captures logging configuration options.
type Config struct {
	Level string
	Dir   string
	File  string
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m" // 时间：灰色
	colorDebug = "\x1b[36m" // DEBUG：青色
	colorInfo  = "\x1b[32m" // INFO：绿色
	colorWarn  = "\x1b[33m" // WARN：黄色
	colorError = "\x1b[31m" // ERROR：红色
)

// 模块标签颜色
var moduleColors = map[string]string{
	"[引导]":  "\x1b[96m", // 亮青色
	"[会话]":  "\x1b[94m", // 亮蓝色
	"[协议]":  "\x1b[92m", // 亮绿色
	"[视觉]":  "\x1b[95m", // 亮品红
	"[摄像头]": "\x1b[93m", // 亮黄色
	"[TTS]": "\x1b[35m", // 品红
	"[键词]":  "\x1b[36m", // 青色
	"[显示]":  "\x1b[90m", // 灰色
}

// CustomTextHandler 自定义文本处理器，支持彩色输出和模块标签
type CustomTextHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *CustomTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *CustomTextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelStr, levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelStr, levelColor = "调试", colorDebug
	case slog.LevelInfo:
		levelStr, levelColor = "信息", colorInfo
	case slog.LevelWarn:
		levelStr, levelColor = "警告", colorWarn
	case slog.LevelError:
		levelStr, levelColor = "错误", colorError
	default:
		levelStr, levelColor = "信息", colorReset
	}

	msg := r.Message

	// 检测模块标签
	var moduleColor string
	for tag, color := range moduleColors {
		if strings.HasPrefix(msg, tag) {
			moduleColor = color
			break
		}
	}

	var output string
	if moduleColor != "" {
		// 模块日志格式: [时间] [模块] 消息
		output = fmt.Sprintf("%s[%s]%s %s%s%s",
			colorTime, timeStr, colorReset,
			moduleColor, msg, colorReset)
	} else {
		// 普通日志格式: [时间] [级别] 消息
		output = fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			levelColor, levelStr, colorReset,
			msg)
	}

	if r.NumAttrs() > 0 {
		output += " {"
		r.Attrs(func(a slog.Attr) bool {
			output += fmt.Sprintf(" %s=%v", a.Key, a.Value)
			return true
		})
		output += " }"
	}
	output += "\n"

	_, err := h.writer.Write([]byte(output))
	return err
}

func (h *CustomTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h // 简化实现
}

func (h *CustomTextHandler) WithGroup(name string) slog.Handler {
	return h // 简化实现
}

// Logger 日志记录器，控制台彩色文本输出，可选文件JSON输出
type Logger struct {
	config     Config
	textLogger *slog.Logger
	jsonLogger *slog.Logger
	logFile    *os.File
	mu         sync.RWMutex
}

// DefaultLogger 全局默认日志记录器
var DefaultLogger *Logger

func configLogLevelToSlogLevel(configLevel string) slog.Level {
	switch strings.ToLower(configLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 创建新的日志记录器。Dir 为空时仅输出到控制台。
func New(cfg Config) (*Logger, error) {
	slogLevel := configLogLevelToSlogLevel(cfg.Level)

	textHandler := &CustomTextHandler{
		writer: os.Stdout,
		level:  slogLevel,
	}

	logger := &Logger{
		config:     cfg,
		textLogger: slog.New(textHandler),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %v", err)
		}

		logPath := filepath.Join(cfg.Dir, cfg.File)
		file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %v", err)
		}

		logger.logFile = file
		logger.jsonLogger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{
			Level: slogLevel,
		}))

		logger.cleanOldLogs()
	}

	if DefaultLogger == nil {
		DefaultLogger = logger
	}
	return logger, nil
}

// cleanOldLogs 清理超过保留期的归档日志文件
func (l *Logger) cleanOldLogs() {
	entries, err := os.ReadDir(l.config.Dir)
	if err != nil {
		return
	}

	cutoffDate := time.Now().AddDate(0, 0, -logRetentionDays)
	baseFileName := strings.TrimSuffix(l.config.File, filepath.Ext(l.config.File))
	ext := filepath.Ext(l.config.File)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()
		if !strings.HasPrefix(fileName, baseFileName+"-") || !strings.HasSuffix(fileName, ext) {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(fileName, baseFileName+"-"), ext)
		fileDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoffDate) {
			_ = os.Remove(filepath.Join(l.config.Dir, fileName))
		}
	}
}

func (l *Logger) log(level slog.Level, msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ctx := context.Background()
	l.textLogger.Log(ctx, level, msg)
	if l.jsonLogger != nil {
		l.jsonLogger.Log(ctx, level, msg)
	}
}

// Debug 记录调试级别日志
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(slog.LevelDebug, sprintf(format, args...))
}

// Info 记录信息级别日志
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(slog.LevelInfo, sprintf(format, args...))
}

// Warn 记录警告级别日志
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(slog.LevelWarn, sprintf(format, args...))
}

// Error 记录错误级别日志
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(slog.LevelError, sprintf(format, args...))
}

// DebugTag 记录带模块标签的调试日志
func (l *Logger) DebugTag(tag, format string, args ...interface{}) {
	l.log(slog.LevelDebug, "["+tag+"] "+sprintf(format, args...))
}

// InfoTag 记录带模块标签的信息日志
func (l *Logger) InfoTag(tag, format string, args ...interface{}) {
	l.log(slog.LevelInfo, "["+tag+"] "+sprintf(format, args...))
}

// WarnTag 记录带模块标签的警告日志
func (l *Logger) WarnTag(tag, format string, args ...interface{}) {
	l.log(slog.LevelWarn, "["+tag+"] "+sprintf(format, args...))
}

// ErrorTag 记录带模块标签的错误日志
func (l *Logger) ErrorTag(tag, format string, args ...interface{}) {
	l.log(slog.LevelError, "["+tag+"] "+sprintf(format, args...))
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Slog 返回结构化日志记录器
func (l *Logger) Slog() *slog.Logger {
	return l.textLogger
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}
