package bootstrap

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/asaskevich/EventBus"
	"golang.org/x/sync/errgroup"

	"xiaozhi-vision-go/internal/core/protocol"
	"xiaozhi-vision-go/internal/display"
	"xiaozhi-vision-go/internal/domain/camera"
	"xiaozhi-vision-go/internal/domain/keyword"
	"xiaozhi-vision-go/internal/domain/session"
	"xiaozhi-vision-go/internal/domain/speech"
	"xiaozhi-vision-go/internal/domain/vision"
	"xiaozhi-vision-go/internal/platform/config"
	xerr "xiaozhi-vision-go/internal/platform/errors"
	"xiaozhi-vision-go/internal/platform/logging"
	"xiaozhi-vision-go/internal/platform/sysinfo"
)

const tagBoot = "引导"

// Run 按固定顺序完成初始化并进入运行循环：
// 配置 → 日志 → 主机诊断 → 组件装配 → 信号处理 → 会话运行。
func Run(configPath string) error {
	loaded, err := config.NewLoader().WithPath(configPath).Load()
	if err != nil {
		return xerr.Wrap(xerr.KindBootstrap, "bootstrap.Run", "加载配置失败", err)
	}
	cfg := loaded.Config

	logger, err := logging.New(logging.Config{
		Level: cfg.Log.Level,
		Dir:   cfg.Log.Dir,
		File:  cfg.Log.File,
	})
	if err != nil {
		return xerr.Wrap(xerr.KindBootstrap, "bootstrap.Run", "初始化日志失败", err)
	}
	defer logger.Close()
	logging.DefaultLogger = logger

	if loaded.Path != "" {
		logger.InfoTag(tagBoot, "已加载配置 %s", loaded.Path)
	} else {
		logger.InfoTag(tagBoot, "未找到配置文件，使用默认配置")
	}
	sysinfo.Log(logger)

	sess, console, err := assemble(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := console.Start(); err != nil {
		return xerr.Wrap(xerr.KindBootstrap, "bootstrap.Run", "启动显示层失败", err)
	}
	defer console.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(gctx)
	})
	g.Go(func() error {
		return console.ReadInput(gctx)
	})

	err = g.Wait()
	sess.Shutdown()

	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		logger.InfoTag(tagBoot, "正常退出")
		return nil
	}
	return err
}

// assemble 装配全部组件并构建会话单例
func assemble(cfg *config.Config, logger *logging.Logger) (*session.Session, *display.Console, error) {
	matcher := keyword.NewMatcher(cfg.Vision)

	driver := camera.NewSimDriver(cfg.Camera.FrameWidth, cfg.Camera.FrameHeight)
	cam := camera.NewController(driver, cfg.Camera.Index, logger)

	var analyzer session.Analyzer
	if cfg.Vision.Enabled {
		a, err := vision.NewAnalyzer(cfg.Vision, logger)
		if err != nil {
			return nil, nil, xerr.Wrap(xerr.KindBootstrap, "bootstrap.assemble", "初始化视觉分析器失败", err)
		}
		analyzer = a
		logger.InfoTag(tagBoot, "视觉识别已启用，模型 %s", cfg.Vision.Model)
	} else {
		logger.InfoTag(tagBoot, "视觉识别未启用")
	}

	synth := speech.NewSynthesizer(cfg.TTS, cfg.Audio, logger)
	player := speech.NewPlayer(speech.NullSink{}, logger)
	client := protocol.NewWebSocketClient(cfg.Server, cfg.Audio, logger)
	bus := EventBus.New()

	sess, err := session.New(client, session.Deps{
		Matcher:       matcher,
		Camera:        cam,
		Analyzer:      analyzer,
		Synthesizer:   synth,
		Player:        player,
		Logger:        logger,
		DefaultPrompt: cfg.Vision.DefaultPrompt,
		VisionTimeout: cfg.Vision.Timeout,
		Reconnect: session.ReconnectPolicy{
			MaxAttempts: cfg.Server.Reconnect.MaxRetries,
			Interval:    cfg.Server.Reconnect.Interval,
		},
	}, bus, logger)
	if err != nil {
		return nil, nil, err
	}

	console := display.NewConsole(bus, sess, logger)
	return sess, console, nil
}
