package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".config.yaml"

// Loader 负责加载配置文件并应用环境变量覆盖
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that reads from the default config file.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      defaultConfigFile,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load 读取配置文件，缺失时回退到默认配置，再应用环境变量覆盖。
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("未找到 .env 文件，使用系统环境变量")
		}
	}

	cfg := DefaultConfig()
	path := l.path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败 %s: %w", path, err)
		}
	case os.IsNotExist(err):
		path = "" // 使用默认配置
	default:
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", l.path, err)
	}

	applyEnvOverrides(cfg)

	if err := l.Validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

// applyEnvOverrides 环境变量优先于配置文件，便于部署时注入密钥
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("XIAOZHI_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("XIAOZHI_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("VISION_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("VISION_API_URL"); v != "" {
		cfg.Vision.APIURL = v
	}
	if v := os.Getenv("VISION_MODEL"); v != "" {
		cfg.Vision.Model = v
	}
}

// Validate 校验配置完整性
func (l *Loader) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("配置为空")
	}
	if cfg.Server.URL == "" {
		return fmt.Errorf("server.url 不能为空")
	}
	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate 必须大于 0")
	}
	if cfg.Audio.Channels <= 0 {
		return fmt.Errorf("audio.channels 必须大于 0")
	}
	if cfg.Vision.Enabled && cfg.Vision.APIKey == "" {
		// API key 缺失不阻止启动，视觉功能在运行时降级为禁用
		fmt.Println("视觉 API 密钥为空，视觉识别功能将被禁用")
		cfg.Vision.Enabled = false
	}
	return nil
}
