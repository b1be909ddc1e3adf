package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Model   ModelConfig   `mapstructure:"model"`
	Preset  string        `mapstructure:"preset"`
	Matting MattingConfig `mapstructure:"matting"`
	Output  OutputConfig  `mapstructure:"output"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type ModelConfig struct {
	Name              string        `mapstructure:"name"`
	Fallback          string        `mapstructure:"fallback"`
	Home              string        `mapstructure:"home"`
	Backend           string        `mapstructure:"backend"` // onnx, remote, heuristic
	LibraryPath       string        `mapstructure:"library_path"`
	RemoteURL         string        `mapstructure:"remote_url"`
	RemoteTimeout     time.Duration `mapstructure:"remote_timeout"`
	AutoDownload      bool          `mapstructure:"auto_download"`
	IntraOpNumThreads int           `mapstructure:"intra_op_threads"`
	InterOpNumThreads int           `mapstructure:"inter_op_threads"`
}

type MattingConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	ForegroundThreshold int  `mapstructure:"foreground_threshold"`
	BackgroundThreshold int  `mapstructure:"background_threshold"`
	ErodeSize           int  `mapstructure:"erode_size"`
	PostProcessMask     bool `mapstructure:"post_process_mask"`
}

type OutputConfig struct {
	Width       int     `mapstructure:"width"`
	Height      int     `mapstructure:"height"`
	Padding     float64 `mapstructure:"padding"`
	RejectEmpty bool    `mapstructure:"reject_empty"`
}

type UploadConfig struct {
	MaxSize   int64 `mapstructure:"max_size"`
	MaxPixels int   `mapstructure:"max_pixels"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Preset is a named set of matting and output defaults.
type Preset struct {
	Matting MattingConfig
	Padding float64
}

// Presets: fullbleed fills the frame with aggressive matting, padded leaves a
// margin with softer matting.
var Presets = map[string]Preset{
	"fullbleed": {
		Matting: MattingConfig{Enabled: true, ForegroundThreshold: 270, BackgroundThreshold: 20, ErodeSize: 15},
		Padding: 1.0,
	},
	"padded": {
		Matting: MattingConfig{Enabled: true, ForegroundThreshold: 240, BackgroundThreshold: 10, ErodeSize: 10},
		Padding: 0.95,
	},
}

const defaultPreset = "fullbleed"

// Load reads configPath (YAML) on top of defaults and environment.
// An empty path skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyPreset(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New loads configPath, falling back to defaults plus environment only when
// the file does not exist. Any other error is returned.
func New(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if !isNotExist(err) {
		return nil, err
	}
	return Load("")
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}

func (c *Config) Validate() error {
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return fmt.Errorf("output size must be positive, got %dx%d", c.Output.Width, c.Output.Height)
	}
	if !(c.Output.Padding > 0 && c.Output.Padding <= 1) {
		return fmt.Errorf("output padding must be in (0,1], got %v", c.Output.Padding)
	}
	if c.Upload.MaxPixels <= 0 {
		return fmt.Errorf("upload.max_pixels must be positive, got %d", c.Upload.MaxPixels)
	}
	switch c.Model.Backend {
	case "onnx", "heuristic":
	case "remote":
		if c.Model.RemoteURL == "" {
			return fmt.Errorf("model.remote_url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown model backend %q", c.Model.Backend)
	}
	return nil
}

// Addr is the listen address for the configured port.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Server.Port, ":") {
		return c.Server.Port
	}
	return ":" + c.Server.Port
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("PRODUCTBG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "PORT", "PRODUCTBG_SERVER_PORT")
	_ = v.BindEnv("model.home", "U2NET_HOME", "PRODUCTBG_MODEL_HOME")
	_ = v.BindEnv("model.library_path", "ORT_LIBRARY_PATH", "PRODUCTBG_MODEL_LIBRARY_PATH")
}

// applyPreset registers the preset values as defaults, so explicit file or
// environment values still win.
func applyPreset(v *viper.Viper) error {
	name := v.GetString("preset")
	preset, ok := Presets[name]
	if !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	v.SetDefault("matting.enabled", preset.Matting.Enabled)
	v.SetDefault("matting.foreground_threshold", preset.Matting.ForegroundThreshold)
	v.SetDefault("matting.background_threshold", preset.Matting.BackgroundThreshold)
	v.SetDefault("matting.erode_size", preset.Matting.ErodeSize)
	v.SetDefault("output.padding", preset.Padding)
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("model.name", "isnet-general-use")
	v.SetDefault("model.fallback", "u2netp")
	v.SetDefault("model.home", "")
	v.SetDefault("model.backend", "onnx")
	v.SetDefault("model.library_path", "")
	v.SetDefault("model.remote_url", "")
	v.SetDefault("model.remote_timeout", 60*time.Second)
	v.SetDefault("model.auto_download", true)
	v.SetDefault("model.intra_op_threads", 2)
	v.SetDefault("model.inter_op_threads", 1)

	v.SetDefault("preset", defaultPreset)
	v.SetDefault("matting.post_process_mask", false)

	v.SetDefault("output.width", 1080)
	v.SetDefault("output.height", 1080)
	v.SetDefault("output.reject_empty", false)

	v.SetDefault("upload.max_size", 20*1024*1024)
	v.SetDefault("upload.max_pixels", 89478485)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
}
