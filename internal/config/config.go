// Package config loads mudra settings from YAML files and MUDRA_ environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Gesture  GestureConfig  `mapstructure:"gesture"`
	Drawing  DrawingConfig  `mapstructure:"drawing"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Store    StoreConfig    `mapstructure:"store"`
	Tray     TrayConfig     `mapstructure:"tray"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

type CameraConfig struct {
	DeviceID    int           `mapstructure:"device_id"`
	Width       int           `mapstructure:"width"`
	Height      int           `mapstructure:"height"`
	Visible     bool          `mapstructure:"visible"`
	ActiveFPS   int           `mapstructure:"active_fps"`
	IdleFPS     int           `mapstructure:"idle_fps"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// MotionThreshold is the percentage of changed pixels that wakes
	// detection while idle. Zero detects on every idle frame.
	MotionThreshold float64 `mapstructure:"motion_threshold"`
}

type GestureConfig struct {
	// Hand is the physical hand used for drawing: "right" or "left".
	Hand           string  `mapstructure:"hand"`
	PinchThreshold float64 `mapstructure:"pinch_threshold"`
	OpenRatio      float64 `mapstructure:"open_ratio"`
	MinExtended    int     `mapstructure:"min_extended"`
}

type DrawingConfig struct {
	Color      string `mapstructure:"color"`
	LineWidth  int    `mapstructure:"line_width"`
	Background string `mapstructure:"background"`
}

type AnalysisConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Command, when set, runs a local model instead of calling Endpoint.
	Command       string        `mapstructure:"command"`
	Args          []string      `mapstructure:"args"`
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DefaultPrompt string        `mapstructure:"default_prompt"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type StoreConfig struct {
	// Path of the SQLite file. Empty means ~/.mudra/mudra.db.
	Path string `mapstructure:"path"`
}

type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// Load reads the YAML file at configPath on top of the defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

// New loads configPath and falls back to defaults (plus environment
// overrides) when the file cannot be read.
func New(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		cfg, err = decode(newViper())
		if err != nil {
			return Default()
		}
	}
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Camera: CameraConfig{
			DeviceID:        0,
			Width:           640,
			Height:          480,
			Visible:         true,
			ActiveFPS:       30,
			IdleFPS:         5,
			IdleTimeout:     2 * time.Second,
			MotionThreshold: 1,
		},
		Gesture: GestureConfig{
			Hand:           "right",
			PinchThreshold: 30,
			OpenRatio:      1.6,
			MinExtended:    4,
		},
		Drawing: DrawingConfig{
			Color:      "#FF0000",
			LineWidth:  12,
			Background: "white",
		},
		Analysis: AnalysisConfig{
			Enabled:       true,
			Endpoint:      "http://localhost:3000/moondream",
			Timeout:       2 * time.Minute,
			DefaultPrompt: "Describe the image",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     24 * time.Hour,
		},
		Tray: TrayConfig{Enabled: false},
		Log:  LogConfig{Mode: "debug"},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MUDRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.static_dir", d.Server.StaticDir)

	v.SetDefault("camera.device_id", d.Camera.DeviceID)
	v.SetDefault("camera.width", d.Camera.Width)
	v.SetDefault("camera.height", d.Camera.Height)
	v.SetDefault("camera.visible", d.Camera.Visible)
	v.SetDefault("camera.active_fps", d.Camera.ActiveFPS)
	v.SetDefault("camera.idle_fps", d.Camera.IdleFPS)
	v.SetDefault("camera.idle_timeout", d.Camera.IdleTimeout)
	v.SetDefault("camera.motion_threshold", d.Camera.MotionThreshold)

	v.SetDefault("gesture.hand", d.Gesture.Hand)
	v.SetDefault("gesture.pinch_threshold", d.Gesture.PinchThreshold)
	v.SetDefault("gesture.open_ratio", d.Gesture.OpenRatio)
	v.SetDefault("gesture.min_extended", d.Gesture.MinExtended)

	v.SetDefault("drawing.color", d.Drawing.Color)
	v.SetDefault("drawing.line_width", d.Drawing.LineWidth)
	v.SetDefault("drawing.background", d.Drawing.Background)

	v.SetDefault("analysis.enabled", d.Analysis.Enabled)
	v.SetDefault("analysis.command", d.Analysis.Command)
	v.SetDefault("analysis.args", d.Analysis.Args)
	v.SetDefault("analysis.endpoint", d.Analysis.Endpoint)
	v.SetDefault("analysis.timeout", d.Analysis.Timeout)
	v.SetDefault("analysis.default_prompt", d.Analysis.DefaultPrompt)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("tray.enabled", d.Tray.Enabled)
	v.SetDefault("log.mode", d.Log.Mode)
}
