// Package config loads config.yaml, applies .env and GAZE_* overrides, and
// validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"UnityGaze/calibration"
	"UnityGaze/engine"
	"UnityGaze/logger"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "GAZE_"

type CameraConfig struct {
	Device int `yaml:"device" validate:"gte=0"`
}

type ConsumerConfig struct {
	Host         string        `yaml:"host" validate:"required"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	SendInterval time.Duration `yaml:"sendInterval" validate:"gt=0"`
}

func (c ConsumerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ScreenConfig struct {
	Width  int  `yaml:"width" validate:"gt=0"`
	Height int  `yaml:"height" validate:"gt=0"`
	Clamp  bool `yaml:"clamp"`
}

type CalibrationConfig struct {
	HistorySize int     `yaml:"historySize" validate:"gt=0"`
	TargetRatio float64 `yaml:"targetRatio" validate:"gt=0,lt=1"`
	Continuous  bool    `yaml:"continuous"`
}

type GazeConfig struct {
	CenterAdjust float64 `yaml:"centerAdjust"`
	Mirror       *bool   `yaml:"mirror"`
}

type DisplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
}

type RegServerConfig struct {
	Use  bool   `yaml:"use"`
	Host string `yaml:"host" validate:"required_if=Use true"`
	Port int    `yaml:"port" validate:"required_if=Use true,gte=0,max=65535"`
}

type LogConfig struct {
	Development bool              `yaml:"development"`
	File        logger.FileConfig `yaml:"file"`
}

type Config struct {
	Camera      CameraConfig         `yaml:"camera"`
	Consumer    ConsumerConfig       `yaml:"consumer"`
	Screen      ScreenConfig         `yaml:"screen"`
	Detector    engine.BackendConfig `yaml:"detector"`
	Calibration CalibrationConfig    `yaml:"calibration"`
	Gaze        GazeConfig           `yaml:"gaze"`
	Display     DisplayConfig        `yaml:"display"`
	StatusPort  int                  `yaml:"statusPort" validate:"omitempty,min=1,max=65535"`
	MetricsPort int                  `yaml:"metricsPort" validate:"omitempty,min=1,max=65535"`
	RPCPort     int                  `yaml:"RPCPort" validate:"omitempty,min=1,max=65535"`
	RegServer   RegServerConfig      `yaml:"regServer"`
	Log         LogConfig            `yaml:"log"`
}

// MirrorEnabled defaults to true when unset.
func (c *Config) MirrorEnabled() bool {
	return c.Gaze.Mirror == nil || *c.Gaze.Mirror
}

func Default() Config {
	return Config{
		Consumer: ConsumerConfig{
			Host:         "127.0.0.1",
			Port:         5500,
			SendInterval: 500 * time.Millisecond,
		},
		Screen: ScreenConfig{Width: 1920, Height: 1080},
		Detector: engine.BackendConfig{
			UseBackend:        "cascade",
			CascadePath:       "haarcascade_frontalface_default.xml",
			PigoCascadePath:   "facefinder",
			LandmarkModelPath: "models/landmarks68.onnx",
			LandmarkInputSize: engine.DefaultLandmarkInputSize,
		},
		Calibration: CalibrationConfig{
			HistorySize: calibration.DefaultHistorySize,
			TargetRatio: calibration.DefaultTargetRatio,
		},
		Gaze:        GazeConfig{CenterAdjust: engine.DefaultCenterAdjust},
		Display:     DisplayConfig{Enabled: true, Title: "UnityGaze"},
		StatusPort:  8080,
		MetricsPort: 9100,
		RPCPort:     50051,
	}
}

// Load reads path over the defaults. A missing file keeps the defaults; a
// missing .env is ignored.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(&cfg)
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv overrides the settings most often changed per machine.
func applyEnv(cfg *Config) error {
	ints := map[string]*int{
		"CAMERA_DEVICE": &cfg.Camera.Device,
		"CONSUMER_PORT": &cfg.Consumer.Port,
		"SCREEN_WIDTH":  &cfg.Screen.Width,
		"SCREEN_HEIGHT": &cfg.Screen.Height,
		"STATUS_PORT":   &cfg.StatusPort,
		"METRICS_PORT":  &cfg.MetricsPort,
		"RPC_PORT":      &cfg.RPCPort,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}
	if v, ok := lookup("CONSUMER_HOST"); ok {
		cfg.Consumer.Host = v
	}
	if v, ok := lookup("DETECTOR_BACKEND"); ok {
		cfg.Detector.UseBackend = v
	}
	if v, ok := lookup("LANDMARK_MODEL"); ok {
		cfg.Detector.LandmarkModelPath = v
	}
	if v, ok := lookup("DISPLAY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDISPLAY: %w", EnvPrefix, err)
		}
		cfg.Display.Enabled = b
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
