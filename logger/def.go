package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// FileConfig enables a rotating log file next to the console output.
type FileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// InitProduction 初始化一个 production logger（供 main 调用）
func InitProduction() error {
	return Init(false, FileConfig{})
}

// InitDevelopment 初始化一个 development logger（更友好地输出到控制台）
func InitDevelopment() error {
	return Init(true, FileConfig{})
}

// Init builds the process logger. With file.Path set, every entry is also
// written as JSON to a lumberjack rotated file.
func Init(development bool, file FileConfig) error {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	if file.Path != "" {
		l = l.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore(cfg, file))
		}))
	}
	setLogger(l)
	return nil
}

func fileCore(cfg zap.Config, file FileConfig) zapcore.Core {
	w := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   file.Compress,
		LocalTime:  true,
	}
	enc := cfg.EncoderConfig
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), cfg.Level)
}

// setLogger 内部设置并替换 zap 全局 logger
func setLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
	sugar = l.Sugar()
}

// Log 返回 *zap.Logger（非 nil）
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// S 返回 *zap.SugaredLogger（非 nil）
func S() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	if sugar != nil {
		return sugar
	}
	return zap.S()
}

// Sync flush logs
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}

// Fatal logs msg and exits; resource failures end the process.
func Fatal(msg string, fields ...zap.Field) {
	Log().Error(msg, fields...)
	Sync()
	os.Exit(1)
}
