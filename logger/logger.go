package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger. "production" emits JSON with ISO8601
// timestamps; anything else is the colourised development format. When
// shipper is non-nil every entry is also written to it as JSON.
func New(env string, shipper io.Writer) (*zap.Logger, error) {
	cfg := Config(env)
	if shipper == nil {
		return cfg.Build()
	}

	level := zap.NewAtomicLevelAt(cfg.Level.Level())
	var console zapcore.Encoder
	if env == "production" {
		console = zapcore.NewJSONEncoder(cfg.EncoderConfig)
	} else {
		console = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	}

	shipCfg := cfg.EncoderConfig
	shipCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewTee(
		zapcore.NewCore(console, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(shipCfg), zapcore.AddSync(shipper), level),
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// Config returns the zap config used for env.
func Config(env string) zap.Config {
	if env == "production" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}
