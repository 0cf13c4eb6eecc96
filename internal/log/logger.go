package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger flavour. Env "prod" gives JSON output at info;
// anything else gives colored console output at debug. A non-empty Level
// overrides the env default.
type Options struct {
	Env     string
	Service string
	Level   string
}

func (o Options) config() (zap.Config, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	level := zapcore.DebugLevel
	if o.Env == "prod" {
		config = zap.NewProductionConfig()
		level = zapcore.InfoLevel
	}

	if o.Level != "" {
		parsed, err := zapcore.ParseLevel(o.Level)
		if err != nil {
			return zap.Config{}, fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
		level = parsed
	}
	config.Level = zap.NewAtomicLevelAt(level)

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	if o.Service != "" {
		config.InitialFields = map[string]interface{}{"service": o.Service}
	}
	return config, nil
}

func NewLogger(opts Options) (*zap.Logger, error) {
	config, err := opts.config()
	if err != nil {
		return nil, err
	}
	return config.Build()
}

func NewSugar(opts Options) (*zap.SugaredLogger, error) {
	logger, err := NewLogger(opts)
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
