package env

import (
	"fmt"

	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileMaxSizeMB  = 100
	logFileMaxBackups = 10
	logFileMaxAgeDays = 28
)

func MakeLogger(conf *Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(conf.LogLevel)); err != nil {
		return nil, fmt.Errorf("%w: log level %q", ErrInvalidConfig, conf.LogLevel)
	}

	if conf.LogFile != "" {
		return makeFileLogger(conf.LogFile, level), nil
	}

	logConfig := zap.NewProductionConfig()
	logConfig.Level = level
	logConfig.Encoding = "json"

	return logConfig.Build()
}

func makeFileLogger(filename string, level zap.AtomicLevel) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		MaxAge:     logFileMaxAgeDays,
		Compress:   true,
	})

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, level)

	return zap.New(core, zap.AddCaller())
}
