// Package logger holds the process-wide zap logger used by the exporters.
package logger

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log discards everything until Init is called.
var Log = zap.NewNop()

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	}
}

// Init replaces Log with one writing to stderr at level ("debug", "info", "warn" or "error").
// A non-empty logFile adds a rotated file that also records the caller.
func Init(level string, logFile string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "log level")
	}

	console := encoderConfig()
	console.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stderr), lvl),
	}
	if logFile != "" {
		file := encoderConfig()
		file.CallerKey = "caller"
		file.EncodeCaller = zapcore.ShortCallerEncoder
		file.EncodeTime = zapcore.ISO8601TimeEncoder
		w := &lumberjack.Logger{Filename: logFile, MaxSize: 20, MaxBackups: 3, MaxAge: 7, Compress: true, LocalTime: true}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(file), zapcore.AddSync(w), lvl))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return nil
}

// Named returns a child of the current global logger.
func Named(name string) *zap.Logger {
	return Log.Named(name)
}

func Sync() {
	_ = Log.Sync()
}
