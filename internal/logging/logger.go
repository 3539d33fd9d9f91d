package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fileName = "statusboard.log"

type Options struct {
	Dir    string
	Level  zapcore.Level
	Stdout bool // tee to stdout, handy for local runs
}

// NewLogger writes JSON logs to a rotating file under logDir.
func NewLogger(logDir string) (*zap.Logger, error) {
	return New(Options{Dir: logDir, Level: zap.InfoLevel})
}

func New(opts Options) (*zap.Logger, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, fileName),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, opts.Level)}
	if opts.Stdout {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stdout), opts.Level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
