package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"mail-sticky-go/internal/config"
)

// Setup configures the standard logrus logger to write JSON lines to stdout and to a
// size-rotated log file. The returned closer flushes the rotating file.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.File == "" {
		logrus.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, rotator))
	logrus.Infof("Log file: %s", cfg.File)
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
