// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Setup applies level and output to logger. An empty file logs to stderr.
// The returned closer releases the log file and is never nil.
func Setup(logger *log.Logger, level, file string) (io.Closer, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nopCloser{}, err
	}

	logger.SetLevel(lvl)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if file == "" {
		logger.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nopCloser{}, fmt.Errorf("unable to create folder for log: %w", err)
		}
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
	}

	logger.SetOutput(f)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	logger.WithField("file", file).Debug("log to file started")
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
