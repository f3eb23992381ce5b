package logging

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Output returns stdout alone, or stdout tee'd with a size-rotated file when
// path is set. Limits below 1 fall back to 50MB and 3 backups; the config
// layer clamps them before they get here.
func Output(path string, maxSizeMB, maxBackups int) (io.Writer, io.Closer, error) {
	if path == "" {
		return os.Stdout, nopCloser{}, nil
	}
	if maxSizeMB < 1 {
		maxSizeMB = 50
	}
	if maxBackups < 1 {
		maxBackups = 3
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, err
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		LocalTime:  true,
	}
	return io.MultiWriter(os.Stdout, file), file, nil
}
