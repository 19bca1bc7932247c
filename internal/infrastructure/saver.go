package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileSaver writes payloads to the incoming directory, then renames them into
// the completed directory so a completed file is never partial
type FileSaver struct {
	incomingDir  string
	completedDir string
	logger       *zap.Logger
}

// NewFileSaver creates a saver and its directories
func NewFileSaver(incomingDir, completedDir string, logger *zap.Logger) (*FileSaver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{incomingDir, completedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &FileSaver{
		incomingDir:  incomingDir,
		completedDir: completedDir,
		logger:       logger,
	}, nil
}

// CompletedDir returns where saved files land
func (s *FileSaver) CompletedDir() string {
	return s.completedDir
}

// Save writes payload under filename and returns the final path. An existing
// file is never overwritten; a numeric suffix is added instead.
func (s *FileSaver) Save(ctx context.Context, filename string, payload []byte) (string, error) {
	name, err := sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.incomingDir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to write payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to sync payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to close payload: %w", err)
	}

	target, err := s.reserve(name)
	if err != nil {
		cleanup()
		return "", err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(target)
		cleanup()
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	s.logger.Info("Saved file",
		zap.String("path", target),
		zap.Int("bytes", len(payload)))
	return target, nil
}

// reserve claims a free path in the completed directory by creating it exclusively
func (s *FileSaver) reserve(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		path := filepath.Join(s.completedDir, candidate)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to reserve %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("no free name for %s", name)
}

func sanitizeFilename(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/")))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '|', '?', '*', 0:
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return name, nil
}
