package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wellness-kit/order-intake/internal/session"
)

// loadFile reads path from disk into a fresh session.
func (a *app) loadFile(ctx context.Context, path string) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, withCode(exitIO, err)
	}
	if int64(len(data)) > a.cfg.Upload.MaxFileSize {
		return nil, withCode(exitIO, fmt.Errorf("%s exceeds max size of %d bytes", path, a.cfg.Upload.MaxFileSize))
	}

	s := session.New(a.fence)
	if _, err := s.Load(ctx, session.Upload{Filename: filepath.Base(path), Data: data}); err != nil {
		return nil, withCode(exitIO, err)
	}
	return s, nil
}

// writeOutput writes text to path, or to the command's stdout when path is
// empty or "-".
func writeOutput(path, text string, stdout func(string) error) error {
	if path == "" || path == "-" {
		return stdout(text)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return withCode(exitIO, err)
	}
	return nil
}
