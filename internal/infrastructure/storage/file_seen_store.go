package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"PaperDigest/internal/ports"
)

// FileSeenStore keeps processed identifiers in an append-only text file, one per line.
type FileSeenStore struct {
	path string
}

var _ ports.SeenStore = (*FileSeenStore)(nil)

// NewFileSeenStore points the store at path; the file is created on first MarkSeen.
func NewFileSeenStore(path string) *FileSeenStore {
	return &FileSeenStore{path: path}
}

// Path returns the backing file location.
func (s *FileSeenStore) Path() string {
	return s.path
}

// Load reads every identifier; a missing file means nothing has been seen yet.
func (s *FileSeenStore) Load(ctx context.Context) (map[string]struct{}, error) {
	seen := map[string]struct{}{}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return seen, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seen file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := strings.TrimSpace(sc.Text())
		if id == "" {
			continue
		}
		seen[id] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seen file: %w", err)
	}

	return seen, nil
}

// MarkSeen appends id as a new line. Callers check membership first.
func (s *FileSeenStore) MarkSeen(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create seen dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open seen file: %w", err)
	}

	if _, err := f.WriteString(id + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append seen id %s: %w", id, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close seen file: %w", err)
	}
	return nil
}
