package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps objects on the local filesystem, for development and
// tests.  Keys map directly to paths under the root directory; presigned
// URLs degrade to plain file paths served by the download handler.
type LocalStore struct {
	root string
}

// NewLocalStore returns a LocalStore rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", dir, err)
	}
	return &LocalStore{root: dir}, nil
}

func (l *LocalStore) pathFor(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("storage: key escapes root: %s", key)
	}
	return filepath.Join(l.root, clean), nil
}

// Put writes an object under key and returns the key back.
func (l *LocalStore) Put(ctx context.Context, key, _ string, body io.Reader) (string, error) {
	path, err := l.pathFor(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return key, nil
}

// Delete removes an object.  An absent key is not an error.
func (l *LocalStore) Delete(_ context.Context, key string) error {
	path, err := l.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Copy duplicates srcKey into dstPrefix keeping the file name.
func (l *LocalStore) Copy(_ context.Context, srcKey, dstPrefix string) (string, error) {
	srcPath, err := l.pathFor(srcKey)
	if err != nil {
		return "", err
	}
	dstKey := strings.Trim(dstPrefix, "/") + "/" + FileNameOf(srcKey)
	dstPath, err := l.pathFor(dstKey)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: copy %s: %w", srcKey, err)
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("storage: copy %s: %w", srcKey, err)
	}
	defer src.Close()
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("storage: copy %s: %w", srcKey, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("storage: copy %s: %w", srcKey, err)
	}
	return dstKey, nil
}

// PresignGet has no signing to do locally; the returned URL is the path
// the download handler serves the file from.
func (l *LocalStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "/files/" + key, nil
}
