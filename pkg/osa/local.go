package osa

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/andalabs/andadb/internal/errors"
)

// LocalStore is a filesystem-backed Store rooted at a base directory,
// used by cmd/andadb when no external object-store adapter is configured.
// Writes are atomic per object via temp-file-then-rename, the same
// pattern the teacher uses for config/session persistence.
type LocalStore struct {
	root string
	mu   sync.Mutex
}

// NewLocalStore creates a LocalStore rooted at root, creating the
// directory if it does not exist.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(errors.Io, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) resolve(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// Put implements Store.
func (s *LocalStore) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.Cancelled, err)
	}
	full := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrap(errors.Io, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(errors.Io, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.Io, err)
	}
	return nil
}

// Get implements Store.
func (s *LocalStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.Cancelled, err)
	}
	data, err := os.ReadFile(s.resolve(path))
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("object %q not found", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.Io, err)
	}
	return data, nil
}

// OpenRead implements Reader, streaming the blob from disk.
func (s *LocalStore) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.Cancelled, err)
	}
	f, err := os.Open(s.resolve(path))
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("object %q not found", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.Io, err)
	}
	return f, nil
}

// List implements Store, returning paths with the given prefix in
// lexical order. Prefix is interpreted relative to the store root.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.Cancelled, err)
	}
	var out []string
	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := filepath.ToSlash(strings.TrimPrefix(p, s.root+string(filepath.Separator)))
		if strings.HasSuffix(rel, ".tmp") {
			return nil
		}
		if strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.Io, err)
	}
	sort.Strings(out)
	return out, nil
}

// Delete implements Store. Deleting a missing path is not an error.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.Cancelled, err)
	}
	if err := os.Remove(s.resolve(path)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.Io, err)
	}
	return nil
}

// Rename implements Store.
func (s *LocalStore) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.Cancelled, err)
	}
	full := s.resolve(newPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrap(errors.Io, err)
	}
	if err := os.Rename(s.resolve(oldPath), full); err != nil {
		return errors.Wrap(errors.Io, err)
	}
	return nil
}

// Exists implements Store.
func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.Wrap(errors.Cancelled, err)
	}
	_, err := os.Stat(s.resolve(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.Io, err)
	}
	return true, nil
}

var _ Store = (*LocalStore)(nil)
var _ Reader = (*LocalStore)(nil)
