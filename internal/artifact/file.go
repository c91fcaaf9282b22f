package artifact

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FileStore keeps artifacts under a local directory.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "artifact: create store dir %s", root)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Exists implements Store.
func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "artifact: stat %s", key)
	}
	if info.IsDir() {
		return false, eris.Errorf("artifact: %s is a directory", key)
	}
	return true, nil
}

// Put writes to a temp file and renames it into place so readers never see
// a partial artifact.
func (s *FileStore) Put(_ context.Context, key string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return eris.Wrapf(err, "artifact: create dir for %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return eris.Wrapf(err, "artifact: temp file for %s", key)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "artifact: write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "artifact: close %s", key)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return eris.Wrapf(err, "artifact: rename %s", key)
	}
	return nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "key %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: open %s", key)
	}
	return f, nil
}
