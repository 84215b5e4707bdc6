package files

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var ErrPathOutsideRoot = errors.New("path escapes storage root")

// Store deletes photo files for the cascade-deletion fan-out. Callers
// treat failures as non-fatal; a leaked file is preferable to an
// aborted deletion.
type Store interface {
	Delete(path string) error
}

type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Delete(path string) error {
	full := filepath.Join(s.root, filepath.Clean("/"+path))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return ErrPathOutsideRoot
	}
	err := os.Remove(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
