package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shariqriazz/ocaauth/internal/auth/oca"
	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/util"
	log "github.com/sirupsen/logrus"
)

// FileTokenStore persists credentials as JSON files in a directory. It stands
// in for the host store when the CLI runs on its own.
type FileTokenStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileTokenStore creates a store rooted at dir, or the default auth dir.
func NewFileTokenStore(dir string) *FileTokenStore {
	s := &FileTokenStore{}
	s.SetBaseDir(dir)
	return s
}

// SetBaseDir changes the directory, expanding a leading ~.
func (s *FileTokenStore) SetBaseDir(dir string) {
	if dir == "" {
		dir = config.DefaultAuthDir
	}
	resolved, err := util.ResolveAuthDir(dir)
	if err != nil {
		log.Warnf("file store: %v, using %s as is", err, dir)
		resolved = dir
	}
	s.mu.Lock()
	s.baseDir = resolved
	s.mu.Unlock()
}

// BaseDir returns the directory holding credential files.
func (s *FileTokenStore) BaseDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseDir
}

func (s *FileTokenStore) path(id string) string {
	return filepath.Join(s.baseDir, oca.CredentialFileName(id))
}

// Get implements Store.
func (s *FileTokenStore) Get(_ context.Context, id string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("file store: read %s: %w", id, err)
	}
	var cred Credential
	if errUnmarshal := json.Unmarshal(data, &cred); errUnmarshal != nil {
		return nil, fmt.Errorf("file store: decode %s: %w", id, errUnmarshal)
	}
	return &cred, nil
}

// Set implements Persister. Files are written atomically with 0600 permissions.
func (s *FileTokenStore) Set(_ context.Context, id string, cred *Credential) error {
	if errValidate := cred.Validate(); errValidate != nil {
		return fmt.Errorf("file store: %w", errValidate)
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: encode %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if errMkdir := os.MkdirAll(s.baseDir, 0o700); errMkdir != nil {
		return fmt.Errorf("file store: create dir: %w", errMkdir)
	}
	target := s.path(id)
	tmp, errTemp := os.CreateTemp(s.baseDir, ".cred-*")
	if errTemp != nil {
		return fmt.Errorf("file store: temp file: %w", errTemp)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, errWrite := tmp.Write(append(data, '\n')); errWrite != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: write %s: %w", id, errWrite)
	}
	if errChmod := tmp.Chmod(0o600); errChmod != nil {
		log.Debugf("file store: chmod %s: %v", tmpName, errChmod)
	}
	if errClose := tmp.Close(); errClose != nil {
		return fmt.Errorf("file store: close %s: %w", id, errClose)
	}
	if errRename := os.Rename(tmpName, target); errRename != nil {
		return fmt.Errorf("file store: rename %s: %w", id, errRename)
	}
	log.Debugf("file store: saved %s credential to %s", cred.Type, target)
	return nil
}

// Delete implements Store. Missing files are not an error.
func (s *FileTokenStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file store: delete %s: %w", id, err)
	}
	return nil
}
