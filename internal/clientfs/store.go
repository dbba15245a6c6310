// Package clientfs implements the per-user file tree served at /fs.
// Authorization keys are client uuids owned by the registry; the store only
// reads registry state, never mutates it.
package clientfs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxUploadSize is the PUT body limit.
const MaxUploadSize = 2 * 1024 * 1024

var (
	ErrEncoding         = errors.New("path component is not valid")
	ErrBadAuthorization = errors.New("key is not a registered client")
	ErrForbidden        = errors.New("key does not match the tree owner")
	ErrFileNotFound     = errors.New("file not found")
	ErrNotAFile         = errors.New("path is not a regular file")
)

// Authorizer resolves a file key to the owning client's name. The registry
// implements it.
type Authorizer interface {
	NameOf(id uuid.UUID) (string, bool)
}

// Store serves one user subtree per registered client under root.
type Store struct {
	root string
	auth Authorizer
}

// NewStore creates a file store rooted at root. Directories are created
// lazily on upload.
func NewStore(root string, auth Authorizer) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("file store root is required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	return &Store{root: root, auth: auth}, nil
}

// Root returns the configured root directory.
func (s *Store) Root() string {
	return s.root
}

// OpenResult is the opened file plus its size and base name for the
// response headers.
type OpenResult struct {
	File *os.File
	Name string
	Size int64
}

// Open authorizes key and opens owner's file at subpath for reading. Any
// registered key may read any owner's tree. The path must resolve to an
// existing regular file.
func (s *Store) Open(key uuid.UUID, owner, subpath string) (OpenResult, error) {
	if _, ok := s.auth.NameOf(key); !ok {
		return OpenResult{}, ErrBadAuthorization
	}
	target, err := s.resolve(owner, subpath)
	if err != nil {
		return OpenResult{}, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return OpenResult{}, ErrFileNotFound
	}
	if !info.Mode().IsRegular() {
		return OpenResult{}, ErrNotAFile
	}

	f, err := os.Open(target)
	if err != nil {
		return OpenResult{}, fmt.Errorf("open %s: %w", target, err)
	}
	slog.Debug("file opened", "owner", owner, "path", subpath, "size", info.Size())
	return OpenResult{File: f, Name: filepath.Base(target), Size: info.Size()}, nil
}

// Put authorizes key as owner and streams r into owner's tree at subpath,
// creating parent directories as needed. Existing files are truncated.
func (s *Store) Put(key uuid.UUID, owner, subpath string, r io.Reader) (int64, error) {
	if err := s.authorizeOwner(key, owner); err != nil {
		return 0, err
	}
	target, err := s.resolve(owner, subpath)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create directories for %s: %w", target, err)
	}
	f, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", target, err)
	}
	size, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		return size, fmt.Errorf("write %s: %w", target, copyErr)
	}
	if closeErr != nil {
		return size, fmt.Errorf("close %s: %w", target, closeErr)
	}

	slog.Info("file stored", "owner", owner, "path", subpath, "size", size)
	return size, nil
}

// Delete authorizes key as owner and removes the file at subpath.
func (s *Store) Delete(key uuid.UUID, owner, subpath string) error {
	if err := s.authorizeOwner(key, owner); err != nil {
		return err
	}
	target, err := s.resolve(owner, subpath)
	if err != nil {
		return err
	}

	info, err := os.Stat(target)
	if err != nil {
		return ErrFileNotFound
	}
	if !info.Mode().IsRegular() {
		return ErrNotAFile
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("remove %s: %w", target, err)
	}
	slog.Info("file deleted", "owner", owner, "path", subpath)
	return nil
}

func (s *Store) authorizeOwner(key uuid.UUID, owner string) error {
	name, ok := s.auth.NameOf(key)
	if !ok {
		return ErrBadAuthorization
	}
	if name != owner {
		return ErrForbidden
	}
	return nil
}

// resolve validates owner and subpath and joins them under the root.
// Anything that is not valid UTF-8 or tries to escape the owner's subtree
// is an encoding error.
func (s *Store) resolve(owner, subpath string) (string, error) {
	if owner == "" || !utf8.ValidString(owner) || !utf8.ValidString(subpath) {
		return "", ErrEncoding
	}
	subpath = path.Clean("/" + subpath)[1:]
	if subpath == "" || subpath == "." {
		return "", ErrEncoding
	}
	rel := filepath.FromSlash(subpath)
	if !filepath.IsLocal(rel) || !filepath.IsLocal(owner) {
		return "", ErrEncoding
	}
	return filepath.Join(s.root, owner, rel), nil
}
