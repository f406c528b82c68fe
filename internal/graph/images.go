package graph

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	billy "github.com/go-git/go-billy/v5"
)

// ImageReadError reports an embedded image that could not be read.
type ImageReadError struct {
	Path string
	Err  error
}

func (e *ImageReadError) Error() string {
	return fmt.Sprintf("read image %s: %v", e.Path, e.Err)
}

func (e *ImageReadError) Unwrap() error { return e.Err }

// ImageStore maps the content hash of an image to the absolute path it was
// read from. Byte-identical images share one entry.
type ImageStore struct {
	fs    billy.Filesystem
	mu    sync.Mutex
	paths map[string]string
}

// NewImageStore creates an empty store reading images from fs.
func NewImageStore(fs billy.Filesystem) *ImageStore {
	return &ImageStore{
		fs:    fs,
		paths: make(map[string]string),
	}
}

// HashAndRegister reads baseDir/relPath, records its hash and returns it.
// When two paths hold identical bytes the last one registered wins.
func (s *ImageStore) HashAndRegister(baseDir, relPath string) (string, error) {
	hash, abs, err := s.Hash(baseDir, relPath)
	if err != nil {
		return "", err
	}
	s.Register(hash, abs)
	return hash, nil
}

// Hash reads baseDir/relPath and returns its hash and absolute path without
// recording anything.
func (s *ImageStore) Hash(baseDir, relPath string) (hash, abs string, err error) {
	p := s.fs.Join(baseDir, relPath)

	f, err := s.fs.Open(p)
	if err != nil {
		return "", "", &ImageReadError{Path: p, Err: err}
	}
	defer func() { _ = f.Close() }()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", "", &ImageReadError{Path: p, Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), filepath.Join(s.fs.Root(), p), nil
}

// Register records abs as the location of hash.
func (s *ImageStore) Register(hash, abs string) {
	s.mu.Lock()
	s.paths[hash] = abs
	s.mu.Unlock()
}

// Lookup returns the absolute path registered for hash.
func (s *ImageStore) Lookup(hash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[hash]
	return p, ok
}

// Len returns the number of distinct images.
func (s *ImageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

// freeze hands the underlying map over to a snapshot.
func (s *ImageStore) freeze() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.paths
	s.paths = make(map[string]string)
	return m
}
