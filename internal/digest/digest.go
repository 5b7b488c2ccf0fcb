// Package digest derives content-addressed storage paths for payloads and
// writes them into the storage directory.
package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

var sums = map[Algorithm]func([]byte) []byte{
	SHA1: func(b []byte) []byte {
		s := sha1.Sum(b)
		return s[:]
	},
	SHA256: func(b []byte) []byte {
		s := sha256.Sum256(b)
		return s[:]
	},
	BLAKE3: func(b []byte) []byte {
		s := blake3.Sum256(b)
		return s[:]
	},
}

// Algorithms lists the supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(sums))
	for a := range sums {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return names
}

func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(name)
	if _, ok := sums[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return a, nil
}

// Sum returns the lowercase hex digest of payload.
func (a Algorithm) Sum(payload []byte) (string, error) {
	f, ok := sums[a]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
	return hex.EncodeToString(f(payload)), nil
}

// Record is a payload paired with the path it is stored under.
type Record struct {
	Digest  string
	Path    string
	Content []byte
}

// Store places payloads under Dir, named by their digest.
type Store struct {
	Dir       string
	Algorithm Algorithm
}

func (s *Store) Path(digest string) string {
	return filepath.Join(s.Dir, digest)
}

// Record computes the digest of payload without touching the filesystem.
func (s *Store) Record(payload []byte) (*Record, error) {
	d, err := s.Algorithm.Sum(payload)
	if err != nil {
		return nil, err
	}
	return &Record{Digest: d, Path: s.Path(d), Content: payload}, nil
}

// Write stores the record's content, overwriting any file already at its
// path. Identical digests imply identical content.
func (s *Store) Write(r *Record) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	if err := os.WriteFile(r.Path, r.Content, 0644); err != nil {
		return fmt.Errorf("write %s: %w", r.Path, err)
	}
	return nil
}

// Exists reports whether a file is already stored at the record's path.
func (s *Store) Exists(r *Record) (bool, error) {
	_, err := os.Stat(r.Path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Remove deletes the record's file. A missing file is not an error.
func (s *Store) Remove(r *Record) error {
	if err := os.Remove(r.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", r.Path, err)
	}
	return nil
}
