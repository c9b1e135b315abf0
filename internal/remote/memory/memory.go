// Package memory is an in-process remote.BlobStore with the same
// optimistic-concurrency semantics as the GitHub backend. Used by tests
// and dev mode.
package memory

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sync"

	"github.com/lithiumhub/lithium/backend/internal/remote"
)

// Store implements remote.BlobStore over a map.
type Store struct {
	mu      sync.Mutex
	objects map[string]object

	// FailWith, when set, makes every call return it as a transport
	// error. Lets tests exercise the lookup-failure path.
	FailWith error
}

type object struct {
	content  []byte
	revision string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{objects: make(map[string]object)}
}

// revisionOf derives the token the way git derives a blob SHA, so tokens
// change exactly when content changes.
func revisionOf(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// GetRevision returns the current revision token for path.
func (s *Store) GetRevision(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return "", &remote.TransportError{Op: "get revision", Err: s.FailWith}
	}
	obj, ok := s.objects[path]
	if !ok {
		return "", remote.ErrNotFound
	}
	return obj.revision, nil
}

// Put stores content under path if expectedRevision matches the current
// state: empty means "path must not exist yet".
func (s *Store) Put(ctx context.Context, path string, content []byte, expectedRevision string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return "", &remote.TransportError{Op: "put", Err: s.FailWith}
	}

	obj, exists := s.objects[path]
	if expectedRevision == "" && exists {
		return "", remote.ErrRevisionConflict
	}
	if expectedRevision != "" && (!exists || obj.revision != expectedRevision) {
		return "", remote.ErrRevisionConflict
	}

	rev := revisionOf(content)
	s.objects[path] = object{content: append([]byte(nil), content...), revision: rev}
	return rev, nil
}

// Content returns the stored bytes for path, for test assertions.
func (s *Store) Content(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.content...), true
}
