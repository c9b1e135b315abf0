// Package remote defines the blob store the catalog is mirrored to.
package remote

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by GetRevision when the path does not exist.
	// This is the only lookup failure callers may treat as "create the
	// path"; every other failure must stay a transport error.
	ErrNotFound = errors.New("remote path not found")

	// ErrRevisionConflict is returned by Put when the supplied revision no
	// longer matches the remote content (a concurrent writer won).
	ErrRevisionConflict = errors.New("remote revision conflict")
)

// TransportError is any remote failure that is neither "not found" nor a
// revision conflict: auth rejected, network unreachable, quota, timeout.
// Detail carries the provider's diagnostic verbatim for operator
// visibility.
type TransportError struct {
	Op     string
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("remote %s failed: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BlobStore is a remote store addressed by path, guarded by opaque
// revision tokens (optimistic concurrency).
type BlobStore interface {
	// GetRevision returns the revision token of the content currently at
	// path. A missing path is ErrNotFound; any other failure is a
	// *TransportError. Implementations must never collapse the two.
	GetRevision(ctx context.Context, path string) (string, error)

	// Put writes content to path and returns the new revision token.
	// expectedRevision must be the token last observed for the path, or
	// empty to create it. A stale or wrongly absent token is
	// ErrRevisionConflict; any other failure is a *TransportError.
	Put(ctx context.Context, path string, content []byte, expectedRevision string) (string, error)
}
