// Package mirror publishes catalog snapshots to a remote blob store under
// optimistic concurrency control.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lithiumhub/lithium/backend/internal/model"
	"github.com/lithiumhub/lithium/backend/internal/remote"
)

// ErrConflict is returned when the remote content changed between reading
// its revision and writing. No automatic retry happens here: the caller
// gets an explicit signal and may re-trigger the sync.
var ErrConflict = errors.New("sync conflict: remote catalog changed")

// DefaultTimeout bounds the remote leg of a sync (revision fetch + write).
const DefaultTimeout = 30 * time.Second

// Catalog is the slice of the catalog store a Syncer needs.
type Catalog interface {
	List(ctx context.Context, ownerID string) ([]model.Download, error)
}

// Syncer serializes the catalog and writes it to one remote path.
type Syncer struct {
	catalog Catalog
	blob    remote.BlobStore
	path    string
	timeout time.Duration
}

// NewSyncer creates a Syncer targeting path in blob.
func NewSyncer(catalog Catalog, blob remote.BlobStore, path string) *Syncer {
	return &Syncer{
		catalog: catalog,
		blob:    blob,
		path:    path,
		timeout: DefaultTimeout,
	}
}

// Snapshot renders entries as the canonical remote form: newest-first,
// stable key order, two-space indent for human-diffable commits.
func Snapshot(entries []model.Download) ([]byte, error) {
	if entries == nil {
		entries = []model.Download{}
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return payload, nil
}

// Sync publishes a point-in-time snapshot of the catalog (ownerID's slice,
// or the full catalog for "") to the remote path.
//
// The revision token observed before the write is the only serialization
// mechanism: two concurrent syncs may read the same token, and exactly one
// write wins while the loser gets ErrConflict. A missing remote path is a
// benign create; any other revision-lookup failure aborts the sync as a
// transport error, because treating it as "does not exist" would turn an
// outage into an unconditional overwrite.
func (s *Syncer) Sync(ctx context.Context, ownerID string) error {
	entries, err := s.catalog.List(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	payload, err := Snapshot(entries)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	revision, err := s.blob.GetRevision(ctx, s.path)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		revision = ""
	case err != nil:
		return asTransport("get revision", err)
	}

	if _, err := s.blob.Put(ctx, s.path, payload, revision); err != nil {
		if errors.Is(err, remote.ErrRevisionConflict) {
			return ErrConflict
		}
		return asTransport("put", err)
	}
	return nil
}

// asTransport keeps *remote.TransportError intact and wraps anything else
// (e.g. a context deadline) into one, so callers see a single failure
// class for everything that is not a conflict.
func asTransport(op string, err error) error {
	var te *remote.TransportError
	if errors.As(err, &te) {
		return te
	}
	return &remote.TransportError{Op: op, Err: err}
}
