// Package github mirrors catalog snapshots into a file in a GitHub
// repository through the contents API. The file's git blob SHA is the
// revision token: the API rejects a PUT whose sha no longer matches.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v68/github"
	"github.com/lithiumhub/lithium/backend/internal/remote"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds every contents API call.
const DefaultTimeout = 15 * time.Second

// Store implements remote.BlobStore against a single repository branch.
type Store struct {
	client *gh.Client
	owner  string
	repo   string
	branch string
}

// New creates a Store authenticated with a personal access token.
func New(token, owner, repo, branch string) *Store {
	tc := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	))
	tc.Timeout = DefaultTimeout
	return &Store{
		client: gh.NewClient(tc),
		owner:  owner,
		repo:   repo,
		branch: branch,
	}
}

// GetRevision fetches the blob SHA of the file at path. Only an HTTP 404
// maps to remote.ErrNotFound; everything else (auth, network, timeout)
// stays a transport error so a failed lookup can never masquerade as
// "create" and clobber concurrent writers.
func (s *Store) GetRevision(ctx context.Context, path string) (string, error) {
	opts := &gh.RepositoryContentGetOptions{Ref: s.branch}
	fc, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", remote.ErrNotFound
		}
		return "", &remote.TransportError{Op: "get revision", Detail: apiDetail(err), Err: err}
	}
	if fc == nil {
		return "", &remote.TransportError{Op: "get revision", Detail: fmt.Sprintf("%s is a directory", path)}
	}
	return fc.GetSHA(), nil
}

// Put writes content to path. With an expected revision the write goes
// through the update endpoint carrying the sha precondition; without one
// it creates the file, which the API rejects if the path already exists.
func (s *Store) Put(ctx context.Context, path string, content []byte, expectedRevision string) (string, error) {
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(fmt.Sprintf("Sync %s - %s", path, time.Now().Format(time.RFC3339))),
		Content: content,
		Branch:  gh.Ptr(s.branch),
	}

	var (
		res  *gh.RepositoryContentResponse
		resp *gh.Response
		err  error
	)
	if expectedRevision != "" {
		opts.SHA = gh.Ptr(expectedRevision)
		res, resp, err = s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, path, opts)
	} else {
		res, resp, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, path, opts)
	}
	if err != nil {
		if isRevisionConflict(resp, err) {
			return "", remote.ErrRevisionConflict
		}
		return "", &remote.TransportError{Op: "put", Detail: apiDetail(err), Err: err}
	}
	return res.Content.GetSHA(), nil
}

// isRevisionConflict classifies a failed PUT. The contents API answers
// 409 for a stale sha and 422 for a missing-but-required one.
func isRevisionConflict(resp *gh.Response, err error) bool {
	if resp != nil {
		return resp.StatusCode == http.StatusConflict ||
			resp.StatusCode == http.StatusUnprocessableEntity
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == http.StatusConflict ||
			ghErr.Response.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

// apiDetail extracts the provider's own message when one exists.
func apiDetail(err error) string {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Message
	}
	return ""
}
