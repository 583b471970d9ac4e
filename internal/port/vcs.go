package port

import "context"

// VCSProvider abstracts fetching a remote repository.
type VCSProvider interface {
	// Clone makes a shallow (latest revision only) copy of url into dest.
	// On failure the returned error is a *FetchError carrying the tool's stderr.
	Clone(ctx context.Context, url string, dest string) error
}
