// Package load is the upload reliability layer: it gets a batch of
// invoice documents into the remote store exactly once each, surviving
// transient API failures, authorization expiry, and local staging-file
// contention. Extraction and transformation are upstream collaborators;
// this package only sees ready documents and a destination folder.
package load

import (
	"context"
	"errors"
)

// Target names one document's destination: a filename unique within the
// remote folder.
type Target struct {
	Name   string
	Folder string
}

// Item pairs an upload target with its document. Document must serialize
// losslessly to JSON.
type Item struct {
	Target   Target
	Document any
}

// Outcome is the terminal result of one upload.
type Outcome int

const (
	// OutcomeFailed means the item was not stored; the paired error
	// carries the reason.
	OutcomeFailed Outcome = iota
	// OutcomeUploaded means a new remote object was created.
	OutcomeUploaded
	// OutcomeSkippedExisting means an object with the same name already
	// existed, so nothing was uploaded. This existence check is the sole
	// idempotency guarantee: a name collision with different content
	// keeps the old object.
	OutcomeSkippedExisting
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeSkippedExisting:
		return "skipped_existing"
	default:
		return "failed"
	}
}

// Summary aggregates per-item outcomes over a batch.
type Summary struct {
	Succeeded int
	Failed    int
	Total     int
}

// OK reports overall batch success: an empty batch, or at least one item
// stored. Only a batch where every item failed counts as a failure.
func (s Summary) OK() bool {
	return s.Total == 0 || s.Succeeded > 0
}

// Error taxonomy for failed items. Wrapped with %w so callers can
// classify with errors.Is.
var (
	// ErrAuth marks a failure to establish or re-establish a session.
	// Terminal for the item after one re-authentication cycle.
	ErrAuth = errors.New("load: authentication failed")
	// ErrDirectory marks a remote folder lookup/create failure.
	ErrDirectory = errors.New("load: folder resolution failed")
	// ErrTransfer marks a transfer failure: retry ceiling exhausted on
	// transient errors, or a non-retryable HTTP failure.
	ErrTransfer = errors.New("load: transfer failed")
)

// Store is the remote object store boundary consumed by this package.
// Find methods return "" when nothing matches. drive.Client is the real
// implementation.
type Store interface {
	FindFolder(ctx context.Context, name string) (string, error)
	CreateFolder(ctx context.Context, name string) (string, error)
	FindFile(ctx context.Context, name, folderID string) (string, error)
	Upload(ctx context.Context, name, folderID, path string) (string, error)
}

// Credentials is the session contract consumed by the uploader.
// drive.CredentialStore is the real implementation.
type Credentials interface {
	IsAuthenticated() bool
	Authenticate(ctx context.Context) error
	Invalidate()
}
