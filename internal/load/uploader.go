package load

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/martagh/invoicedrive/internal/drive"
)

// Uploader stores one document in the remote store idempotently. The
// pre-existence check is the idempotency guarantee; re-running a batch
// with unchanged document names never creates duplicates.
type Uploader struct {
	store    Store
	creds    Credentials
	resolver *Resolver
	registry *Registry
	logger   *slog.Logger

	// stagingDir overrides the system temp directory. Tests point it at
	// a t.TempDir so leaked staging files are visible.
	stagingDir string
}

// NewUploader wires an uploader over the remote store, the credential
// session, a per-run folder resolver, and the cleanup registry.
func NewUploader(store Store, creds Credentials, resolver *Resolver, registry *Registry, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Uploader{
		store:    store,
		creds:    creds,
		resolver: resolver,
		registry: registry,
		logger:   logger,
	}
}

// Upload stores one document. An authorization failure (401/403) at any
// point invalidates the session, re-authenticates, and retries the whole
// attempt exactly once. The explicit two-pass loop makes the single-retry
// bound structural rather than recursive. A second authorization failure
// is terminal.
func (u *Uploader) Upload(ctx context.Context, item Item) (Outcome, error) {
	const maxPasses = 2

	for pass := 1; ; pass++ {
		outcome, err := u.tryUpload(ctx, item)
		if err == nil || !drive.IsAuthFailure(err) {
			return outcome, err
		}

		if pass >= maxPasses {
			return OutcomeFailed, fmt.Errorf("%w: authorization failed again after re-authentication: %w", ErrAuth, err)
		}

		u.logger.Warn("authorization failure, re-authenticating once",
			slog.String("name", item.Target.Name),
			slog.String("error", err.Error()),
		)

		u.creds.Invalidate()

		if authErr := u.creds.Authenticate(ctx); authErr != nil {
			return OutcomeFailed, fmt.Errorf("%w: re-authentication: %w", ErrAuth, authErr)
		}
	}
}

// tryUpload is one full upload attempt. Authorization failures are
// returned unwrapped so Upload can detect them; everything else is
// classified into the package's error taxonomy.
func (u *Uploader) tryUpload(ctx context.Context, item Item) (Outcome, error) {
	name := item.Target.Name

	if !u.creds.IsAuthenticated() {
		if err := u.creds.Authenticate(ctx); err != nil {
			return OutcomeFailed, fmt.Errorf("%w: %w", ErrAuth, err)
		}
	}

	folderID, err := u.resolver.Resolve(ctx, item.Target.Folder)
	if err != nil {
		return OutcomeFailed, err
	}

	existingID, err := u.store.FindFile(ctx, name, folderID)
	if err != nil {
		if drive.IsAuthFailure(err) {
			return OutcomeFailed, err
		}

		return OutcomeFailed, fmt.Errorf("%w: existence check for %s: %w", ErrTransfer, name, err)
	}

	if existingID != "" {
		u.logger.Info("document already exists, skipping",
			slog.String("name", name),
			slog.String("file_id", existingID),
		)

		return OutcomeSkippedExisting, nil
	}

	path, err := u.stage(item)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("load: staging %s: %w", name, err)
	}

	// Released on every exit path. Failure to release is never an item
	// failure; the upload may already have landed.
	defer u.registry.ReleaseNow(path)

	fileID, err := u.store.Upload(ctx, name, folderID, path)
	if err != nil {
		if drive.IsAuthFailure(err) {
			return OutcomeFailed, err
		}

		return OutcomeFailed, fmt.Errorf("%w: uploading %s: %w", ErrTransfer, name, err)
	}

	u.logger.Info("document uploaded",
		slog.String("name", name),
		slog.String("file_id", fileID),
	)

	return OutcomeUploaded, nil
}

// stage serializes the document to a uniquely named temp file. The random
// suffix keeps concurrent or retried attempts from interfering with each
// other's staging files.
func (u *Uploader) stage(item Item) (string, error) {
	data, err := json.MarshalIndent(item.Document, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing document: %w", err)
	}

	pattern := fmt.Sprintf("invoice-upload-%s-*.json", uuid.NewString()[:8])

	f, err := os.CreateTemp(u.stagingDir, pattern)
	if err != nil {
		return "", fmt.Errorf("creating staging file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		u.registry.ReleaseNow(f.Name())

		return "", fmt.Errorf("writing staging file: %w", err)
	}

	if err := f.Close(); err != nil {
		u.registry.ReleaseNow(f.Name())

		return "", fmt.Errorf("closing staging file: %w", err)
	}

	return f.Name(), nil
}
