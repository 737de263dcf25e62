package load

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

// Defaults for staging-file deletion: 5 attempts with a linearly
// increasing delay, enough to absorb transient file-lock contention from
// scanners holding the file open briefly.
const (
	releaseAttempts  = 5
	releaseRetryStep = 100 * time.Millisecond
)

// Registry tracks staging files that could not be deleted immediately so
// they can be retried at the end of the run. In-memory only: paths still
// pending at process exit need external cleanup.
type Registry struct {
	logger    *slog.Logger
	attempts  uint64
	retryStep time.Duration
	pending   []string
}

// NewRegistry creates an empty cleanup registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger:    logger,
		attempts:  releaseAttempts,
		retryStep: releaseRetryStep,
	}
}

// linearBackoff waits retryStep after the first failure, 2*retryStep
// after the second, and so on.
func linearBackoff(step time.Duration) retry.Backoff {
	var attempt int64

	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * step, false
	})
}

// ReleaseNow deletes the staging file at path, retrying briefly on
// failure. On exhaustion the path is registered for deferred cleanup and
// false is returned; ReleaseNow never fails the surrounding upload, since
// the upload itself may already have succeeded. A path that is already
// gone counts as released.
//
// Deletion runs under context.Background() deliberately: staging files
// are released even when the run is being canceled.
func (r *Registry) ReleaseNow(path string) bool {
	backoff := retry.WithMaxRetries(r.attempts-1, linearBackoff(r.retryStep))

	err := retry.Do(context.Background(), backoff, func(_ context.Context) error {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return retry.RetryableError(rmErr)
		}

		return nil
	})
	if err != nil {
		r.pending = append(r.pending, path)
		r.logger.Warn("staging file deferred for later cleanup",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return false
	}

	return true
}

// Reconcile attempts one deletion pass over every registered path,
// dropping the ones that succeed. Paths still failing stay registered.
// Returns the number cleaned and the number remaining.
func (r *Registry) Reconcile() (cleaned, remaining int) {
	if len(r.pending) == 0 {
		return 0, 0
	}

	r.logger.Info("reconciling deferred staging files",
		slog.Int("pending", len(r.pending)),
	)

	var still []string

	for _, path := range r.pending {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			still = append(still, path)
			continue
		}

		cleaned++
	}

	r.pending = still

	if len(still) > 0 {
		r.logger.Warn("staging files still pending after reconciliation",
			slog.Int("remaining", len(still)),
		)
	}

	return cleaned, len(still)
}

// Pending returns the paths currently registered for deferred cleanup.
func (r *Registry) Pending() []string {
	return r.pending
}
