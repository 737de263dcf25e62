package load

import (
	"context"
	"fmt"
	"log/slog"
)

// Resolver maps a folder name to its remote ID, creating the folder when
// absent. Resolutions are cached for the life of the Resolver (one run),
// so each folder costs at most one lookup/create round trip per run.
// Staleness within a run is accepted; folder names are operator
// controlled and a run is short-lived.
type Resolver struct {
	store  Store
	cache  map[string]string
	logger *slog.Logger
}

// NewResolver creates a resolver with an empty cache.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		store:  store,
		cache:  make(map[string]string),
		logger: logger,
	}
}

// Resolve returns the remote ID for folder, creating it when no folder
// with that name exists. Nothing is cached on error. Duplicate-named
// remote folders are not disambiguated: the first match wins.
func (r *Resolver) Resolve(ctx context.Context, folder string) (string, error) {
	if id, ok := r.cache[folder]; ok {
		return id, nil
	}

	id, err := r.store.FindFolder(ctx, folder)
	if err != nil {
		return "", fmt.Errorf("%w: looking up folder %q: %w", ErrDirectory, folder, err)
	}

	if id == "" {
		id, err = r.store.CreateFolder(ctx, folder)
		if err != nil {
			return "", fmt.Errorf("%w: creating folder %q: %w", ErrDirectory, folder, err)
		}

		r.logger.Info("created destination folder",
			slog.String("folder", folder),
			slog.String("folder_id", id),
		)
	}

	r.cache[folder] = id

	return id, nil
}
