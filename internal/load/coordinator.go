package load

import (
	"context"
	"log/slog"
)

// Coordinator drives the uploader over a batch sequentially. Object
// counts are small and the API rate limits favor serialization, so there
// is no parallelism here.
type Coordinator struct {
	uploader *Uploader
	registry *Registry
	logger   *slog.Logger
}

// NewCoordinator wires a coordinator over an uploader and its cleanup
// registry.
func NewCoordinator(uploader *Uploader, registry *Registry, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		uploader: uploader,
		registry: registry,
		logger:   logger,
	}
}

// Run uploads every item and returns the aggregated summary. One bad
// document never stops the rest: every per-item error is logged and
// counted as failed. Skipped-existing items count as succeeded: the
// document is in the store, which is what the batch promises. After the
// loop, one reconciliation pass runs over deferred staging files.
// Cancellation is honored between items; items not attempted count as
// failed.
func (c *Coordinator) Run(ctx context.Context, items []Item) Summary {
	summary := Summary{Total: len(items)}

	for i, item := range items {
		if ctx.Err() != nil {
			remaining := len(items) - i
			summary.Failed += remaining

			c.logger.Warn("run canceled, remaining items not attempted",
				slog.Int("remaining", remaining),
			)

			break
		}

		outcome, err := c.uploader.Upload(ctx, item)

		switch outcome {
		case OutcomeUploaded, OutcomeSkippedExisting:
			summary.Succeeded++

			c.logger.Debug("item complete",
				slog.String("name", item.Target.Name),
				slog.String("outcome", outcome.String()),
			)
		default:
			summary.Failed++

			c.logger.Error("item failed",
				slog.String("name", item.Target.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	if cleaned, remaining := c.registry.Reconcile(); cleaned > 0 || remaining > 0 {
		c.logger.Info("deferred cleanup pass complete",
			slog.Int("cleaned", cleaned),
			slog.Int("remaining", remaining),
		)
	}

	c.logger.Info("batch complete",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("total", summary.Total),
	)

	return summary
}
