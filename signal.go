package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels on the first
// SIGINT/SIGTERM so the batch can finish its current item and run the
// deferred-cleanup pass. A second signal force-exits for when something
// hangs mid-drain.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		draining := false

		for {
			select {
			case sig := <-sigCh:
				if !draining {
					draining = true

					logger.Info("received signal, finishing current item before exit",
						slog.String("signal", sig.String()),
					)
					cancel()

					continue
				}

				logger.Warn("received second signal, forcing exit",
					slog.String("signal", sig.String()),
				)
				os.Exit(exitInterrupted)

			case <-parent.Done():
				return
			}
		}
	}()

	return ctx
}
