package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/martagh/invoicedrive/internal/drive"
	"github.com/martagh/invoicedrive/internal/extract"
	"github.com/martagh/invoicedrive/internal/load"
	"github.com/martagh/invoicedrive/internal/transform"
)

// Sentinel outcomes surfaced to main() for exit-code selection.
var (
	errInterrupted = errors.New("run interrupted")
	errBatchFailed = errors.New("batch failed")
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Extract invoices and upload them to Drive",
		Long: "Runs the full job: queries invoice lines from SQL Server, groups them " +
			"into per-invoice JSON documents, and uploads each document to the " +
			"configured Drive folder. Documents that already exist are skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd)
		},
	}
}

// ensureSession establishes the Drive session up front, so a token that
// is missing or unrefreshable fails the run as a whole instead of failing
// every item one by one.
func ensureSession(ctx context.Context, creds load.Credentials) error {
	if err := creds.Authenticate(ctx); err != nil {
		return fmt.Errorf("establishing drive session: %w", err)
	}

	return nil
}

// runJob wires the three stages together and maps the batch summary to an
// exit condition. A partially failed batch still exits 0; only a batch where
// nothing landed is a job failure.
func runJob(cmd *cobra.Command) error {
	cfg := resolvedCfg
	logger := buildLogger()
	start := time.Now()

	ctx := shutdownContext(cmd.Context(), logger)

	db, err := sql.Open("sqlserver", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("opening database connection: %w", err)
	}
	defer db.Close()

	extractor := extract.NewExtractor(db, cfg.Database.Query, logger)

	if err := extractor.Ping(ctx); err != nil {
		return err
	}

	rows, err := extractor.Extract(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}

		return err
	}

	invoices := transform.ToInvoices(rows, logger)
	if len(invoices) == 0 {
		logger.Info("no invoices to upload")
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do: query returned no invoices")

		return nil
	}

	items := make([]load.Item, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, load.Item{
			Target: load.Target{
				Name:   transform.Filename(cfg.Drive.FilenameTemplate, inv.Reference()),
				Folder: cfg.Drive.Folder,
			},
			Document: inv,
		})
	}

	creds := drive.NewCredentialStore(cfg.Drive.TokenPath, cfg.Drive.ClientID, cfg.Drive.ClientSecret, logger)

	// Batch setup: a session that cannot be established at all aborts the
	// run before any item is attempted. Per-item authorization failures
	// are handled by the uploader's reauth cycle.
	if err := ensureSession(ctx, creds); err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}

		return err
	}

	client := drive.NewClient("", "", defaultHTTPClient(), creds, logger)

	registry := load.NewRegistry(logger)
	uploader := load.NewUploader(client, creds, load.NewResolver(client, logger), registry, logger)

	summary := load.NewCoordinator(uploader, registry, logger).Run(ctx, items)

	if ctx.Err() != nil {
		return errInterrupted
	}

	logger.Info("run finished", slog.Duration("elapsed", time.Since(start)))

	if !summary.OK() {
		return fmt.Errorf("%w: none of %d documents reached Drive", errBatchFailed, summary.Total)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Done: %d succeeded, %d failed, %d total\n",
		summary.Succeeded, summary.Failed, summary.Total)

	return nil
}
