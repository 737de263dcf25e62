package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martagh/invoicedrive/internal/drive"
	"github.com/martagh/invoicedrive/internal/extract"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify database and Drive connectivity",
		Long: "Pings the SQL Server source and makes an authenticated Drive API " +
			"call, without extracting or uploading anything.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd)
		},
	}
}

// runCheck exercises both ends of the pipeline with the cheapest possible
// calls. Both checks run even if the first fails, so one invocation reports
// everything that is broken.
func runCheck(cmd *cobra.Command) error {
	cfg := resolvedCfg
	logger := buildLogger()

	ctx := shutdownContext(cmd.Context(), logger)
	out := cmd.OutOrStdout()

	var failed bool

	db, err := sql.Open("sqlserver", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("opening database connection: %w", err)
	}
	defer db.Close()

	if err := extract.NewExtractor(db, cfg.Database.Query, logger).Ping(ctx); err != nil {
		failed = true

		fmt.Fprintf(out, "Database:  FAIL (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Database:  OK (%s/%s)\n", cfg.Database.Server, cfg.Database.Database)
	}

	creds := drive.NewCredentialStore(cfg.Drive.TokenPath, cfg.Drive.ClientID, cfg.Drive.ClientSecret, logger)
	client := drive.NewClient("", "", defaultHTTPClient(), creds, logger)

	if err := creds.Authenticate(ctx); err != nil {
		failed = true

		fmt.Fprintf(out, "Drive:     FAIL (%v)\n", err)
	} else if email, err := client.About(ctx); err != nil {
		failed = true

		fmt.Fprintf(out, "Drive:     FAIL (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Drive:     OK (%s)\n", email)
	}

	if failed {
		return fmt.Errorf("connectivity check failed")
	}

	return nil
}
