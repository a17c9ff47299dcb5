package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bulkverify/credits-portal/pkg/api_client/database"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/archive"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
	"github.com/bulkverify/credits-portal/pkg/api_client/repositories"
	"github.com/bulkverify/credits-portal/pkg/api_client/services"
	"github.com/bulkverify/credits-portal/pkg/config"
	"github.com/bulkverify/credits-portal/pkg/emailcsv"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "portalctl",
		Short:        "Operator tooling for the credits portal",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("PORTAL_CONFIG"), "path to the portal YAML config")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [csv]",
		Short: "Count valid, invalid and duplicate emails in a CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, _ := cmd.Flags().GetBool("header")
			verbose, _ := cmd.Flags().GetBool("invalid")
			return runParse(cmd.OutOrStdout(), args[0], header, verbose)
		},
	}
	cmd.Flags().Bool("header", false, "first row is a header")
	cmd.Flags().Bool("invalid", false, "list the invalid rows")
	return cmd
}

func runParse(w io.Writer, path string, hasHeader, listInvalid bool) error {
	res, err := emailcsv.ParseFile(path, emailcsv.Options{HasHeader: hasHeader})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "rows:       %d\n", res.Rows)
	fmt.Fprintf(w, "valid:      %d\n", len(res.Valid))
	fmt.Fprintf(w, "invalid:    %d\n", len(res.Invalid))
	fmt.Fprintf(w, "duplicates: %d\n", res.Duplicates)
	if listInvalid {
		for _, row := range res.Invalid {
			fmt.Fprintf(w, "  line %d: %q\n", row.Line, row.Value)
		}
	}
	return nil
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [csv]",
		Short: "Submit a CSV as a batch on behalf of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyID, _ := cmd.Flags().GetString("key")
			userID, _ := cmd.Flags().GetString("user")
			header, _ := cmd.Flags().GetBool("header")

			svc, err := batchService(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			summary, err := svc.SubmitCSV(cmd.Context(), userID, keyID, filepath.Base(args[0]), f, header)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().String("key", "", "API key id")
	cmd.Flags().String("user", "", "owner of the key")
	cmd.Flags().Bool("header", false, "first row is a header")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Poll every stale processing batch once",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := batchService(cmd)
			if err != nil {
				return err
			}
			n, err := svc.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d batches finished\n", n)
			return nil
		},
	}
}

func batchService(cmd *cobra.Command) (*services.BatchService, error) {
	_ = godotenv.Load()
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}

	keys := repositories.NewApiKeyRepository(db)
	return services.NewBatchService(keys, repositories.NewBatchRepository(db), vendors.RegistryFromConfig(cfg.Deeep, cfg.InstantEmail), results, services.BatchServiceConfig{
		PublicURL: cfg.Server.PublicURL,
		// the CLI exits right after submitting, so there is nothing to watch
		PollAttempts:   1,
		PollInterval:   cfg.Polling.Interval,
		ReconcileAfter: cfg.Polling.ReconcileAfter,
	}), nil
}
