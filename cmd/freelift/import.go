package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/ingest/alpha"
	"github.com/claude/freelift/internal/records"
	"github.com/spf13/cobra"
)

func newImportAlphaCmd() *cobra.Command {
	var migrationsPath string

	cmd := &cobra.Command{
		Use:   "import-alpha <export.csv>",
		Short: "Import an Alpha Progression CSV export as finished workouts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), cfg)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open export: %w", err)
			}
			defer f.Close()

			store, err := openStore(cmd.Context(), cfg, migrationsPath, log)
			if err != nil {
				return err
			}
			defer store.Close()

			provider := alpha.NewProvider(store, records.New(store, clock.Real{}, log), log)
			result, err := provider.Ingest(cmd.Context(), f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "migrations", "migrations", "path to postgres migration files")
	return cmd
}
