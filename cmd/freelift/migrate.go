package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), cfg)
			store, err := openStore(cmd.Context(), cfg, migrationsPath, log)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s)\n", cfg.Database.Driver)
			return nil
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "migrations", "migrations", "path to postgres migration files")
	return cmd
}
