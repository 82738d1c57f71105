package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/records"
	"github.com/spf13/cobra"
)

func newAuditPRsCmd() *cobra.Command {
	var migrationsPath string
	var strict bool

	cmd := &cobra.Command{
		Use:   "audit-prs",
		Short: "Compare stored personal records with a scan of completed sets",
		Long:  "Scans every workout for the heaviest completed set per exercise and reports exercises whose stored record disagrees. Stored records are never changed.",
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

			results, err := records.New(store, clock.Real{}, log).AuditAll(cmd.Context())
			if err != nil {
				return err
			}
			exercises, err := store.ListExercises(cmd.Context())
			if err != nil {
				return err
			}
			names := map[string]string{}
			for _, e := range exercises {
				names[e.ID.String()] = e.Name
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EXERCISE\tSTORED\tSCANNED\tOK")
			bad := 0
			for _, r := range results {
				if !r.Consistent {
					bad++
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", names[r.ExerciseID.String()], kg(r.Stored), kg(r.Computed), r.Consistent)
			}
			tw.Flush()

			if strict && bad > 0 {
				return fmt.Errorf("%d exercises disagree with their stored record", bad)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "migrations", "migrations", "path to postgres migration files")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any record disagrees")
	return cmd
}

func kg(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g kg", *v)
}
