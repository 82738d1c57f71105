package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/freelift/internal/upload"
	"github.com/spf13/cobra"
)

func newUploadAlphaCmd() *cobra.Command {
	var serverURL, apiKey, stateDir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "upload-alpha <export dir>",
		Short: "Send new Alpha Progression exports in a folder to a FreeLift server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" && !dryRun {
				return fmt.Errorf("--server is required (or use --dry-run)")
			}
			if apiKey == "" {
				apiKey = os.Getenv("FREELIFT_AUTH_API_KEY")
			}
			if stateDir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("resolve home directory: %w", err)
				}
				stateDir = filepath.Join(home, ".freelift-upload")
			}

			info, err := os.Stat(args[0])
			if err != nil || !info.IsDir() {
				return fmt.Errorf("export directory %q not found", args[0])
			}

			log := newTextLogger(cmd.ErrOrStderr())
			state, err := upload.OpenStateDB(stateDir)
			if err != nil {
				return err
			}
			defer state.Close()

			var client *upload.Client
			if !dryRun {
				client = upload.NewClient(strings.TrimRight(serverURL, "/"), apiKey)
			}

			stats, runErr := upload.New(client, state, args[0], dryRun, log).Run(cmd.Context())
			printUploadStats(cmd, stats)
			return runErr
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "FreeLift server URL (e.g. https://freelift.tail1234.ts.net)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "import API key (defaults to $FREELIFT_AUTH_API_KEY)")
	cmd.Flags().StringVar(&stateDir, "state-dir", "", "where to remember sent files (default ~/.freelift-upload)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse exports but don't send them")
	return cmd
}

func printUploadStats(cmd *cobra.Command, stats *upload.Stats) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "=== Upload Summary ===")
	fmt.Fprintf(w, "  Files total:        %d\n", stats.FilesTotal)
	fmt.Fprintf(w, "  Files uploaded:     %d\n", stats.FilesUploaded)
	fmt.Fprintf(w, "  Files skipped:      %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Fprintf(w, "  Files errored:      %d\n", stats.FilesErrored)
	fmt.Fprintf(w, "  Sessions parsed:    %d\n", stats.SessionsParsed)
	fmt.Fprintf(w, "  Workouts inserted:  %d\n", stats.WorkoutsInserted)
	fmt.Fprintf(w, "  Workouts skipped:   %d\n", stats.WorkoutsSkipped)
	fmt.Fprintf(w, "  Records created:    %d\n", stats.RecordsCreated)
}
