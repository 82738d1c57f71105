package main

import (
	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/mcp"
	"github.com/claude/freelift/internal/records"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var migrationsPath string
	var remote string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Long:  "Serves the MCP tools over stdio, reading the local database or, with --remote, a FreeLift server's REST API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// stdout carries the protocol, so logs go to stderr.
			log := newLogger(cmd.ErrOrStderr(), cfg)
			c := clock.Real{}

			var ds mcp.DataSource
			if remote != "" {
				ds = mcp.NewHTTPClient(remote)
				log.Info("mcp reading remote server", "url", remote)
			} else {
				store, err := openStore(cmd.Context(), cfg, migrationsPath, log)
				if err != nil {
					return err
				}
				defer store.Close()
				ds = &mcp.Local{Store: store, Records: records.New(store, c, log), Clock: c}
			}

			return server.ServeStdio(mcp.New(ds, c, Version, log))
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "migrations", "migrations", "path to postgres migration files")
	cmd.Flags().StringVar(&remote, "remote", "", "base URL of a FreeLift server to read instead of the local database")
	return cmd
}
