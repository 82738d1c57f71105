package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/freelift/internal/clock"
	"github.com/claude/freelift/internal/ingest/alpha"
	"github.com/claude/freelift/internal/mcp"
	"github.com/claude/freelift/internal/notify"
	"github.com/claude/freelift/internal/records"
	"github.com/claude/freelift/internal/server"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/stats"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"tailscale.com/tsnet"
)

func newServeCmd() *cobra.Command {
	var migrationsPath string
	var webDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, migrationsPath, webDir)
		},
	}

	cmd.Flags().StringVar(&migrationsPath, "migrations", "migrations", "path to postgres migration files")
	cmd.Flags().StringVar(&webDir, "web-dir", "", "directory of a built frontend to serve at /")
	return cmd
}

func runServe(cmd *cobra.Command, migrationsPath, webDir string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cmd.OutOrStdout(), cfg)
	log.Info("FreeLift starting", "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, migrationsPath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	c := clock.Real{}
	rec := records.New(store, c, log)

	var notifier notify.Notifier = notify.NewLog(log)
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.Multi{notifier, notify.NewWebhook(cfg.Notify.WebhookURL, log)}
		log.Info("webhook cues enabled")
	}

	mgr := session.New(store, rec, c, notifier, session.Config{
		DefaultRest: cfg.Session.DefaultRest(),
		PRBanner:    cfg.Session.PRBanner(),
	}, log)
	if w, err := mgr.Recover(ctx); err != nil {
		return fmt.Errorf("recover active workout: %w", err)
	} else if w != nil {
		log.Info("resumed active workout", "workout_id", w.ID, "name", w.Name)
	}
	heartbeat := mgr.Heartbeat(ctx, cfg.Session.Tick())

	refresher, err := stats.NewRefresher(store, c, cfg.Stats.RefreshSchedule, log)
	if err != nil {
		return err
	}
	go refresher.Run(ctx)

	srv := server.New(server.Deps{
		Store:   store,
		Session: mgr,
		Records: rec,
		Stats:   refresher,
		Alpha:   alpha.NewProvider(store, rec, log),
		Clock:   c,
	}, cfg.Auth.APIKey, log)

	mcpSrv := mcp.New(&mcp.Local{
		Store:     store,
		Records:   rec,
		Refresher: refresher,
		Session:   mgr,
		Clock:     c,
	}, c, Version, log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcpSrv))

	if webDir != "" {
		srv.SetFrontend(os.DirFS(webDir))
		log.Info("serving frontend", "dir", webDir)
	}

	// tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			return fmt.Errorf("tsnet start: %w", err)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			return fmt.Errorf("tsnet local client: %w", err)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			return fmt.Errorf("tsnet listen: %w", err)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			stop()
			<-heartbeat
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	stop()
	<-heartbeat
	log.Info("server stopped")
	return nil
}
