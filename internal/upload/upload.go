// Package upload syncs a folder of Alpha Progression CSV exports to a
// remote FreeLift server, skipping files it already sent.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/freelift/internal/ingest/alpha"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	SessionsParsed   int
	WorkoutsInserted int
	WorkoutsSkipped  int
	RecordsCreated   int
}

// Uploader walks an export directory and POSTs each new .csv file.
type Uploader struct {
	client *Client
	state  *StateDB
	dir    string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. client may be nil in dry-run mode.
func New(client *Client, state *StateDB, dir string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		dir:    dir,
		dryRun: dryRun,
		log:    log,
	}
}

// Run sends every export under the directory that the state database has
// not seen with the same content. Files that fail to read or parse are
// counted and skipped; a server refusal stops the run.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := exportFiles(u.dir)
	if err != nil {
		return &u.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		u.stats.FilesTotal++

		relPath, _ := filepath.Rel(u.dir, f)
		data, err := os.ReadFile(f)
		if err != nil {
			u.log.Warn("read failed", "file", f, "error", err)
			u.stats.FilesErrored++
			continue
		}
		hash := hashBytes(data)

		uploaded, err := u.state.IsUploaded(relPath, hash)
		if err != nil {
			u.log.Warn("state check failed", "file", f, "error", err)
			u.stats.FilesErrored++
			continue
		}
		if uploaded {
			u.stats.FilesSkipped++
			continue
		}

		// Parse locally first so a broken file never reaches the server.
		sessions, err := alpha.Parse(bytes.NewReader(data))
		if err != nil {
			u.log.Warn("parse failed", "file", f, "error", err)
			u.stats.FilesErrored++
			continue
		}
		u.stats.SessionsParsed += len(sessions)

		if u.dryRun {
			u.log.Info("dry-run: would send", "file", relPath, "sessions", len(sessions))
			continue
		}

		result, err := u.client.SendAlphaExport(ctx, data)
		if err != nil {
			u.stats.FilesErrored++
			return &u.stats, fmt.Errorf("sending %s: %w", relPath, err)
		}
		u.stats.WorkoutsInserted += result.WorkoutsInserted
		u.stats.WorkoutsSkipped += result.WorkoutsSkipped
		u.stats.RecordsCreated += result.RecordsCreated

		if err := u.state.MarkUploaded(relPath, hash, result.WorkoutsInserted); err != nil {
			u.log.Warn("failed to mark uploaded", "file", relPath, "error", err)
		}
		u.stats.FilesUploaded++
		u.log.Info("uploaded export",
			"file", relPath,
			"workouts_inserted", result.WorkoutsInserted,
			"records_created", result.RecordsCreated,
		)
	}

	return &u.stats, nil
}

// exportFiles lists .csv files under dir in lexical order, which for the
// app's dated file names is also chronological.
func exportFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
