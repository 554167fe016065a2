// internal/harvest/download.go
package harvest

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DownloadConfig describes the alternative acquisition path where the result
// view produces a file instead of a live table.
type DownloadConfig struct {
	// TableCheck is an element whose presence signals the result view is
	// ready for export.
	TableCheck Locator
	// Trigger starts the download.
	Trigger Locator
	// Filename is the name the remote application always downloads under.
	Filename string
	// RenamePattern builds the destination name; {day}, {month} and {year}
	// are substituted, defaulting to the current date when no target is
	// supplied.
	RenamePattern string
	// Directory is where the browser drops downloads and where the finalized
	// file stays.
	Directory string

	WaitTimeout time.Duration
	// PollInterval paces the filesystem polling. One second matches the
	// write granularity of the producing browser.
	PollInterval time.Duration
	// DownloadTimeout bounds how long the artifact may take to appear and
	// become unlocked.
	DownloadTimeout time.Duration
}

// DownloadArtifact records a finalized download. After a reported success the
// source path no longer exists; only the destination does.
type DownloadArtifact struct {
	SourcePath      string
	DestinationPath string
}

// Downloader triggers the export, waits out the asynchronous write, and
// renames the artifact to its deterministic destination name.
type Downloader struct {
	session Session
	waiter  *Waiter
	fs      Filesystem
	cfg     DownloadConfig
	logger  *zap.Logger

	// now is swapped in tests to pin the date defaults.
	now func() time.Time
}

func NewDownloader(session Session, waiter *Waiter, fs Filesystem, cfg DownloadConfig, logger *zap.Logger) *Downloader {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Downloader{
		session: session,
		waiter:  waiter,
		fs:      fs,
		cfg:     cfg,
		logger:  logger.Named("download"),
		now:     time.Now,
	}
}

// Run performs the full download path: readiness wait, trigger click,
// completion polling, rename. target may be nil, in which case the current
// date fills the name template.
func (d *Downloader) Run(ctx context.Context, target *NavigationTarget) (*DownloadArtifact, error) {
	if _, err := d.waiter.Await(ctx, Present(d.cfg.TableCheck), d.cfg.WaitTimeout); err != nil {
		return nil, fmt.Errorf("result view not ready for export: %w", err)
	}

	trigger, err := d.waiter.Await(ctx, Clickable(d.cfg.Trigger), d.cfg.WaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("download control: %w", err)
	}
	if err := d.session.Click(ctx, trigger); err != nil {
		return nil, fmt.Errorf("triggering download: %w", err)
	}
	d.logger.Info("Download triggered, polling for artifact", zap.String("filename", d.cfg.Filename))

	source := filepath.Join(d.cfg.Directory, d.cfg.Filename)
	if err := d.awaitComplete(ctx, source); err != nil {
		return nil, err
	}

	destination := filepath.Join(d.cfg.Directory, d.renderName(target))
	if err := d.fs.Rename(source, destination); err != nil {
		return nil, &FinalizationError{Source: source, Destination: destination, Err: err}
	}

	d.logger.Info("Download finalized", zap.String("path", destination))
	return &DownloadArtifact{SourcePath: source, DestinationPath: destination}, nil
}

// awaitComplete polls until the artifact exists and is no longer held by its
// writer. Existence alone is not completion: the browser writes in place, so
// an append-mode open doubles as a write-lock probe. A probe rejection means
// the write is still in flight and the poll continues.
func (d *Downloader) awaitComplete(ctx context.Context, path string) error {
	deadline := time.Now().Add(d.cfg.DownloadTimeout)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if d.fs.Exists(path) {
			handle, err := d.fs.OpenAppend(path)
			if err == nil {
				return handle.Close()
			}
			d.logger.Debug("Artifact still write-locked", zap.String("path", path), zap.Error(err))
		}
		if !time.Now().Before(deadline) {
			return &DownloadNotFoundError{Path: path, Timeout: d.cfg.DownloadTimeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// renderName expands the rename pattern, defaulting each field to the current
// date when the caller supplies no target.
func (d *Downloader) renderName(target *NavigationTarget) string {
	now := d.now()
	day := now.Format("02")
	month := now.Format("January")
	year := now.Format("2006")
	if target != nil {
		day = strconv.Itoa(target.Day)
		month = target.Month
		year = strconv.Itoa(target.Year)
	}
	return strings.NewReplacer(
		"{day}", day,
		"{month}", month,
		"{year}", year,
	).Replace(d.cfg.RenamePattern)
}
