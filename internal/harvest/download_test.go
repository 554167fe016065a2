// internal/harvest/download_test.go
package harvest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	locExportCheck   Locator = `//table[@id="results"]/tbody/tr`
	locExportTrigger Locator = `//button[@id="export"]`
)

func testDownloadConfig() DownloadConfig {
	return DownloadConfig{
		TableCheck:      locExportCheck,
		Trigger:         locExportTrigger,
		Filename:        "QuickAnalysis.xlsx",
		RenamePattern:   "QuickAnalysis_{day}_{month}_{year}.xlsx",
		Directory:       "downloads",
		WaitTimeout:     100 * time.Millisecond,
		PollInterval:    2 * time.Millisecond,
		DownloadTimeout: 200 * time.Millisecond,
	}
}

// downloadFixture wires a ready result view, a download control and a
// scripted download directory.
func newDownloadFixture() (*fakeSession, *fakeFS) {
	session := newFakeSession()
	session.add(locExportCheck, nil)
	session.add(locExportTrigger, nil)
	return session, newFakeFS()
}

func newTestDownloader(session *fakeSession, fs *fakeFS, cfg DownloadConfig) *Downloader {
	return NewDownloader(session, NewWaiter(session, testPoll), fs, cfg, zap.NewNop())
}

func TestDownloadWaitsOutWriteLock(t *testing.T) {
	session, fs := newDownloadFixture()
	source := filepath.Join("downloads", "QuickAnalysis.xlsx")
	fs.files[source] = true
	fs.lockedPolls = 3

	d := newTestDownloader(session, fs, testDownloadConfig())
	artifact, err := d.Run(context.Background(), &NavigationTarget{Day: 15, Month: "marzo", Year: 2025})
	require.NoError(t, err)

	assert.Equal(t, 1, session.clickCount(locExportTrigger))
	assert.Equal(t, 4, fs.probes, "three rejected probes, then the successful one")

	want := filepath.Join("downloads", "QuickAnalysis_15_marzo_2025.xlsx")
	assert.Equal(t, want, artifact.DestinationPath)
	assert.Equal(t, source, artifact.SourcePath)

	// The rename is atomic from the caller's perspective: after success the
	// source is gone and only the destination exists.
	assert.False(t, fs.files[source])
	assert.True(t, fs.files[want])
}

func TestDownloadWaitsForArtifactToAppear(t *testing.T) {
	session, fs := newDownloadFixture()
	fs.appearAfterPolls = 2

	d := newTestDownloader(session, fs, testDownloadConfig())
	artifact, err := d.Run(context.Background(), &NavigationTarget{Day: 1, Month: "enero", Year: 2026})
	require.NoError(t, err)
	assert.True(t, fs.files[artifact.DestinationPath])
}

func TestDownloadTimesOut(t *testing.T) {
	session, fs := newDownloadFixture()
	cfg := testDownloadConfig()
	cfg.DownloadTimeout = 10 * time.Millisecond

	d := newTestDownloader(session, fs, cfg)
	_, err := d.Run(context.Background(), nil)

	var notFound *DownloadNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, filepath.Join("downloads", "QuickAnalysis.xlsx"), notFound.Path)
	assert.Equal(t, cfg.DownloadTimeout, notFound.Timeout)
}

func TestDownloadNeverUnlockedTimesOut(t *testing.T) {
	session, fs := newDownloadFixture()
	source := filepath.Join("downloads", "QuickAnalysis.xlsx")
	fs.files[source] = true
	fs.lockedPolls = 1 << 30

	cfg := testDownloadConfig()
	cfg.DownloadTimeout = 10 * time.Millisecond

	d := newTestDownloader(session, fs, cfg)
	_, err := d.Run(context.Background(), nil)

	var notFound *DownloadNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.True(t, fs.files[source], "artifact must be left in place on failure")
}

func TestDownloadRenameFailureSurfaces(t *testing.T) {
	session, fs := newDownloadFixture()
	source := filepath.Join("downloads", "QuickAnalysis.xlsx")
	fs.files[source] = true
	fs.renameErr = errors.New("device busy")

	d := newTestDownloader(session, fs, testDownloadConfig())
	_, err := d.Run(context.Background(), &NavigationTarget{Day: 15, Month: "marzo", Year: 2025})

	var final *FinalizationError
	require.ErrorAs(t, err, &final)
	assert.Equal(t, source, final.Source)
	assert.Contains(t, final.Destination, "QuickAnalysis_15_marzo_2025.xlsx")
	assert.ErrorIs(t, err, fs.renameErr)
}

func TestDownloadDefaultsNameToCurrentDate(t *testing.T) {
	session, fs := newDownloadFixture()
	source := filepath.Join("downloads", "QuickAnalysis.xlsx")
	fs.files[source] = true

	d := newTestDownloader(session, fs, testDownloadConfig())
	d.now = func() time.Time { return time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC) }

	artifact, err := d.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("downloads", "QuickAnalysis_15_March_2025.xlsx"), artifact.DestinationPath)
}

func TestDownloadFailsWhenResultViewNotReady(t *testing.T) {
	session := newFakeSession()
	session.add(locExportTrigger, nil)
	cfg := testDownloadConfig()
	cfg.WaitTimeout = 20 * time.Millisecond

	d := newTestDownloader(session, newFakeFS(), cfg)
	_, err := d.Run(context.Background(), nil)

	var timeout *WaitTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 0, session.clickCount(locExportTrigger), "no trigger before readiness")
}
