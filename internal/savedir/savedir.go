// Package savedir manages the per-date-window filesystem layout: one
// directory per crawl window containing a cache/ subfolder with the row
// cache and the downloaded terminal exports.
package savedir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iantato/Ecophil-Scraper-API/internal/scrape"
)

const cacheSubdir = "cache"

// partialSuffix marks an in-flight Chrome download.
const partialSuffix = ".crdownload"

// Manager owns the data directory: downloads land directly under it and
// per-window save directories live under documents/.
type Manager struct {
	dataDir string
	logger  *zap.Logger
}

// NewManager creates a Manager rooted at the data directory.
func NewManager(dataDir string, logger *zap.Logger) *Manager {
	return &Manager{dataDir: dataDir, logger: logger}
}

// DataDir is where the browser drops downloaded files.
func (m *Manager) DataDir() string {
	return m.dataDir
}

// DocumentsDir is the parent of all save directories.
func (m *Manager) DocumentsDir() string {
	return filepath.Join(m.dataDir, "documents")
}

// EnsureSaveDir creates the save directory and its cache/ subfolder if they
// do not exist yet, returning the absolute save directory path.
func (m *Manager) EnsureSaveDir(name string) (string, error) {
	dir := filepath.Join(m.DocumentsDir(), name)
	if err := os.MkdirAll(filepath.Join(dir, cacheSubdir), 0o755); err != nil {
		return "", fmt.Errorf("create save directory %s: %w", name, err)
	}
	m.logger.Info("save directory initialized", zap.String("save_dir", name))
	return dir, nil
}

// CachePath resolves a file inside the save directory's cache subfolder.
func (m *Manager) CachePath(saveDir, filename string) string {
	return filepath.Join(m.DocumentsDir(), saveDir, cacheSubdir, filename)
}

// WaitForDownload polls until the named file has finished downloading into
// the data directory, returning its path. The wait gives up with
// scrape.ErrLoadingFailed once the budget elapses.
func (m *Manager) WaitForDownload(ctx context.Context, filename string, budget, poll time.Duration) (string, error) {
	path := filepath.Join(m.dataDir, filename)
	deadline := time.Now().Add(budget)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if done, err := downloadFinished(path); err != nil {
			return "", err
		} else if done {
			return path, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: download of %s", scrape.ErrLoadingFailed, filename)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func downloadFinished(path string) (bool, error) {
	if _, err := os.Stat(path + partialSuffix); err == nil {
		return false, nil
	}
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat download: %w", err)
	}
	return true, nil
}

// MoveExport relocates a downloaded export from the data directory into the
// save directory's cache subfolder under a new name.
func (m *Manager) MoveExport(downloadName, saveDir, destName string) error {
	src := filepath.Join(m.dataDir, downloadName)
	dst := m.CachePath(saveDir, destName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move export %s: %w", downloadName, err)
	}
	m.logger.Info("export moved",
		zap.String("export", destName),
		zap.String("save_dir", saveDir),
	)
	return nil
}

// ExportName maps a terminal company to its cached export filename.
func ExportName(company string) string {
	return strings.ToLower(company) + ".csv"
}
