package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Manager writes files under baseDir through a hidden staging directory so
// that readers never observe partial files.
type Manager struct {
	stagingRoot string
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		stagingRoot: filepath.Join(baseDir, ".staging"),
	}
}

func (m *Manager) StagingRoot() string {
	return m.stagingRoot
}

func (m *Manager) Prepare() error {
	return os.MkdirAll(m.stagingRoot, 0750)
}

// Staged is a fully written file waiting to be committed.
type Staged struct {
	Path        string
	ContentType string
	Size        int64
}

// DownloadToStaging streams url into a unique temp file under the staging root.
func (m *Manager) DownloadToStaging(ctx context.Context, client Downloader, url string) (*Staged, error) {
	if err := m.Prepare(); err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}

	f, err := os.CreateTemp(m.stagingRoot, "dl-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := f.Name()

	contentType, size, err := client.DownloadFile(ctx, url, f)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("downloading file: %w", err)
	}

	return &Staged{Path: tmpPath, ContentType: contentType, Size: size}, nil
}

// Commit moves a staged file to destPath.
func (m *Manager) Commit(s *Staged, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		_ = os.Remove(s.Path)
		return fmt.Errorf("creating directories: %w", err)
	}

	// Atomic rename
	if err := os.Rename(s.Path, destPath); err != nil {
		_ = os.Remove(s.Path)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// WriteFile writes data to destPath via a temp file and rename.
func (m *Manager) WriteFile(destPath string, data []byte) error {
	if err := m.Prepare(); err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}

	f, err := os.CreateTemp(m.stagingRoot, "wr-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	_, err = f.Write(data)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	return m.Commit(&Staged{Path: f.Name(), Size: int64(len(data))}, destPath)
}

func (m *Manager) Cleanup() error {
	return os.RemoveAll(m.stagingRoot)
}

// Downloader is an interface for downloading files (used for testing)
type Downloader interface {
	DownloadFile(ctx context.Context, url string, dest io.Writer) (contentType string, size int64, err error)
}
