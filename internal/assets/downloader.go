package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/ytchat-downloader/internal/staging"
)

var ErrBadAssetURL = errors.New("asset url has no file name")

var knownExtensions = map[string]string{
	"image/jpeg":    "jpeg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/avif":    "avif",
	"image/svg+xml": "svg",
}

// Extension maps a Content-Type to a file extension without the dot. Unknown
// types map to "dat".
func Extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "dat"
	}
	if ext, ok := knownExtensions[mediaType]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "dat"
}

// Sidecar is the small JSON file stored under the asset's bare name. It
// points at the file holding the image bytes.
type Sidecar struct {
	File string `json:"file"`
	Mime string `json:"mime"`
}

// FileDownloader stores an asset as <dir>/<name>.<ext> plus a sidecar at
// <dir>/<name>. An existing sidecar is treated as a cache hit.
type FileDownloader struct {
	client  staging.Downloader
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewFileDownloader(client staging.Downloader, ratePerSec int, logger *zap.Logger) *FileDownloader {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &FileDownloader{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		logger:  logger,
	}
}

// Download fetches rawURL into dir and returns the sidecar path.
func (d *FileDownloader) Download(ctx context.Context, rawURL, dir string) (string, error) {
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}
	name, err := FileName(rawURL)
	if err != nil {
		return "", err
	}

	sidecarPath := filepath.Join(dir, name)
	if info, err := os.Stat(sidecarPath); err == nil && info.Mode().IsRegular() {
		d.logger.Debug("asset cached", zap.String("path", sidecarPath))
		return sidecarPath, nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	mgr := staging.NewManager(dir)
	staged, err := mgr.DownloadToStaging(ctx, d.client, rawURL)
	if err != nil {
		return "", err
	}

	fileName := name + "." + Extension(staged.ContentType)
	if err := mgr.Commit(staged, filepath.Join(dir, fileName)); err != nil {
		return "", err
	}

	meta, err := json.Marshal(Sidecar{File: fileName, Mime: staged.ContentType})
	if err != nil {
		return "", fmt.Errorf("encoding sidecar: %w", err)
	}
	if err := mgr.WriteFile(sidecarPath, append(meta, '\n')); err != nil {
		return "", err
	}

	d.logger.Debug("asset stored",
		zap.String("url", rawURL),
		zap.String("file", fileName),
		zap.Int64("bytes", staged.Size))
	return sidecarPath, nil
}

// FileName derives the on-disk name of an asset from the last path segment
// of its URL.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadAssetURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("%w: %s", ErrBadAssetURL, rawURL)
	}
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/:*?"<>|`, r) {
			return '_'
		}
		return r
	}, name)
	if strings.HasPrefix(name, ".") {
		name = "_" + name
	}
	return name, nil
}
