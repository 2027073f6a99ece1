package archive

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

const (
	ChatFile       = "chat.jsonl"
	CompressedFile = "chat.jsonl.zst"
	TextFile       = "chat.txt"
	InfoFile       = "info.json"
	AssetIndexFile = "assets.jsonl"
	SummaryFile    = "summary.json"
	AssetsDir      = "assets"
)

// Summary describes one download run.
type Summary struct {
	RunID        string    `json:"run_id"`
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Mode         string    `json:"mode"`
	Dir          string    `json:"dir"`
	Batches      int       `json:"batches"`
	Actions      int       `json:"actions"`
	AssetsOK     int       `json:"assets_ok"`
	AssetsFailed int       `json:"assets_failed"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Error        string    `json:"error,omitempty"`
}

func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

type assetEntry struct {
	URL   string `json:"url"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// Writer is a chat.Sink that appends every action to chat.jsonl (or its
// zstd variant) and its readable form to chat.txt.
type Writer struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	jsonFile *os.File
	zw       *zstd.Encoder
	jsonBuf  *bufio.Writer
	textFile *os.File
	textBuf  *bufio.Writer
	assetIdx *os.File
	summary  Summary
	err      error
	closed   bool
}

type WriterOptions struct {
	Compress bool
	Mode     string
}

// NewWriter creates dir and opens the archive files for appending. The page
// is stored as info.json.
func NewWriter(dir string, page *youtube.Page, opts WriterOptions, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	info, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding page info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, InfoFile), info, 0640); err != nil {
		return nil, fmt.Errorf("writing page info: %w", err)
	}

	w := &Writer{
		dir:    dir,
		logger: logger,
		summary: Summary{
			RunID:     uuid.NewString(),
			VideoID:   page.VideoID(),
			Title:     page.Title(),
			Mode:      opts.Mode,
			Dir:       dir,
			StartedAt: time.Now().UTC(),
		},
	}

	name := ChatFile
	if opts.Compress {
		name = CompressedFile
	}
	if w.jsonFile, err = openAppend(filepath.Join(dir, name)); err != nil {
		return nil, err
	}
	var jsonOut io.Writer = w.jsonFile
	if opts.Compress {
		w.zw, err = zstd.NewWriter(w.jsonFile, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			_ = w.jsonFile.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		jsonOut = w.zw
	}
	w.jsonBuf = bufio.NewWriter(jsonOut)

	if w.textFile, err = openAppend(filepath.Join(dir, TextFile)); err != nil {
		_ = w.closeFiles()
		return nil, err
	}
	w.textBuf = bufio.NewWriter(w.textFile)

	if w.assetIdx, err = openAppend(filepath.Join(dir, AssetIndexFile)); err != nil {
		_ = w.closeFiles()
		return nil, err
	}
	return w, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	return f, nil
}

// Dir is the output directory.
func (w *Writer) Dir() string { return w.dir }

// AssetDir is where assets of this archive belong.
func (w *Writer) AssetDir() string { return filepath.Join(w.dir, AssetsDir) }

func (w *Writer) Progress(actions []youtube.Action) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	w.summary.Batches++
	for _, a := range actions {
		b, err := json.Marshal(a)
		if err != nil {
			w.fail(fmt.Errorf("encoding action: %w", err))
			continue
		}
		w.summary.Actions++
		if _, err := w.jsonBuf.Write(append(b, '\n')); err != nil {
			w.fail(fmt.Errorf("writing %s: %w", ChatFile, err))
		}
		for _, line := range youtube.FormatLines(a) {
			if _, err := w.textBuf.WriteString(line + "\n"); err != nil {
				w.fail(fmt.Errorf("writing %s: %w", TextFile, err))
			}
		}
	}
	if err := w.jsonBuf.Flush(); err != nil {
		w.fail(err)
	}
	if err := w.textBuf.Flush(); err != nil {
		w.fail(err)
	}
}

func (w *Writer) AssetProgress(url, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.summary.AssetsOK++
	w.writeAsset(assetEntry{URL: url, Path: path})
}

func (w *Writer) AssetError(url string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.summary.AssetsFailed++
	w.writeAsset(assetEntry{URL: url, Error: err.Error()})
}

func (w *Writer) writeAsset(e assetEntry) {
	if w.closed {
		return
	}
	if rel, err := filepath.Rel(w.dir, e.Path); err == nil && e.Path != "" {
		e.Path = rel
	}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	if _, err := w.assetIdx.Write(append(b, '\n')); err != nil {
		w.fail(fmt.Errorf("writing %s: %w", AssetIndexFile, err))
	}
}

func (w *Writer) Error(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.summary.Error = err.Error()
}

func (w *Writer) Finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.summary.FinishedAt = time.Now().UTC()
	w.logger.Info("chat dump finished",
		zap.String("dir", w.dir),
		zap.Int("batches", w.summary.Batches),
		zap.Int("actions", w.summary.Actions))
}

// Summary returns the counters collected so far.
func (w *Writer) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary
}

// Close writes summary.json and closes the files. It returns the first
// write error seen by the writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.err
	}
	w.closed = true

	if b, err := json.MarshalIndent(w.summary, "", "  "); err == nil {
		if err := os.WriteFile(filepath.Join(w.dir, SummaryFile), b, 0640); err != nil {
			w.fail(fmt.Errorf("writing summary: %w", err))
		}
	}
	if err := w.closeFiles(); err != nil {
		w.fail(err)
	}
	return w.err
}

func (w *Writer) closeFiles() error {
	var errs []error
	if w.jsonBuf != nil {
		errs = append(errs, w.jsonBuf.Flush())
	}
	if w.zw != nil {
		errs = append(errs, w.zw.Close())
	}
	for _, f := range []*os.File{w.jsonFile, w.textFile, w.assetIdx} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) fail(err error) {
	w.logger.Error("archive write failed", zap.Error(err))
	if w.err == nil {
		w.err = err
	}
}
