package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

const maxLine = 16 << 20

// Open opens a chat dump, decompressing it when the name ends in .zst.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdReadCloser{dec: dec, f: f}, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// ReadActions decodes one action per line of r and calls fn for each. Lines
// that do not decode are passed to bad and skipped. Blank lines are ignored.
func ReadActions(r io.Reader, fn func(youtube.Action) error, bad func(line string, err error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var a youtube.Action
		if err := json.Unmarshal(line, &a); err != nil {
			if bad != nil {
				bad(string(line), err)
			}
			continue
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return sc.Err()
}
