package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/dgnsrekt/ytchat-downloader/internal/chat"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// progressLine is a chat.Sink that keeps a one-line status on a terminal.
type progressLine struct {
	out   io.Writer
	width int

	mu           sync.Mutex
	batches      int
	actions      int
	assetsOK     int
	assetsFailed int
	done         bool
}

var _ chat.Sink = (*progressLine)(nil)

func newProgressLine(out io.Writer, width int) *progressLine {
	return &progressLine{out: out, width: width}
}

func (p *progressLine) render() {
	if p.done {
		return
	}
	line := fmt.Sprintf("batches %d  actions %d", p.batches, p.actions)
	if p.assetsOK > 0 || p.assetsFailed > 0 {
		line += fmt.Sprintf("  assets %d ok / %d failed", p.assetsOK, p.assetsFailed)
	}
	if p.width > 1 && len(line) >= p.width {
		line = line[:p.width-1]
	}
	fmt.Fprintf(p.out, "\r%s\x1b[K", line)
}

func (p *progressLine) Progress(actions []youtube.Action) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches++
	p.actions += len(actions)
	p.render()
}

func (p *progressLine) AssetProgress(string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assetsOK++
	p.render()
}

func (p *progressLine) AssetError(string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assetsFailed++
	p.render()
}

func (p *progressLine) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.done {
		fmt.Fprintf(p.out, "\r\x1b[Kerror: %v\n", err)
	}
}

func (p *progressLine) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render()
	if !p.done {
		fmt.Fprintln(p.out)
	}
	p.done = true
}
