package scanner

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/nerrad567/blue-hydra/internal/btmon"
	"github.com/nerrad567/blue-hydra/internal/process"
)

// LineSource produces the monitor text stream.
//
// Lines spans every run and is never closed. Exits delivers one outcome per
// run: nil after Stop, ErrSourceDone at the end of a finite source, any
// other error when the run failed. *process.Manager implements it for the
// live monitor; FileSource replays a capture.
type LineSource interface {
	Start(ctx context.Context) error
	Stop() error
	Lines() <-chan btmon.RawLine
	Exits() <-chan error
}

// FileSource replays a captured monitor trace. Files ending in ".gz" are
// decompressed.
type FileSource struct {
	path   string
	reader *process.LineReader
	lines  chan btmon.RawLine
	exits  chan error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFileSource creates a replay source for path. maxLineLength <= 0 selects
// the chunker default.
func NewFileSource(path string, maxLineLength int) *FileSource {
	return &FileSource{
		path:   path,
		reader: process.NewLineReader(maxLineLength),
		lines:  make(chan btmon.RawLine, 1024),
		exits:  make(chan error, 1),
	}
}

// Start opens the file and begins streaming it.
func (f *FileSource) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		select {
		case <-f.done:
		default:
			return fmt.Errorf("%w: replay %s", process.ErrAlreadyRunning, f.path)
		}
	}

	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("opening replay file: %w", err)
	}
	var r io.Reader = file
	var gz *gzip.Reader
	if strings.HasSuffix(f.path, ".gz") {
		gz, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return fmt.Errorf("opening gzip replay file: %w", err)
		}
		r = gz
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	done := f.done

	go func() {
		defer close(done)
		defer file.Close()
		if gz != nil {
			defer gz.Close()
		}

		err := f.reader.Read(runCtx, r, f.lines)
		var result error
		switch {
		case err == nil:
			result = ErrSourceDone
		case runCtx.Err() != nil && ctx.Err() == nil:
			result = nil // Stop
		default:
			result = fmt.Errorf("reading replay file: %w", err)
		}
		select {
		case f.exits <- result:
		default:
		}
	}()
	return nil
}

// Stop ends the replay early.
func (f *FileSource) Stop() error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Lines implements LineSource.
func (f *FileSource) Lines() <-chan btmon.RawLine { return f.lines }

// Exits implements LineSource.
func (f *FileSource) Exits() <-chan error { return f.exits }
