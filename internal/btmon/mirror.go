package btmon

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

const (
	defaultMirrorQueue = 1024
	mirrorFilePerm     = 0640
	mirrorDirPerm      = 0750
)

// FileMirror appends chunks or raw lines to a diagnostic file from a
// background goroutine. Enqueueing never blocks: when the queue is full the
// entry is dropped and counted.
type FileMirror struct {
	queue   chan string
	file    *os.File
	dropped atomic.Uint64
	done    chan struct{}
	once    sync.Once
	closeMu sync.RWMutex
	closed  bool
}

// NewFileMirror opens path for appending and starts the writer goroutine.
// queueSize <= 0 selects the default.
func NewFileMirror(path string, queueSize int) (*FileMirror, error) {
	if queueSize <= 0 {
		queueSize = defaultMirrorQueue
	}
	if err := os.MkdirAll(filepath.Dir(path), mirrorDirPerm); err != nil {
		return nil, fmt.Errorf("creating mirror directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, mirrorFilePerm)
	if err != nil {
		return nil, fmt.Errorf("opening mirror file: %w", err)
	}

	m := &FileMirror{
		queue: make(chan string, queueSize),
		file:  f,
		done:  make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// MirrorChunk queues a chunk followed by a blank separator line.
func (m *FileMirror) MirrorChunk(c Chunk) {
	m.enqueue(c.Text() + "\n\n")
}

// MirrorLine queues one raw line.
func (m *FileMirror) MirrorLine(l RawLine) {
	m.enqueue(l.Text + "\n")
}

// Dropped returns the number of entries discarded because the queue was full.
func (m *FileMirror) Dropped() uint64 {
	return m.dropped.Load()
}

// Close drains the queue, flushes and closes the file.
func (m *FileMirror) Close() error {
	var err error
	m.once.Do(func() {
		m.closeMu.Lock()
		m.closed = true
		close(m.queue)
		m.closeMu.Unlock()

		<-m.done
		err = m.file.Close()
	})
	return err
}

func (m *FileMirror) enqueue(s string) {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- s:
	default:
		m.dropped.Add(1)
	}
}

func (m *FileMirror) run() {
	defer close(m.done)
	w := bufio.NewWriter(m.file)
	for s := range m.queue {
		// Write errors are ignored; the mirror is best effort.
		_, _ = w.WriteString(s) //nolint:errcheck // Best effort
		if len(m.queue) == 0 {
			_ = w.Flush() //nolint:errcheck // Best effort
		}
	}
	_ = w.Flush() //nolint:errcheck // Best effort
}
