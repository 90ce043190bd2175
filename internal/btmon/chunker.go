package btmon

import (
	"strings"
	"sync/atomic"
)

// Default chunker limits.
const (
	DefaultMaxChunkLines = 512
	DefaultMaxLineLength = 4096
)

// ChunkerConfig bounds the size of a single chunk.
type ChunkerConfig struct {
	// MaxChunkLines force-closes a chunk once it holds this many lines,
	// header included.
	MaxChunkLines int

	// MaxLineLength is the longest accepted line in bytes. A longer line
	// force-closes the open chunk and is dropped.
	MaxLineLength int
}

// ChunkerStats are the diagnostic counters of a Chunker.
type ChunkerStats struct {
	Lines         uint64 `json:"lines"`
	Chunks        uint64 `json:"chunks"`
	BlankLines    uint64 `json:"blank_lines"`
	OrphanLines   uint64 `json:"orphan_lines"`
	OversizeLines uint64 `json:"oversize_lines"`
	ForcedCloses  uint64 `json:"forced_closes"`
}

// Mirror receives every chunk the Chunker emits. Implementations must not
// block.
type Mirror interface {
	MirrorChunk(Chunk)
}

// Chunker reassembles monitor lines into chunks.
//
// Feed and Flush must be called from a single goroutine; Stats may be read
// from any goroutine.
type Chunker struct {
	cfg    ChunkerConfig
	open   *Chunk
	mirror Mirror

	lines         atomic.Uint64
	chunks        atomic.Uint64
	blankLines    atomic.Uint64
	orphanLines   atomic.Uint64
	oversizeLines atomic.Uint64
	forcedCloses  atomic.Uint64
}

// NewChunker creates a Chunker. Non-positive limits fall back to the defaults.
func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.MaxChunkLines <= 0 {
		cfg.MaxChunkLines = DefaultMaxChunkLines
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = DefaultMaxLineLength
	}
	return &Chunker{cfg: cfg}
}

// SetMirror installs a diagnostic mirror. Call before the first Feed.
func (c *Chunker) SetMirror(m Mirror) {
	c.mirror = m
}

// Feed consumes one line and returns the chunks it completed: none, the
// previous chunk when line is a header, or a force-closed chunk when a limit
// was hit.
func (c *Chunker) Feed(line RawLine) []Chunk {
	c.lines.Add(1)

	if len(line.Text) > c.cfg.MaxLineLength {
		c.oversizeLines.Add(1)
		if c.open == nil {
			return nil
		}
		c.forcedCloses.Add(1)
		return c.emit(c.close(false))
	}

	if strings.TrimSpace(line.Text) == "" {
		c.blankLines.Add(1)
		return nil
	}

	if isHeader(line.Text) {
		var out []Chunk
		if c.open != nil {
			out = c.emit(c.close(true))
		}
		c.open = &Chunk{
			Kind:   classify(line.Text),
			Header: line.Text,
			Lines:  []RawLine{line},
		}
		return append(out, c.closeIfFull()...)
	}

	if c.open == nil {
		c.orphanLines.Add(1)
		return nil
	}

	c.open.Lines = append(c.open.Lines, line)
	return c.closeIfFull()
}

// Flush returns the pending chunk, if any, marked incomplete.
func (c *Chunker) Flush() (Chunk, bool) {
	if c.open == nil {
		return Chunk{}, false
	}
	chunk := c.close(false)
	c.emit(chunk)
	return chunk, true
}

// Stats returns a snapshot of the counters.
func (c *Chunker) Stats() ChunkerStats {
	return ChunkerStats{
		Lines:         c.lines.Load(),
		Chunks:        c.chunks.Load(),
		BlankLines:    c.blankLines.Load(),
		OrphanLines:   c.orphanLines.Load(),
		OversizeLines: c.oversizeLines.Load(),
		ForcedCloses:  c.forcedCloses.Load(),
	}
}

func (c *Chunker) closeIfFull() []Chunk {
	if len(c.open.Lines) < c.cfg.MaxChunkLines {
		return nil
	}
	c.forcedCloses.Add(1)
	return c.emit(c.close(false))
}

func (c *Chunker) close(complete bool) Chunk {
	chunk := *c.open
	chunk.Complete = complete
	c.open = nil
	return chunk
}

func (c *Chunker) emit(chunk Chunk) []Chunk {
	c.chunks.Add(1)
	if c.mirror != nil {
		c.mirror.MirrorChunk(chunk)
	}
	return []Chunk{chunk}
}
