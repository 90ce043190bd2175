package btmon

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// feedAll feeds every line of text and flushes, returning all chunks.
func feedAll(c *Chunker, text string) []Chunk {
	var out []Chunk
	for i, l := range strings.Split(text, "\n") {
		out = append(out, c.Feed(RawLine{Seq: uint64(i + 1), Text: l, ReceivedAt: time.Unix(0, 0)})...)
	}
	if last, ok := c.Flush(); ok {
		out = append(out, last)
	}
	return out
}

func TestChunker_AdjacentHeaders(t *testing.T) {
	c := NewChunker(ChunkerConfig{})

	chunks := feedAll(c, `> HCI Event: Inquiry Complete (0x01) plen 1
        Status: Success (0x00)
< HCI Command: Inquiry (0x01|0x0001) plen 5
        Access code: 0x9e8b33 (General Inquiry)`)

	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if !chunks[0].Complete {
		t.Error("first chunk Complete = false, want true (closed by next header)")
	}
	if chunks[1].Complete {
		t.Error("flushed chunk Complete = true, want false")
	}
	if chunks[0].Kind != KindHCIEvent || chunks[1].Kind != KindHCICommand {
		t.Errorf("kinds = %v, %v", chunks[0].Kind, chunks[1].Kind)
	}

	seen := map[uint64]bool{}
	for _, ch := range chunks {
		if len(ch.Lines) != 2 {
			t.Errorf("chunk %q has %d lines, want 2", ch.Header, len(ch.Lines))
		}
		if ch.Lines[0].Text != ch.Header {
			t.Errorf("Lines[0] = %q, want header %q", ch.Lines[0].Text, ch.Header)
		}
		for _, l := range ch.Lines {
			if seen[l.Seq] {
				t.Errorf("line %d appears in two chunks", l.Seq)
			}
			seen[l.Seq] = true
		}
	}
}

func TestChunker_OrphanAndBlankLines(t *testing.T) {
	c := NewChunker(ChunkerConfig{})

	chunks := feedAll(c, `Bluetooth monitor ver 5.66
        stray continuation

= Note: Linux version 6.1.0 (x86_64)`)

	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Kind != KindSystemNote {
		t.Errorf("Kind = %v, want system_note", chunks[0].Kind)
	}

	stats := c.Stats()
	if stats.OrphanLines != 2 {
		t.Errorf("OrphanLines = %d, want 2", stats.OrphanLines)
	}
	if stats.BlankLines != 1 {
		t.Errorf("BlankLines = %d, want 1", stats.BlankLines)
	}
	if stats.Lines != 4 {
		t.Errorf("Lines = %d, want 4", stats.Lines)
	}
}

func TestChunker_MaxChunkLines(t *testing.T) {
	c := NewChunker(ChunkerConfig{MaxChunkLines: 3})

	chunks := feedAll(c, `> HCI Event: Extended Inquiry Result (0x2f) plen 255
        Num responses: 1
        Address: 00:11:22:33:44:55 (OUI 00-11-22)
        RSSI: -60 dBm (0xc4)
> HCI Event: Inquiry Complete (0x01) plen 1`)

	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].Complete || len(chunks[0].Lines) != 3 {
		t.Errorf("first chunk complete=%v lines=%d, want forced close at 3", chunks[0].Complete, len(chunks[0].Lines))
	}

	stats := c.Stats()
	if stats.ForcedCloses != 1 {
		t.Errorf("ForcedCloses = %d, want 1", stats.ForcedCloses)
	}
	if stats.OrphanLines != 1 {
		t.Errorf("OrphanLines = %d, want 1 (line after forced close)", stats.OrphanLines)
	}
}

func TestChunker_OversizeLine(t *testing.T) {
	c := NewChunker(ChunkerConfig{MaxLineLength: 40})

	var out []Chunk
	out = append(out, c.Feed(RawLine{Seq: 1, Text: "> HCI Event: Connect Complete (0x03)"})...)
	out = append(out, c.Feed(RawLine{Seq: 2, Text: "        Status: Success (0x00)"})...)
	out = append(out, c.Feed(RawLine{Seq: 3, Text: "        " + strings.Repeat("A", 64)})...)

	if len(out) != 1 {
		t.Fatalf("chunks after oversize line = %d, want 1", len(out))
	}
	if out[0].Complete {
		t.Error("force-closed chunk Complete = true")
	}
	if len(out[0].Lines) != 2 {
		t.Errorf("lines = %d, want 2 (oversize line dropped)", len(out[0].Lines))
	}
	if _, ok := c.Flush(); ok {
		t.Error("Flush() returned a chunk after forced close")
	}

	stats := c.Stats()
	if stats.OversizeLines != 1 || stats.ForcedCloses != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestChunker_FlushEmpty(t *testing.T) {
	c := NewChunker(ChunkerConfig{})
	if _, ok := c.Flush(); ok {
		t.Error("Flush() on empty chunker returned a chunk")
	}
}

func TestChunker_TruncatedFinalLine(t *testing.T) {
	c := NewChunker(ChunkerConfig{})
	c.Feed(RawLine{Seq: 1, Text: "> HCI Event: Remote Name Req Complete (0x07) plen 255"})
	c.Feed(RawLine{Seq: 2, Text: "        Name: Trunc", Truncated: true})

	chunk, ok := c.Flush()
	if !ok {
		t.Fatal("Flush() returned nothing")
	}
	if len(chunk.Lines) != 2 || !chunk.Lines[1].Truncated {
		t.Errorf("flushed chunk lines = %+v", chunk.Lines)
	}
}

type recordingMirror struct {
	mu     sync.Mutex
	chunks []Chunk
}

func (m *recordingMirror) MirrorChunk(c Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, c)
}

func TestChunker_Mirror(t *testing.T) {
	c := NewChunker(ChunkerConfig{})
	m := &recordingMirror{}
	c.SetMirror(m)

	chunks := feedAll(c, `> HCI Event: Inquiry Complete (0x01) plen 1
> HCI Event: Inquiry Complete (0x01) plen 1`)

	if len(m.chunks) != len(chunks) {
		t.Errorf("mirrored %d chunks, emitted %d", len(m.chunks), len(chunks))
	}
	if c.Stats().Chunks != 2 {
		t.Errorf("Stats().Chunks = %d, want 2", c.Stats().Chunks)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		header string
		want   ChunkKind
	}{
		{"> HCI Event: LE Meta Event (0x3e) plen 43", KindHCIEvent},
		{"< HCI Command: LE Set Scan Enable (0x08|0x000c) plen 2", KindHCICommand},
		{"> ACL Data RX: Handle 64 flags 0x02 dlen 11", KindData},
		{"< ACL Data TX: Handle 64 flags 0x00 dlen 7", KindData},
		{"@ MGMT Event: Device Found (0x0012) plen 40", KindMgmtEvent},
		{"@ MGMT Command: Start Discovery (0x0023) plen 1", KindMgmtCommand},
		{"@ RAW Open: hcitool (privileged) version 2.22", KindMgmtCommand},
		{"= Note: Linux version 6.1.0", KindSystemNote},
		{"> Something else", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if !isHeader(tt.header) {
				t.Fatalf("isHeader(%q) = false", tt.header)
			}
			if got := classify(tt.header); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsHeader_Rejects(t *testing.T) {
	for _, s := range []string{"", ">", ">HCI", "  > HCI Event:", "Bluetooth monitor ver 5.66", "        RSSI: -60 dBm"} {
		if isHeader(s) {
			t.Errorf("isHeader(%q) = true, want false", s)
		}
	}
}

func TestChunkKind_String(t *testing.T) {
	if KindMgmtEvent.String() != "mgmt_event" {
		t.Errorf("String() = %q", KindMgmtEvent.String())
	}
	if ChunkKind(99).String() != "unknown" {
		t.Errorf("String() for invalid kind = %q", ChunkKind(99).String())
	}
}
