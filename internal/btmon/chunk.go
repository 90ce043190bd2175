package btmon

import (
	"strings"
	"time"
)

// RawLine is one newline-delimited line of monitor output.
type RawLine struct {
	// Seq is monotonic per source, starting at 1.
	Seq uint64

	// Text is the line without its trailing newline.
	Text string

	ReceivedAt time.Time

	// Truncated marks a line cut by the reader's cap or a final line that
	// ended without a newline.
	Truncated bool
}

// ChunkKind is derived from the header line that opened a chunk.
type ChunkKind int

// Chunk kinds, one per header family.
const (
	KindUnknown ChunkKind = iota
	KindHCIEvent
	KindHCICommand
	KindData
	KindMgmtEvent
	KindMgmtCommand
	KindSystemNote
)

var kindNames = map[ChunkKind]string{
	KindUnknown:     "unknown",
	KindHCIEvent:    "hci_event",
	KindHCICommand:  "hci_command",
	KindData:        "data",
	KindMgmtEvent:   "mgmt_event",
	KindMgmtCommand: "mgmt_command",
	KindSystemNote:  "system_note",
}

// String returns the snake_case name of the kind.
func (k ChunkKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Chunk is one reconstructed protocol event: a header line followed by its
// indented continuation lines.
type Chunk struct {
	Kind   ChunkKind
	Header string

	// Lines[0] is the header line.
	Lines []RawLine

	// Complete is true when the chunk was closed by the next header and
	// false when a limit or end of stream closed it.
	Complete bool
}

// Text joins the chunk lines with newlines.
func (c Chunk) Text() string {
	var b strings.Builder
	for i, l := range c.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Text)
	}
	return b.String()
}

// isHeader reports whether a line opens a new chunk. Headers start in
// column 0 with one of '<', '>', '@' or '=' followed by a space.
func isHeader(text string) bool {
	if len(text) < 2 || text[1] != ' ' {
		return false
	}
	switch text[0] {
	case '<', '>', '@', '=':
		return true
	}
	return false
}

// classify maps a header line to its ChunkKind.
func classify(header string) ChunkKind {
	switch {
	case strings.HasPrefix(header, "> HCI Event:"):
		return KindHCIEvent
	case strings.HasPrefix(header, "< HCI Command:"):
		return KindHCICommand
	case strings.HasPrefix(header, "> ACL Data"), strings.HasPrefix(header, "< ACL Data"),
		strings.HasPrefix(header, "> SCO Data"), strings.HasPrefix(header, "< SCO Data"),
		strings.HasPrefix(header, "> ISO Data"), strings.HasPrefix(header, "< ISO Data"):
		return KindData
	case strings.HasPrefix(header, "@ MGMT Event:"):
		return KindMgmtEvent
	case strings.HasPrefix(header, "@ "):
		return KindMgmtCommand
	case strings.HasPrefix(header, "= "):
		return KindSystemNote
	}
	return KindUnknown
}
