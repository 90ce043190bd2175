package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nerrad567/blue-hydra/internal/btmon"
)

const readerBufferSize = 64 * 1024

// LineReader splits a byte stream into numbered RawLines.
//
// A line longer than Limit is cut to Limit+1 bytes and marked Truncated, so
// the chunker still sees that it was oversized. A final line without a
// newline is delivered and marked Truncated. Sequence numbers continue
// across Read calls, which keeps them monotonic over monitor restarts.
type LineReader struct {
	Limit int
	seq   atomic.Uint64
	now   func() time.Time
}

// NewLineReader creates a reader with the given line length limit.
// limit <= 0 selects btmon.DefaultMaxLineLength.
func NewLineReader(limit int) *LineReader {
	if limit <= 0 {
		limit = btmon.DefaultMaxLineLength
	}
	return &LineReader{Limit: limit, now: time.Now}
}

// Read delivers every line of r to out until EOF, a read error or ctx is
// done. EOF returns nil.
func (lr *LineReader) Read(ctx context.Context, r io.Reader, out chan<- btmon.RawLine) error {
	br := bufio.NewReaderSize(r, readerBufferSize)
	for {
		text, truncated, ok, err := readLine(br, lr.Limit+1)
		if ok {
			line := btmon.RawLine{
				Seq:        lr.seq.Add(1),
				Text:       text,
				ReceivedAt: lr.now(),
				Truncated:  truncated,
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Delivered returns the number of lines produced so far.
func (lr *LineReader) Delivered() uint64 {
	return lr.seq.Load()
}

// readLine returns the next line without its terminator, cut to limit
// bytes. ok is false only when nothing was read before err.
func readLine(br *bufio.Reader, limit int) (text string, truncated, ok bool, err error) {
	var buf []byte
	total := 0
	for {
		frag, rerr := br.ReadSlice('\n')
		total += len(frag)
		if room := limit - len(buf); room > 0 {
			buf = append(buf, frag[:min(room, len(frag))]...)
		}

		switch {
		case rerr == nil:
			text = strings.TrimRight(string(buf), "\r\n")
			return text, total-1 > limit, true, nil
		case errors.Is(rerr, bufio.ErrBufferFull):
			continue
		default:
			if total == 0 {
				return "", false, false, rerr
			}
			return strings.TrimRight(string(buf), "\r"), true, true, rerr
		}
	}
}
