package relay

import (
	"bytes"
	"errors"
	"io"
	"iter"
)

// DefaultChunkSize is the read size used when none is configured
const DefaultChunkSize = 4096

// maxEmptyReads bounds consecutive (0, nil) reads before giving up, like bufio.
const maxEmptyReads = 100

// Reassembler turns a byte stream into newline-terminated lines, independent
// of how the underlying reads are chunked. Each line keeps its trailing '\n'
// except a non-empty tail left when the stream ends, which is returned once
// as is. A Reassembler is bound to one stream and cannot be reused.
type Reassembler struct {
	r     io.Reader
	chunk []byte
	buf   []byte

	// scanned is the prefix of buf already known to hold no newline
	scanned int
	done    bool
	err     error
}

// NewReassembler creates a reassembler reading chunkSize bytes at a time
func NewReassembler(r io.Reader, chunkSize int) *Reassembler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reassembler{
		r:     r,
		chunk: make([]byte, chunkSize),
	}
}

// Next blocks until a complete line is available and returns it. It returns
// false once the stream has ended and every buffered byte has been returned.
// The returned slice is owned by the caller.
func (a *Reassembler) Next() ([]byte, bool) {
	empty := 0
	for {
		if i := bytes.IndexByte(a.buf[a.scanned:], '\n'); i >= 0 {
			end := a.scanned + i + 1
			line := bytes.Clone(a.buf[:end])
			a.buf = a.buf[end:]
			a.scanned = 0
			return line, true
		}
		a.scanned = len(a.buf)

		if a.done {
			if len(a.buf) == 0 {
				return nil, false
			}
			line := a.buf
			a.buf = nil
			a.scanned = 0
			return line, true
		}

		n, err := a.r.Read(a.chunk)
		if n > 0 {
			a.buf = append(a.buf, a.chunk[:n]...)
			empty = 0
		}
		switch {
		case err != nil:
			a.done = true
			if !errors.Is(err, io.EOF) {
				a.err = err
			}
		case n == 0:
			empty++
			if empty >= maxEmptyReads {
				a.done = true
				a.err = io.ErrNoProgress
			}
		}
	}
}

// Lines returns the remaining lines as a sequence
func (a *Reassembler) Lines() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			line, ok := a.Next()
			if !ok || !yield(line) {
				return
			}
		}
	}
}

// Err returns the read error that ended the stream, if it was not io.EOF
func (a *Reassembler) Err() error {
	return a.err
}
