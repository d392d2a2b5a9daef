package logging

import (
	"bytes"
	"io"
)

// PrefixWriter prepends a fixed prefix to every line written through it.
// Partial lines are buffered until their newline arrives so a prefix never
// lands mid-line.
type PrefixWriter struct {
	prefix []byte
	out    io.Writer
	buf    bytes.Buffer
}

// NewPrefixWriter wraps w with a per-line prefix.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{prefix: []byte(prefix), out: w}
}

// Write implements io.Writer.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.buf.Write(p)
	for {
		idx := bytes.IndexByte(pw.buf.Bytes(), '\n')
		if idx < 0 {
			return len(p), nil
		}
		line := pw.buf.Next(idx + 1)
		if _, err := pw.out.Write(pw.prefix); err != nil {
			return len(p), err
		}
		if _, err := pw.out.Write(line); err != nil {
			return len(p), err
		}
	}
}
