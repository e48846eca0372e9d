package wire

import "bytes"

// Framer splits a byte stream into protocol lines. Chunks are pushed in as
// they arrive from the transport; complete lines come out in order. Bytes
// after the last newline stay buffered until the terminator arrives, so
// chunk boundaries never affect the produced lines.
//
// A line is terminated by '\n'. A single trailing '\r' before the
// terminator is stripped, accepting both LF and CRLF framing.
//
// The zero value is ready to use. Framer is not safe for concurrent use.
type Framer struct {
	buf []byte
}

// Push appends a chunk of raw bytes to the frame buffer. The chunk is
// copied; the caller may reuse its slice immediately.
func (f *Framer) Push(chunk []byte) {
	f.buf = append(f.buf, chunk...)
}

// Next returns the next complete line without its terminator. It returns
// ok=false when no full line is buffered; push more bytes and try again.
func (f *Framer) Next() (line string, ok bool) {
	i := bytes.IndexByte(f.buf, '\n')
	if i < 0 {
		return "", false
	}
	raw := f.buf[:i]
	if n := len(raw); n > 0 && raw[n-1] == '\r' {
		raw = raw[:n-1]
	}
	line = string(raw)
	f.buf = f.buf[i+1:]
	return line, true
}

// Pending reports how many bytes are buffered awaiting a terminator.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset discards any buffered bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
