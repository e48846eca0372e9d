package wire

import (
	"bufio"
	"io"
	"sync"
)

// bufferPool recycles serialization buffers. Typical command lines are
// well under 256 bytes; auth commands with embedded public keys are the
// exception and grow their buffer once.
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 256)
		return &buf
	},
}

func getBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

func putBuffer(buf *[]byte) {
	// TODO: drop if buffer is too large
	*buf = (*buf)[:0]
	bufferPool.Put(buf)
}

// WriteCommand serializes a command followed by its line terminator to w.
//
// When w is a *bufio.Writer the command is written directly into its
// buffer and the caller is responsible for flushing. Any other writer
// receives the whole line in a single Write call, assembled in a pooled
// buffer, so a command line never splits across TCP segments.
func WriteCommand(w io.Writer, cmd *Command) error {
	if bw, ok := w.(*bufio.Writer); ok {
		return writeCommandBuffered(bw, cmd)
	}
	return writeCommandUnbuffered(w, cmd)
}

func writeCommandBuffered(bw *bufio.Writer, cmd *Command) error {
	if _, err := bw.WriteString(cmd.String()); err != nil {
		return err
	}
	return bw.WriteByte('\n')
}

func writeCommandUnbuffered(w io.Writer, cmd *Command) error {
	buf := getBuffer()
	defer putBuffer(buf)

	*buf = append(*buf, cmd.String()...)
	*buf = append(*buf, '\n')
	_, err := w.Write(*buf)
	return err
}
