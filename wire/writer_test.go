package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingWriter records each Write call separately so tests can check
// that a command line leaves in one piece.
type countingWriter struct {
	writes [][]byte
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func TestWriteCommandSingleWrite(t *testing.T) {
	var w countingWriter
	err := WriteCommand(&w, Query(Eq("hostname", "node-01")))
	require.NoError(t, err)

	require.Len(t, w.writes, 1, "a command line must leave in one Write call")
	assert.Equal(t, "query hostname=node-01\n", string(w.writes[0]))
}

func TestWriteCommandBuffered(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	require.NoError(t, WriteCommand(bw, Identity("ph-go/1.0")))
	require.NoError(t, WriteCommand(bw, Quit()))
	require.NoError(t, bw.Flush())

	assert.Equal(t, "id ph-go/1.0\nquit\n", buf.String())
}

func TestWriteCommandReusesBuffers(t *testing.T) {
	var w countingWriter
	for i := 0; i < 64; i++ {
		require.NoError(t, WriteCommand(&w, Status()))
	}
	require.Len(t, w.writes, 64)
	for _, line := range w.writes {
		assert.Equal(t, "status\n", string(line))
	}
}
