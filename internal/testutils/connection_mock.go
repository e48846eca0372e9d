package testutils

import (
	"bytes"
	"net"
	"strings"
	"time"
)

// ConnectionMock is a mock implementation of net.Conn for testing. Reads
// serve the canned server lines; writes are captured for inspection.
type ConnectionMock struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
}

// NewConnectionMock creates a mock connection that replays the given
// server lines. Each line is sent with its terminator; pass "" for the
// blank terminal line.
func NewConnectionMock(serverLines ...string) *ConnectionMock {
	var readBuf bytes.Buffer
	for _, line := range serverLines {
		readBuf.WriteString(line)
		readBuf.WriteByte('\n')
	}
	return &ConnectionMock{
		readBuf:  &readBuf,
		writeBuf: &bytes.Buffer{},
	}
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *ConnectionMock) Closed() bool {
	return m.closed
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1050}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// WrittenLines returns the command lines written to the mock connection,
// terminators stripped.
func (m *ConnectionMock) WrittenLines() []string {
	raw := strings.TrimSuffix(m.writeBuf.String(), "\n")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

// GetWrittenRequest returns the raw bytes written to the mock connection.
func (m *ConnectionMock) GetWrittenRequest() string {
	return m.writeBuf.String()
}
