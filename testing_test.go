package pharos

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pharosdir/pharos/internal/coarsetime"
	"github.com/pharosdir/pharos/internal/testutils"
)

func createListener(t testing.TB, handler func(conn net.Conn)) string {
	// Start a simple test server
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start test server: %v", err)
	}

	t.Cleanup(func() {
		listener.Close()
	})

	// Accept connections in background
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			go func(c net.Conn) {
				defer c.Close()

				if handler != nil {
					handler(c)
				}
			}(conn)
		}
	}()

	// Give the server time to start
	time.Sleep(10 * time.Millisecond)

	return listener.Addr().String()
}

// pharosServerEach speaks enough of the directory protocol for tests: it
// greets, acks the identity line, then answers each command line through
// a respond function created fresh for every connection.
func pharosServerEach(newRespond func() func(command string) []string) func(conn net.Conn) {
	return func(conn net.Conn) {
		respond := newRespond()
		reader := bufio.NewReader(conn)

		writeLines(conn, "200:pharos test server ready")

		identity, err := reader.ReadString('\n')
		if err != nil || !strings.HasPrefix(identity, "id ") {
			writeLines(conn, "599:Syntax error: expected id")
			return
		}
		writeLines(conn, "200:Ok")

		for {
			raw, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			command := strings.TrimRight(raw, "\r\n")
			if command == "quit" {
				return
			}
			writeLines(conn, respond(command)...)
		}
	}
}

// pharosServer is pharosServerEach with one respond function shared by
// all connections.
func pharosServer(respond func(command string) []string) func(conn net.Conn) {
	return pharosServerEach(func() func(command string) []string {
		return respond
	})
}

// rejectingServer greets normally then answers the identity line with the
// given ack.
func rejectingServer(ackLine string) func(conn net.Conn) {
	return func(conn net.Conn) {
		writeLines(conn, "200:pharos test server ready")

		reader := bufio.NewReader(conn)
		if _, err := reader.ReadString('\n'); err != nil {
			return
		}
		writeLines(conn, ackLine)
	}
}

func writeLines(conn net.Conn, lines ...string) {
	for _, line := range lines {
		_, _ = conn.Write([]byte(line + "\n"))
	}
}

// commandLog records the command lines a test server receives.
type commandLog struct {
	mu       sync.Mutex
	commands []string
}

func (l *commandLog) add(command string) {
	l.mu.Lock()
	l.commands = append(l.commands, command)
	l.mu.Unlock()
}

func (l *commandLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.commands...)
}

// matchResponder answers every command with the same one-entry match.
func matchResponder(log *commandLog) func(command string) []string {
	return func(command string) []string {
		if log != nil {
			log.add(command)
		}
		return []string{
			"102:There was 1 match to your request",
			"-200:1:hostname: node-01",
			"-200:1:ip: 10.0.0.17",
			"200:Ok",
		}
	}
}

// errorResponder answers every command with one error line.
func errorResponder(line string) func(command string) []string {
	return func(command string) []string {
		return []string{line}
	}
}

// authResponder demands authentication for mutating commands, accepting
// exactly the given credentials. State is per connection, so use it with
// pharosServerEach.
func authResponder(challenge, publicKey, signature string, log *commandLog) func() func(command string) []string {
	return func() func(command string) []string {
		authenticated := false
		return func(command string) []string {
			if log != nil {
				log.add(command)
			}
			verb := strings.SplitN(command, " ", 2)[0]
			switch verb {
			case "auth":
				if command == `auth "`+publicKey+`" "`+signature+`"` {
					authenticated = true
					return []string{"200:Authentication successful"}
				}
				return []string{"403:Authentication failed"}
			case "add", "change", "delete":
				if !authenticated {
					return []string{"401:Authentication required. Challenge: " + challenge}
				}
				return []string{"200:Ok"}
			default:
				return []string{"501:No matches"}
			}
		}
	}
}

// staticSigner is a ChallengeSigner returning fixed credentials.
type staticSigner struct {
	publicKey string
	signature string
	err       error
}

func (s staticSigner) Sign(challenge string) (string, string, error) {
	return s.publicKey, s.signature, s.err
}

// newMockConn builds a handshake-free connection over a scripted
// transport, for pool and stats tests that never touch the network.
func newMockConn(serverLines ...string) *Conn {
	return &Conn{
		addr:     "mock:1050",
		identity: "test/1.0",
		conn:     testutils.NewConnectionMock(serverLines...),
		readBuf:  make([]byte, readBufferSize),
		lastUsed: coarsetime.Now(),
	}
}
