// Package wire provides a low-level implementation of the Pharos nameserver
// protocol, a line-oriented directory protocol in the tradition of the CCSO
// nameserver (RFC 2378).
//
// This package serves as a foundation for building higher-level directory
// clients with different properties (connection pooling, authentication,
// federation, etc.). It focuses on correctness of framing, classification and
// record assembly, without imposing architectural decisions on clients: it
// performs no I/O of its own.
//
// # Core Types
//
// Session, Result and Command are the main entry points:
//
//   - Session: One complete operation over one connection, from banner to
//     terminal line. Callers feed raw byte chunks and write back whatever
//     bytes the session asks to send.
//   - ResultBuilder: The query-result portion of a Session, usable on its
//     own for connections that have already completed the handshake.
//   - Result: The terminal value of an operation, tagged Ok, Matches or
//     Error.
//   - Command: A structured protocol command (query, add, change, delete,
//     id, auth, quit) rendered to wire format with proper quoting.
//
// # Sessions
//
// A session drives the fixed handshake (banner, identity acknowledgement)
// and then parses response lines until a terminal line arrives:
//
//	sess := wire.NewSession("ph-go/1.0", "name=alice")
//	for !sess.Done() {
//	    n, err := conn.Read(buf)
//	    if err != nil {
//	        return err
//	    }
//	    send, done := sess.Feed(buf[:n])
//	    if len(send) > 0 {
//	        conn.Write(send)
//	    }
//	    if done {
//	        break
//	    }
//	}
//	result, _ := sess.Result()
//
// The session is a pure state machine: chunk boundaries are irrelevant,
// lines split across reads are reassembled, and each line is processed
// exactly once in arrival order.
//
// # Response Stream
//
// While awaiting a query result the server emits zero or more lines
// followed by a terminal line:
//
//	102:There were 2 matches to your request.   declared match count
//	-200:1:hostname: node-01                    data field (id 1)
//	-200:1:ip: 192.168.1.1                      data field (id 1)
//	200:Ok                                      terminal success
//
// Data lines sharing a record id are grouped into one Record; an id change
// flushes the previous record. A code >= 400 terminates the operation as an
// Error. A blank line is an alternate terminal success signal. Lines that
// do not parse (fewer than two colon segments, non-numeric code) are
// skipped; see Session.Malformed and Session.OnMalformed for diagnostics.
//
// # Commands
//
// Commands are built structurally and rendered with protocol quoting
// (double quotes, backslash escapes for '"' and '\'):
//
//	cmd := wire.Add(
//	    wire.Field{Name: "type", Value: "machine"},
//	    wire.Field{Name: "name", Value: "node-01"},
//	)
//	wire.WriteCommand(conn, cmd)
//
// Free-form query text is normalized before sending: surrounding whitespace
// is trimmed and text that does not begin with a recognized verb is given
// the default "query " prefix.
//
// # Error Handling
//
// The package defines error types that indicate connection state:
//
//   - ServerError: Error reported by the server, connection can be REUSED
//   - AuthError: Authentication exchange failed, connection can be REUSED
//   - HandshakeError: Identity rejected during handshake, CLOSE connection
//   - ConnectionError: Network/I/O error, connection already broken
//
// Use ShouldCloseConnection to determine error handling strategy:
//
//	if err != nil {
//	    if wire.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//
// # Design Principles
//
// 1. No I/O - the caller owns the connection and all reads and writes
// 2. Lenient parsing - unrecognized or malformed lines are skipped, not fatal
// 3. One result per operation - a finished session refuses further input
// 4. Explicit state - no hidden buffers outside the Session value
// 5. Clear error semantics - connection state is explicit
//
// # Thread Safety
//
// Constants and helper functions are safe for concurrent use. Session,
// ResultBuilder, Framer and Command are not thread-safe; callers must
// synchronize access if sharing across goroutines. The intended use is one
// Session per connection per operation.
package wire
