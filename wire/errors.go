package wire

import (
	"errors"
	"fmt"
)

// ServerError is a terminal failure reported by the server, such as a
// missing record or a rejected command. It is the error form of a
// KindError result; see Result.Err.
//
// Common causes:
//   - No matches to a query (code 501)
//   - Unknown or unimplemented command (code 598)
//   - Command syntax the server could not parse (code 599)
//   - Authentication required for a mutating command (code 401)
//
// Connection handling: the server stayed line-synchronized while reporting
// the error, so the connection can be REUSED.
type ServerError struct {
	// Code is the status code of the terminal line, or a synthesized code
	// for local conditions (CodeTimeout, CodeCanceled).
	Code int

	// Message is the terminal line's message.
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("pharos: server error %d: %s", e.Code, e.Message)
}

// ShouldCloseConnection returns false. Server-reported errors leave the
// stream in a known state.
func (e *ServerError) ShouldCloseConnection() bool {
	return false
}

// Temporary reports whether retrying the operation could succeed, which is
// the case for locally synthesized timeout results.
func (e *ServerError) Temporary() bool {
	return e.Code == CodeTimeout
}

// HandshakeError is an identity announcement the server rejected. The
// conversation never reached the command phase.
//
// Common causes:
//   - Client name or version the server refuses to serve
//   - A proxy or wrong service answering on the directory port
//
// Connection handling: the conversation state is undefined after a
// rejected handshake, so the connection must be CLOSED.
type HandshakeError struct {
	// Code is the status code of the rejection line, or
	// CodeHandshakeFailed when the line carried none.
	Code int

	// Line is the raw rejection line.
	Line string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("pharos: identity rejected with %d: %s", e.Code, e.Line)
}

// ShouldCloseConnection returns true. A rejected handshake leaves the
// stream unusable.
func (e *HandshakeError) ShouldCloseConnection() bool {
	return true
}

// AuthError is a failed authentication exchange: the server answered the
// auth command with something other than an acknowledgement.
//
// Common causes:
//   - Public key not known to the server
//   - Signature that does not verify against the challenge
//   - Challenge expired between issue and answer
//
// Connection handling: the server answered with a complete line, so the
// connection can be REUSED, typically to retry with different credentials.
type AuthError struct {
	// Line is the server's raw answer to the auth command.
	Line string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("pharos: authentication failed: %s", e.Line)
}

// ShouldCloseConnection returns false.
func (e *AuthError) ShouldCloseConnection() bool {
	return false
}

// ConnectionError is a network-level failure: dial, read, write or
// deadline errors from the transport.
//
// Common causes:
//   - Server not listening or connection refused
//   - Connection reset while awaiting a response
//   - Read or write after the peer closed
//
// Connection handling: the transport already failed, so the connection
// must be CLOSED and the operation retried elsewhere.
type ConnectionError struct {
	// Op names the failed step: "dial", "read", "write", "handshake".
	Op string

	// Err is the underlying transport error.
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("pharos: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true.
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection they came from is still usable.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether the connection an error came from
// must be closed rather than reused. A nil error keeps the connection; an
// error of unknown type closes it, the conservative choice.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}
	var withState ErrorWithConnectionState
	if errors.As(err, &withState) {
		return withState.ShouldCloseConnection()
	}
	return true
}
