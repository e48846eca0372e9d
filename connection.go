package pharos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pharosdir/pharos/internal/coarsetime"
	"github.com/pharosdir/pharos/wire"
)

var (
	ErrConnectionClosed = errors.New("pharos: connection closed")
)

// readBufferSize fits the longest realistic burst of response lines; the
// framer buffers anything larger across reads.
const readBufferSize = 4096

// Conn is a single directory connection that has completed the handshake:
// the banner was consumed and the server accepted the client identity.
// One command runs at a time; commands after the first reuse the
// established conversation.
type Conn struct {
	// OnMalformed, if set, is called with each response line skipped as
	// unparsable. Set it right after dialing, before the first Execute.
	OnMalformed func(raw string)

	addr     string
	identity string
	conn     net.Conn
	framer   wire.Framer
	readBuf  []byte

	mu            sync.Mutex
	lastUsed      time.Time
	closed        bool
	authenticated bool
}

// Dial connects to a directory server and runs the handshake with the
// given client identity. The address may omit the port; the protocol
// default is assumed.
func Dial(ctx context.Context, addr, identity string) (*Conn, error) {
	return DialWithDialer(ctx, &net.Dialer{Timeout: 5 * time.Second}, addr, identity)
}

// DialWithDialer is Dial with a caller-supplied dialer. The handshake
// deadline comes from ctx when set, else from the dialer's Timeout.
func DialWithDialer(ctx context.Context, dialer *net.Dialer, addr, identity string) (*Conn, error) {
	addr = NormalizeAddr(addr)

	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &wire.ConnectionError{Op: "dial", Err: err}
	}

	c := &Conn{
		addr:     addr,
		identity: identity,
		conn:     netConn,
		readBuf:  make([]byte, readBufferSize),
		lastUsed: coarsetime.Now(),
	}

	if err := c.handshake(ctx, dialer.Timeout); err != nil {
		netConn.Close()
		return nil, err
	}
	return c, nil
}

// handshake consumes the banner, announces the identity and checks the
// acknowledgement code.
func (c *Conn) handshake(ctx context.Context, fallbackTimeout time.Duration) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else if fallbackTimeout > 0 {
		c.conn.SetDeadline(time.Now().Add(fallbackTimeout))
	}
	defer c.conn.SetDeadline(time.Time{})

	// Banner first; its content is not interpreted.
	if _, err := c.readLine(); err != nil {
		return &wire.ConnectionError{Op: "handshake", Err: err}
	}

	if err := wire.WriteCommand(c.conn, wire.Identity(c.identity)); err != nil {
		return &wire.ConnectionError{Op: "handshake", Err: err}
	}

	ack, err := c.readLine()
	if err != nil {
		return &wire.ConnectionError{Op: "handshake", Err: err}
	}
	code, ok := wire.LeadingCode(ack)
	if !ok {
		return &wire.HandshakeError{Code: wire.CodeHandshakeFailed, Line: ack}
	}
	if code != wire.CodeSuccess {
		return &wire.HandshakeError{Code: code, Line: ack}
	}
	return nil
}

// Execute sends one command and collects its result.
//
// A context deadline or cancellation does not surface as a Go error: the
// operation resolves to a synthesized Error result (CodeTimeout or
// CodeCanceled) and the connection is torn down, since the response stream
// is no longer in a known state. Transport failures are returned as Go
// errors.
func (c *Conn) Execute(ctx context.Context, cmd *wire.Command) (wire.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return wire.Result{}, ErrConnectionClosed
	}

	// A context that is already done costs nothing: nothing was sent, the
	// conversation is still in sync, the connection stays usable.
	if err := ctx.Err(); err != nil {
		return synthesized(err), nil
	}

	// Set deadline based on context
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		// Clear deadline if context doesn't have one
		c.conn.SetDeadline(time.Time{})
	}

	if err := wire.WriteCommand(c.conn, cmd); err != nil {
		return c.abort(ctx, "write", err)
	}

	builder := wire.ResultBuilder{OnMalformed: c.OnMalformed}
	for {
		line, err := c.readLine()
		if err != nil {
			return c.abort(ctx, "read", err)
		}
		if builder.FeedLine(line) {
			break
		}
	}

	c.lastUsed = coarsetime.Now()
	result, _ := builder.Result()
	return result, nil
}

// ExecuteAuthenticated runs a command, answering an authentication
// challenge with the signer and retrying the command once. Everything
// happens on this one connection: the server ties authentication to the
// conversation.
//
// Without a signer, or when the error carries no challenge, the original
// result is returned untouched.
func (c *Conn) ExecuteAuthenticated(ctx context.Context, cmd *wire.Command, signer ChallengeSigner) (wire.Result, error) {
	result, err := c.Execute(ctx, cmd)
	if err != nil || !result.IsError() {
		return result, err
	}
	challenge, ok := result.Challenge()
	if !ok || signer == nil {
		return result, nil
	}

	publicKey, signature, err := signer.Sign(challenge)
	if err != nil {
		return wire.Result{}, fmt.Errorf("signing challenge: %w", err)
	}

	ack, err := c.Execute(ctx, wire.Auth(publicKey, signature))
	if err != nil {
		return wire.Result{}, err
	}
	if !ack.IsOk() {
		return wire.Result{}, &wire.AuthError{Line: fmt.Sprintf("%d:%s", ack.Code, ack.Message)}
	}

	c.mu.Lock()
	c.authenticated = true
	c.mu.Unlock()

	return c.Execute(ctx, cmd)
}

// abort tears the connection down after an I/O failure and translates
// deadline and cancellation into their synthesized results. The caller
// holds c.mu.
func (c *Conn) abort(ctx context.Context, op string, err error) (wire.Result, error) {
	c.markClosed()
	c.conn.Close()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return synthesized(ctxErr), nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wire.NewError(wire.CodeTimeout, "operation timed out during "+op), nil
	}
	return wire.Result{}, &wire.ConnectionError{Op: op, Err: err}
}

// synthesized maps a context error to its local terminal result.
func synthesized(ctxErr error) wire.Result {
	if errors.Is(ctxErr, context.Canceled) {
		return wire.NewError(wire.CodeCanceled, "operation canceled")
	}
	return wire.NewError(wire.CodeTimeout, "operation timed out")
}

// readLine returns the next framed line, reading from the transport as
// needed.
func (c *Conn) readLine() (string, error) {
	for {
		if line, ok := c.framer.Next(); ok {
			return line, nil
		}
		n, err := c.conn.Read(c.readBuf)
		if n > 0 {
			c.framer.Push(c.readBuf[:n])
			continue
		}
		if err != nil {
			return "", err
		}
	}
}

// Ping checks liveness with a status command. Any complete reply counts:
// even a server that answers with an error is up and speaking protocol.
func (c *Conn) Ping(ctx context.Context) error {
	result, err := c.Execute(ctx, wire.Status())
	if err != nil {
		return err
	}
	// A synthesized timeout means the server never answered.
	if result.Timeout() || result.Canceled() {
		return result.Err()
	}
	return nil
}

// Quit sends the farewell and closes the connection. The server's goodbye
// line is not awaited.
func (c *Conn) Quit() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.conn.SetDeadline(time.Now().Add(time.Second))
	wire.WriteCommand(c.conn, wire.Quit())
	c.mu.Unlock()
	return c.Close()
}

// LastUsed returns when the connection last completed a command.
func (c *Conn) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// IsClosed returns whether the connection is closed
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Authenticated reports whether this conversation has answered a
// challenge successfully.
func (c *Conn) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Addr returns the connection address
func (c *Conn) Addr() string {
	return c.addr
}

// Close closes the connection
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.markClosed()
	return c.conn.Close()
}

// markClosed marks the connection as closed (must be called with lock held)
func (c *Conn) markClosed() {
	c.closed = true
}

// ExecuteQuery performs one complete operation against one server: dial,
// handshake, query, result, quit. It is the way to ask a single question
// without keeping state around; anything long-lived wants a Client.
//
// Deadline and cancellation resolve to synthesized Error results, like
// Conn.Execute.
func ExecuteQuery(ctx context.Context, addr, identity, query string) (wire.Result, error) {
	dialer := net.Dialer{Timeout: 5 * time.Second}
	netConn, err := dialer.DialContext(ctx, "tcp", NormalizeAddr(addr))
	if err != nil {
		return wire.Result{}, &wire.ConnectionError{Op: "dial", Err: err}
	}
	defer netConn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(deadline)
	}

	sess := wire.NewSession(identity, query)
	buf := make([]byte, readBufferSize)
	for !sess.Done() {
		n, readErr := netConn.Read(buf)
		if n > 0 {
			send, _ := sess.Feed(buf[:n])
			if len(send) > 0 {
				if _, writeErr := netConn.Write(send); writeErr != nil {
					return sessionAbort(ctx, "write", writeErr)
				}
			}
		}
		if readErr != nil {
			if sess.Done() {
				break
			}
			return sessionAbort(ctx, "read", readErr)
		}
	}

	// Part politely; the goodbye line is not awaited.
	netConn.SetDeadline(time.Now().Add(time.Second))
	wire.WriteCommand(netConn, wire.Quit())

	result, _ := sess.Result()
	return result, nil
}

func sessionAbort(ctx context.Context, op string, err error) (wire.Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return synthesized(ctxErr), nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wire.NewError(wire.CodeTimeout, "operation timed out during "+op), nil
	}
	return wire.Result{}, &wire.ConnectionError{Op: op, Err: err}
}
