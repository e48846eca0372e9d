package wire

import "fmt"

// Stage identifies where a session is in the fixed conversation order.
type Stage int

const (
	// StageAwaitingBanner is the initial stage: the server speaks first
	// with a banner line. The banner's content is not interpreted; its
	// arrival triggers the identity announcement.
	StageAwaitingBanner Stage = iota

	// StageAwaitingIdentityAck waits for the server to accept the identity
	// announcement. Acceptance is a line whose leading numeric field is
	// CodeSuccess; anything else resolves the session as an Error.
	StageAwaitingIdentityAck

	// StageAwaitingQueryResult collects response lines until a terminal
	// line resolves the session.
	StageAwaitingQueryResult
)

// String returns a human-readable name for the stage.
func (s Stage) String() string {
	switch s {
	case StageAwaitingBanner:
		return "awaiting-banner"
	case StageAwaitingIdentityAck:
		return "awaiting-identity-ack"
	case StageAwaitingQueryResult:
		return "awaiting-query-result"
	default:
		return "unknown"
	}
}

// ResultBuilder assembles one Result from response lines. It classifies
// each line, accumulates data lines into records and resolves on the first
// terminal line. Once resolved it ignores further input.
//
// Sessions embed a ResultBuilder for the query-result stage; connections
// that completed the handshake once and run many operations use it
// directly, one builder per operation.
//
// The zero value is ready to use. ResultBuilder is not safe for concurrent
// use.
type ResultBuilder struct {
	// OnMalformed, if set, is called with each skipped malformed line.
	// It must be set before the first FeedLine call.
	OnMalformed func(raw string)

	declared  int
	current   *Record
	records   []Record
	done      bool
	result    Result
	malformed uint64
}

// FeedLine processes one framed line and reports whether the builder has
// resolved. Lines fed after resolution are ignored.
//
// Classification:
//   - negative code: data line, accumulated into the current record
//   - CodeMatchCount: declared match count, remembered for the result
//   - code >= 400: terminal, resolves as Error
//   - CodeSuccess: terminal, resolves as Matches or Ok
//   - blank line: terminal, resolves as Matches or Ok
//   - anything else recognizable: ignored
//   - malformed: skipped and counted
func (b *ResultBuilder) FeedLine(raw string) (done bool) {
	if b.done {
		return true
	}
	if raw == "" {
		b.finish("Ok")
		return true
	}
	line, ok := ParseLine(raw)
	if !ok {
		b.skip(raw)
		return false
	}
	switch {
	case line.IsData():
		id, name, value, ok := line.DataField()
		if !ok {
			b.skip(raw)
			return false
		}
		b.accumulate(id, name, value)
	case line.IsMatchCount():
		if n, ok := line.MatchCount(); ok {
			b.declared = n
		}
	case line.IsError():
		b.result = NewError(line.Code, line.Message)
		b.done = true
	case line.IsSuccess():
		b.finish(line.Message)
	default:
		// Informational line, ignored.
	}
	return b.done
}

// Result returns the assembled result. ok is false until a terminal line
// has been fed.
func (b *ResultBuilder) Result() (Result, bool) {
	return b.result, b.done
}

// Done reports whether a terminal line has resolved the builder.
func (b *ResultBuilder) Done() bool {
	return b.done
}

// Malformed returns how many lines were skipped as unparsable.
func (b *ResultBuilder) Malformed() uint64 {
	return b.malformed
}

func (b *ResultBuilder) accumulate(id int, name, value string) {
	if b.current != nil && b.current.ID != id {
		b.records = append(b.records, *b.current)
		b.current = nil
	}
	if b.current == nil {
		b.current = &Record{ID: id}
	}
	b.current.Fields = append(b.current.Fields, Field{Name: name, Value: value})
}

func (b *ResultBuilder) finish(message string) {
	if b.current != nil {
		b.records = append(b.records, *b.current)
		b.current = nil
	}
	if b.declared > 0 || len(b.records) > 0 {
		b.result = NewMatches(b.declared, b.records)
	} else {
		b.result = NewOk(message)
	}
	b.done = true
}

func (b *ResultBuilder) skip(raw string) {
	b.malformed++
	if b.OnMalformed != nil {
		b.OnMalformed(raw)
	}
}

// Session runs one complete operation: wait for the banner, announce the
// identity, send the command once the identity is accepted, then collect
// response lines until a terminal line resolves the operation.
//
// The session performs no I/O. Feed it whatever bytes arrive from the
// transport; write back the bytes it returns. Chunk boundaries are
// irrelevant.
//
// A session resolves exactly once and is not reusable; create a new one
// per operation. Session is not safe for concurrent use.
type Session struct {
	// OnMalformed, if set, is called with each skipped malformed response
	// line. It must be set before the first Feed call.
	OnMalformed func(raw string)

	identity string
	query    string
	stage    Stage
	framer   Framer
	builder  ResultBuilder
	result   Result
	done     bool
}

// NewSession returns a session that will announce the given identity and,
// once accepted, send the given query text. The text is normalized when
// sent: surrounding whitespace is trimmed and a missing verb gets the
// default "query " prefix.
func NewSession(identity, query string) *Session {
	s := &Session{identity: identity, query: query}
	s.builder.OnMalformed = func(raw string) {
		if s.OnMalformed != nil {
			s.OnMalformed(raw)
		}
	}
	return s
}

// Feed pushes a chunk of received bytes through the session. It returns
// the bytes to write to the transport, if any, and whether the session has
// resolved. After resolution Feed accepts further chunks but processes
// nothing and sends nothing.
func (s *Session) Feed(chunk []byte) (send []byte, done bool) {
	if s.done {
		return nil, true
	}
	s.framer.Push(chunk)
	for !s.done {
		raw, ok := s.framer.Next()
		if !ok {
			break
		}
		send = append(send, s.consume(raw)...)
	}
	return send, s.done
}

// consume advances the session by one line, returning any bytes to send.
func (s *Session) consume(raw string) []byte {
	switch s.stage {
	case StageAwaitingBanner:
		s.stage = StageAwaitingIdentityAck
		return []byte(KeywordIdentity + " " + s.identity + "\n")

	case StageAwaitingIdentityAck:
		code, ok := LeadingCode(raw)
		if !ok {
			s.resolve(NewError(CodeHandshakeFailed, rejectionMessage(raw)))
			return nil
		}
		if code != CodeSuccess {
			s.resolve(NewError(code, rejectionMessage(raw)))
			return nil
		}
		s.stage = StageAwaitingQueryResult
		return []byte(NormalizeQuery(s.query) + "\n")

	case StageAwaitingQueryResult:
		if s.builder.FeedLine(raw) {
			result, _ := s.builder.Result()
			s.resolve(result)
		}
	}
	return nil
}

func (s *Session) resolve(result Result) {
	s.result = result
	s.done = true
}

// Stage returns the session's current stage.
func (s *Session) Stage() Stage {
	return s.stage
}

// Done reports whether the session has resolved.
func (s *Session) Done() bool {
	return s.done
}

// Result returns the session's result. ok is false until the session has
// resolved.
func (s *Session) Result() (Result, bool) {
	return s.result, s.done
}

// Malformed returns how many response lines were skipped as unparsable.
func (s *Session) Malformed() uint64 {
	return s.builder.Malformed()
}

func rejectionMessage(raw string) string {
	return fmt.Sprintf("identity rejected: %s", raw)
}
