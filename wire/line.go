package wire

import (
	"strconv"
	"strings"
)

// Line is one parsed response line.
//
// Wire format:
//
//	<code>:<message>
//
// The code is the integer before the first colon. The message is everything
// after it, surrounding whitespace trimmed. Lines that do not match this
// shape (no colon, or a non-numeric code) do not parse and are skipped by
// the response machinery.
type Line struct {
	// Code is the status code from the leading segment.
	Code int

	// Message is the remainder of the line after the first colon, with
	// surrounding whitespace trimmed. Colons inside the message are
	// preserved.
	Message string

	// Raw is the original line without its terminator, kept for
	// diagnostics.
	Raw string
}

// ParseLine parses a framed line into a Line. It returns ok=false for
// malformed lines: fewer than two colon-separated segments, or a leading
// segment that is not an integer.
func ParseLine(raw string) (Line, bool) {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return Line{}, false
	}
	code, err := strconv.Atoi(raw[:idx])
	if err != nil {
		return Line{}, false
	}
	return Line{
		Code:    code,
		Message: strings.TrimSpace(raw[idx+1:]),
		Raw:     raw,
	}, true
}

// LeadingCode parses the numeric field that opens a handshake line. The
// field ends at the first colon or whitespace, whichever comes first, so
// both "200:Ok" and "200 Ok" yield 200. Unlike ParseLine it does not
// require a colon; handshake acceptance is a code check, not a full line
// classification.
func LeadingCode(raw string) (int, bool) {
	seg := raw
	if idx := strings.IndexByte(seg, ':'); idx >= 0 {
		seg = seg[:idx]
	}
	fields := strings.Fields(seg)
	if len(fields) == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return code, true
}

// IsData reports whether the line carries a record field. Any negative
// code marks a data line; servers conventionally use CodeData.
func (l Line) IsData() bool {
	return l.Code < 0
}

// IsMatchCount reports whether the line declares a match count.
func (l Line) IsMatchCount() bool {
	return l.Code == CodeMatchCount
}

// IsError reports whether the line terminates the operation with a server
// error.
func (l Line) IsError() bool {
	return l.Code >= 400
}

// IsSuccess reports whether the line terminates the operation
// successfully.
func (l Line) IsSuccess() bool {
	return l.Code == CodeSuccess
}

// MatchCount extracts the declared count from a match-count line. The
// count is the third whitespace-separated token of the message, as in
// "There were 2 matches to your request." It returns ok=false when the
// message has fewer than three tokens; a third token that is not an
// integer yields count 0 with ok=true, per legacy behavior.
func (l Line) MatchCount() (count int, ok bool) {
	tokens := strings.Fields(l.Message)
	if len(tokens) < 3 {
		return 0, false
	}
	n, err := strconv.Atoi(tokens[2])
	if err != nil {
		return 0, true
	}
	return n, true
}

// DataField splits a data line message into its record id, field name and
// field value.
//
// Wire format:
//
//	-200:<record id>:<field name>: <field value>
//
// The message (after the status code) must hold at least three
// colon-separated sub-segments; otherwise ok is false and the line should
// be skipped. A record id that is not an integer parses as 0, per legacy
// behavior. Colons inside the value are preserved and the value is
// whitespace-trimmed.
func (l Line) DataField() (id int, name, value string, ok bool) {
	parts := strings.SplitN(l.Message, ":", 3)
	if len(parts) != 3 {
		return 0, "", "", false
	}
	id, _ = strconv.Atoi(parts[0])
	return id, parts[1], strings.TrimSpace(parts[2]), true
}
