package wire

import "strings"

// challengeMarker precedes the challenge text in an authentication error
// message.
const challengeMarker = "Challenge: "

// Kind tags the outcome of an operation.
type Kind int

const (
	// KindOk is a successful operation that produced no records, such as a
	// mutation acknowledgement or a query with zero matches reported via a
	// success line.
	KindOk Kind = iota

	// KindMatches is a successful query that produced records or a
	// positive declared match count.
	KindMatches

	// KindError is a terminal failure reported by the server, or
	// synthesized locally for timeouts and cancellations.
	KindError
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindMatches:
		return "matches"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Field is one name/value pair of a directory record. Fields preserve the
// order and duplicates the server sent.
type Field struct {
	Name  string
	Value string
}

// Record is one directory entry assembled from consecutive data lines
// sharing a record id.
type Record struct {
	// ID is the record id from the data lines. A non-numeric id on the
	// wire parses as 0.
	ID int

	// Fields holds the record's fields in arrival order. A field name may
	// appear more than once.
	Fields []Field
}

// Get returns the value of the first field with the given name.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Result is the single terminal value of one operation. Exactly one of the
// three kinds applies; the other fields are zero.
type Result struct {
	// Kind tags which outcome this is.
	Kind Kind

	// Message is the server's terminal message for KindOk and KindError
	// results.
	Message string

	// Code is the status code for KindError results.
	Code int

	// Count is the number of matches for KindMatches results. When the
	// server declared a positive count that value is reported; otherwise
	// the number of assembled records is.
	Count int

	// Records holds the assembled records for KindMatches results.
	Records []Record
}

// NewOk returns a successful empty result carrying the server's message.
func NewOk(message string) Result {
	return Result{Kind: KindOk, Message: message}
}

// NewMatches returns a successful result carrying records. The reported
// count is the declared count when positive, else the number of records.
func NewMatches(declared int, records []Record) Result {
	count := declared
	if count <= 0 {
		count = len(records)
	}
	return Result{Kind: KindMatches, Count: count, Records: records}
}

// NewError returns a failed result with the given status code and message.
func NewError(code int, message string) Result {
	return Result{Kind: KindError, Code: code, Message: message}
}

// IsOk reports whether the result is a successful empty outcome.
func (r Result) IsOk() bool {
	return r.Kind == KindOk
}

// IsMatches reports whether the result carries records.
func (r Result) IsMatches() bool {
	return r.Kind == KindMatches
}

// IsError reports whether the result is a failure.
func (r Result) IsError() bool {
	return r.Kind == KindError
}

// Timeout reports whether the result is the synthesized deadline error.
func (r Result) Timeout() bool {
	return r.Kind == KindError && r.Code == CodeTimeout
}

// Canceled reports whether the result is the synthesized cancellation
// error.
func (r Result) Canceled() bool {
	return r.Kind == KindError && r.Code == CodeCanceled
}

// Challenge extracts the authentication challenge from an error result
// carrying CodeAuthChallenge. The challenge is the text following the
// "Challenge: " marker in the message.
func (r Result) Challenge() (string, bool) {
	if r.Kind != KindError || r.Code != CodeAuthChallenge {
		return "", false
	}
	idx := strings.Index(r.Message, challengeMarker)
	if idx < 0 {
		return "", false
	}
	return r.Message[idx+len(challengeMarker):], true
}

// Err converts an error result into a *ServerError. It returns nil for Ok
// and Matches results, letting callers treat the Result as a value and the
// failure as a Go error in one step.
func (r Result) Err() error {
	if r.Kind != KindError {
		return nil
	}
	return &ServerError{Code: r.Code, Message: r.Message}
}
