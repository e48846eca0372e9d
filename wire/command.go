package wire

import "strings"

// escaper prepares text for a double-quoted argument. Backslash and double
// quote are the only characters the tokenizer treats specially inside
// quotes.
var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Selector is one selection term of a query, change or delete command. A
// selector with a Field matches entries whose field has the given value; a
// selector without one is a bare term matched server-side against default
// fields.
type Selector struct {
	Field string
	Value string
}

// Eq returns a field=value selector.
func Eq(field, value string) Selector {
	return Selector{Field: field, Value: value}
}

// ParseSelector parses a command-line token into a Selector. Tokens
// containing '=' split at the first occurrence; anything else is a bare
// term.
func ParseSelector(token string) Selector {
	if idx := strings.IndexByte(token, '='); idx >= 0 {
		return Selector{Field: token[:idx], Value: token[idx+1:]}
	}
	return Selector{Value: token}
}

// String renders the selector as a command argument, quoting the value
// only when the tokenizer would otherwise split or misread it.
func (s Selector) String() string {
	if s.Field == "" {
		return maybeQuote(s.Value)
	}
	return s.Field + "=" + maybeQuote(s.Value)
}

// Command is a structured protocol command. Build one with the
// constructors below and render it with String, or hand it to
// WriteCommand.
type Command struct {
	verb      string
	selectors []Selector
	fields    []Field
	returns   []string
	force     bool
	text      string
}

// Query returns a lookup command for entries matching all selectors.
func Query(selectors ...Selector) *Command {
	return &Command{verb: VerbQuery, selectors: selectors}
}

// Return restricts the fields a query reports. It returns the command for
// chaining.
func (c *Command) Return(fields ...string) *Command {
	c.returns = append(c.returns, fields...)
	return c
}

// Add returns a command creating one entry from the given fields.
func Add(fields ...Field) *Command {
	return &Command{verb: VerbAdd, fields: fields}
}

// Change returns a command updating entries matched by selectors with the
// given field changes.
func Change(selectors []Selector, changes []Field) *Command {
	return &Command{verb: VerbChange, selectors: selectors, fields: changes}
}

// Force confirms a change that affects multiple entries, rendering the
// "force" keyword in place of "make". It returns the command for chaining.
func (c *Command) Force() *Command {
	c.force = true
	return c
}

// Delete returns a command removing entries matched by all selectors.
func Delete(selectors ...Selector) *Command {
	return &Command{verb: VerbDelete, selectors: selectors}
}

// Identity returns the identity announcement sent after the banner. The
// text is sent verbatim.
func Identity(identity string) *Command {
	return &Command{verb: KeywordIdentity, text: identity}
}

// Auth returns the answer to an authentication challenge. Both arguments
// are always quoted: public keys contain spaces.
func Auth(publicKey, signature string) *Command {
	return &Command{
		verb: KeywordAuth,
		text: quote(publicKey) + " " + quote(signature),
	}
}

// Quit returns the farewell command.
func Quit() *Command {
	return &Command{verb: KeywordQuit}
}

// Status returns the liveness probe command.
func Status() *Command {
	return &Command{verb: KeywordStatus}
}

// Raw returns a command from free-form text. The text is normalized when
// rendered: surrounding whitespace is trimmed and text that does not begin
// with a recognized verb gets the "query " prefix.
func Raw(text string) *Command {
	return &Command{verb: "", text: text}
}

// String renders the command as one protocol line without its terminator.
func (c *Command) String() string {
	switch c.verb {
	case "":
		return NormalizeQuery(c.text)
	case KeywordIdentity:
		return KeywordIdentity + " " + c.text
	case KeywordAuth:
		return KeywordAuth + " " + c.text
	case VerbQuery, VerbDelete:
		parts := make([]string, 0, 2+len(c.selectors)+len(c.returns))
		parts = append(parts, c.verb)
		for _, s := range c.selectors {
			parts = append(parts, s.String())
		}
		if len(c.returns) > 0 {
			parts = append(parts, KeywordReturn)
			for _, f := range c.returns {
				parts = append(parts, maybeQuote(f))
			}
		}
		return strings.Join(parts, " ")
	case VerbAdd:
		parts := make([]string, 0, 1+len(c.fields))
		parts = append(parts, VerbAdd)
		for _, f := range c.fields {
			parts = append(parts, f.Name+"="+quote(f.Value))
		}
		return strings.Join(parts, " ")
	case VerbChange:
		parts := make([]string, 0, 2+len(c.selectors)+len(c.fields))
		parts = append(parts, VerbChange)
		for _, s := range c.selectors {
			parts = append(parts, s.String())
		}
		if c.force {
			parts = append(parts, KeywordForce)
		} else {
			parts = append(parts, KeywordMake)
		}
		for _, f := range c.fields {
			parts = append(parts, f.Name+"="+quote(f.Value))
		}
		return strings.Join(parts, " ")
	default:
		return c.verb
	}
}

// Key returns a stable routing key for server selection: the first
// selector's value, else the first field's value, else the rendered
// command.
func (c *Command) Key() string {
	if len(c.selectors) > 0 {
		return c.selectors[0].Value
	}
	if len(c.fields) > 0 {
		return c.fields[0].Value
	}
	return c.String()
}

// NormalizeQuery prepares free-form query text for the wire. Surrounding
// whitespace is trimmed; text whose first word is not a recognized verb
// gets the default "query " prefix, so "name=alice" becomes
// "query name=alice" while "add name=alice" passes through unchanged.
func NormalizeQuery(text string) string {
	trimmed := strings.TrimSpace(text)
	if fields := strings.Fields(trimmed); len(fields) > 0 && RecognizedVerb(fields[0]) {
		return trimmed
	}
	return strings.TrimSpace(VerbQuery + " " + trimmed)
}

// quote wraps s in double quotes, escaping backslashes and quotes.
func quote(s string) string {
	return `"` + escaper.Replace(s) + `"`
}

// maybeQuote quotes s only when the tokenizer needs it to: embedded
// whitespace, quotes, backslashes or an empty value.
func maybeQuote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"\\") {
		return quote(s)
	}
	return s
}
