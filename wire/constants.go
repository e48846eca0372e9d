package wire

// Network defaults.
const (
	// DefaultPort is the TCP port Pharos nameservers listen on by default.
	// The CCSO nameserver tradition uses 105; Pharos deployments use 1050.
	DefaultPort = 1050
)

// Status codes carried in the leading segment of a response line.
//
// Wire format:
//
//	<code>:<message>
//
// Positive codes follow the CCSO convention: 1xx in-progress information,
// 2xx success, 4xx permanent failure, 5xx server failure. Negative codes
// mark data lines holding record fields.
const (
	// CodeSuccess is the terminal success code. During the handshake it
	// acknowledges the banner and the identity announcement; while awaiting
	// a query result it finalizes the operation.
	//
	// Typical lines:
	//
	//	200:Database ready
	//	200:Ok
	//	200:QUERY:Complete
	CodeSuccess = 200

	// CodeMatchCount announces how many entries matched a query before the
	// data lines are sent.
	//
	// Typical line:
	//
	//	102:There were 2 matches to your request.
	//
	// The count is the third whitespace-separated token of the message.
	CodeMatchCount = 102

	// CodeAuthChallenge rejects a mutating command from an unauthenticated
	// client and carries a challenge to sign.
	//
	// Typical line:
	//
	//	401:Authentication required. Challenge: 3f2a...
	CodeAuthChallenge = 401

	// CodeForbidden rejects a command the authenticated client may not run.
	CodeForbidden = 403

	// CodeNoMatches reports that a query matched nothing.
	//
	// Typical line:
	//
	//	501:No matches to query
	CodeNoMatches = 501

	// CodeIllegalValue reports a field value the server will not accept.
	CodeIllegalValue = 512

	// CodeUnknownCommand reports a command the server does not recognize or
	// has not implemented.
	CodeUnknownCommand = 598

	// CodeSyntaxError reports a command line the server could not parse,
	// such as an unterminated quoted string.
	CodeSyntaxError = 599

	// CodeData is the conventional code for data lines. Classification
	// treats any negative code as data; this is the value servers send.
	//
	// Wire format:
	//
	//	-200:<record id>:<field name>: <field value>
	CodeData = -200
)

// Synthesized status codes. These never appear on the wire; the client
// fabricates them for local terminal conditions so every operation still
// resolves to exactly one Result.
const (
	// CodeTimeout marks an operation abandoned because its deadline passed.
	CodeTimeout = 408

	// CodeCanceled marks an operation abandoned because its context was
	// canceled.
	CodeCanceled = 499

	// CodeHandshakeFailed is the fallback code for an identity rejection
	// whose line carried no parsable code of its own.
	CodeHandshakeFailed = 500
)

// Command verbs and keywords.
//
// A command line is a verb followed by whitespace-separated arguments.
// Arguments containing whitespace, quotes or backslashes are wrapped in
// double quotes with backslash escapes for '"' and '\'.
const (
	// VerbQuery looks up directory entries by selector.
	//
	// Wire format:
	//
	//	query <selector>... [return <field>...]
	VerbQuery = "query"

	// VerbPh is the traditional alias for VerbQuery.
	VerbPh = "ph"

	// VerbAdd creates a directory entry from field=value pairs. Requires
	// authentication.
	//
	// Wire format:
	//
	//	add <field>=<value>...
	VerbAdd = "add"

	// VerbChange updates entries matched by selectors. Requires
	// authentication.
	//
	// Wire format:
	//
	//	change <selector>... make <field>=<value>...
	//
	// The "force" keyword in place of "make" applies the change even when
	// it affects multiple entries.
	VerbChange = "change"

	// VerbDelete removes entries matched by selectors. Requires
	// authentication.
	//
	// Wire format:
	//
	//	delete <selector>...
	VerbDelete = "delete"

	// KeywordIdentity announces the client identity after the banner.
	//
	// Wire format:
	//
	//	id <client name and version>
	KeywordIdentity = "id"

	// KeywordAuth answers an authentication challenge with a public key and
	// a signature over the challenge.
	//
	// Wire format:
	//
	//	auth "<public key>" "<signature>"
	KeywordAuth = "auth"

	// KeywordQuit ends the conversation. Servers reply with a farewell but
	// clients need not wait for it.
	KeywordQuit = "quit"

	// KeywordStatus asks the server for a liveness line. Any reply means
	// the server is up; useful as a health check.
	KeywordStatus = "status"

	// KeywordSiteInfo asks for server metadata lines.
	KeywordSiteInfo = "siteinfo"

	// KeywordFields asks for the server's field catalog.
	KeywordFields = "fields"

	// KeywordReturn introduces the field projection list of a query.
	KeywordReturn = "return"

	// KeywordMake introduces the modification list of a change command.
	KeywordMake = "make"

	// KeywordForce replaces KeywordMake to confirm multi-entry changes.
	KeywordForce = "force"
)

// queryVerbs are the verbs free-form text may begin with to be sent as-is.
// Text starting with anything else gets the VerbQuery prefix.
var queryVerbs = map[string]bool{
	VerbQuery:  true,
	VerbPh:     true,
	VerbAdd:    true,
	VerbChange: true,
	VerbDelete: true,
}

// RecognizedVerb reports whether word is a command verb that free-form
// query text may begin with. The comparison is exact: verbs are lowercase
// on the wire.
func RecognizedVerb(word string) bool {
	return queryVerbs[word]
}
