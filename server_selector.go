package pharos

import (
	"github.com/zeebo/xxh3"

	"github.com/pharosdir/pharos/internal"
)

// SelectServerFunc picks which server handles a command, given the
// command's routing key and the server count. It returns an index into
// the server list.
type SelectServerFunc func(key string, serverCount int) int

// DefaultSelectServer uses Jump Hash over an xxh3 digest of the key.
// Jump Hash provides better distribution and fewer key movements when servers are added/removed.
func DefaultSelectServer(key string, serverCount int) int {
	return internal.JumpHash(xxh3.HashString(key), serverCount)
}

// staticSelector is used in tests to always select a specific server.
func staticSelector(index int) SelectServerFunc {
	return func(key string, serverCount int) int {
		return index % serverCount
	}
}
