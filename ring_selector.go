package pharos

import (
	"fmt"
	"hash/crc32"
	"sort"
)

// defaultVirtualNodes spreads each server over this many ring points,
// evening out the distribution of a small server list.
const defaultVirtualNodes = 150

// RingSelector returns a selector implementing a CRC32 hash ring with
// virtual nodes over the given addresses. Ring placement hashes the
// address itself, so a key keeps its server as long as that server stays
// in the list, wherever it sits. The default Jump Hash selector remaps by
// position and is the better choice when the list only ever grows.
//
// The addresses must match the client's server list. Pass virtualNodes <=
// 0 for the default.
func RingSelector(addresses []string, virtualNodes int) SelectServerFunc {
	if virtualNodes <= 0 {
		virtualNodes = defaultVirtualNodes
	}

	ring := make([]uint32, 0, len(addresses)*virtualNodes)
	points := make(map[uint32]int, len(addresses)*virtualNodes)
	for idx, addr := range addresses {
		for i := 0; i < virtualNodes; i++ {
			h := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", addr, i)))
			if _, taken := points[h]; taken {
				continue
			}
			points[h] = idx
			ring = append(ring, h)
		}
	}
	sort.Slice(ring, func(a, b int) bool { return ring[a] < ring[b] })

	return func(key string, serverCount int) int {
		if len(ring) == 0 || serverCount <= 0 {
			return 0
		}
		h := crc32.ChecksumIEEE([]byte(key))
		i := sort.Search(len(ring), func(j int) bool { return ring[j] >= h })
		if i == len(ring) {
			// Wrap around the ring
			i = 0
		}
		return points[ring[i]] % serverCount
	}
}
