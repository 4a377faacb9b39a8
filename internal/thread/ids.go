// ABOUTME: Thread id generation using ULIDs
// ABOUTME: Monotonic entropy keeps same-millisecond ids ordered and collision-free

package thread

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newThreadID returns a new ULID string. ULIDs are lexicographically ordered
// by creation time, so sibling order in the navigation tree follows id order.
func newThreadID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
