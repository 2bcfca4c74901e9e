package transport

import (
	"time"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

// DefaultTickInterval is the assumed granularity of the consensus ticker
// when the transport is not told otherwise.
const DefaultTickInterval = 100 * time.Millisecond

// sendTimeout is the deadline budget for one fire-and-forget send: half the
// election timeout, scaled by the tick interval. A message that cannot be
// delivered within half an election is already stale - the engine's timers
// will have moved on.
func sendTimeout(tick time.Duration) time.Duration {
	return tick * (raft.ElectionTicks / 2)
}
