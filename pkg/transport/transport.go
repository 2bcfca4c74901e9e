// Package transport binds a Raft consensus engine to a cluster messaging
// substrate. It translates the engine's outbound intents into bounded
// network sends, routes inbound peer messages back into the engine's
// handlers, resolves server ids to network addresses, and guarantees that no
// outbound work outlives an explicit Abort.
//
// # Thread Safety Guarantees
//
// Transport is safe for concurrent use by multiple goroutines. Its only
// mutable state is the shutdown gate and a set of atomic counters; the group
// and local server ids are fixed at construction.
package transport

import (
	"context"
	"errors"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

// ErrSendTimeout is the distinguished timeout outcome of a substrate send.
// Messenger implementations must wrap it (or context.DeadlineExceeded) when
// a send fails because its deadline expired, so the transport can tell
// benign timeouts from real failures.
var ErrSendTimeout = errors.New("send timed out")

// IsTimeout reports whether a send failure is the benign deadline-expired
// outcome rather than a real delivery problem.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrSendTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Messenger is the contract of the cluster messaging substrate: one
// operation per outbound message variant. The substrate owns connection
// management, serialization, and network timeouts; it honors the context's
// deadline and cancellation. Failures caused by deadline expiry must satisfy
// IsTimeout.
type Messenger interface {
	AppendEntries(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, req raft.AppendRequest) (raft.AppendReply, error)
	AppendEntriesReply(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, reply raft.AppendReply) error
	VoteRequest(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, req raft.VoteRequest) error
	VoteReply(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, reply raft.VoteReply) error
	TimeoutNow(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, req raft.TimeoutNow) error
	ReadQuorum(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, req raft.ReadQuorum) error
	ReadQuorumReply(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, reply raft.ReadQuorumReply) error
	InstallSnapshot(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, snap raft.InstallSnapshot) (raft.SnapshotReply, error)
	ReadBarrier(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID) (raft.ReadBarrierReply, error)
}

// Resolver is the contract of the peer address registry. Update installs or
// replaces a mapping; entries installed with expirable=true are eligible for
// the registry's own eviction policy, entries installed with expirable=false
// persist until removed explicitly. Remove is idempotent.
type Resolver interface {
	Resolve(id raft.ServerID) (string, error)
	Update(id raft.ServerID, addr string, expirable bool)
	Remove(id raft.ServerID)
}

// Stats is a point-in-time snapshot of the transport's fire-and-forget send
// counters. Request/response calls are not counted; their outcomes surface
// directly to the caller.
type Stats struct {
	Posted   uint64 `json:"posted"`    // Sends launched through the gate
	TimedOut uint64 `json:"timed_out"` // Benign deadline expiries, swallowed
	Failed   uint64 `json:"failed"`    // Non-timeout failures, logged and swallowed
	Rejected uint64 `json:"rejected"`  // Sends refused because the gate was closing
	Pending  int    `json:"pending"`   // Tracked sends currently in flight
}
