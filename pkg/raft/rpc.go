package raft

import "context"

// RPC is the outbound operation set a consensus engine needs from its
// transport. Exactly one production implementation exists; tests substitute
// recording or failure-injecting stubs behind the same contract.
//
// Two call shapes exist. Request/response calls (SendSnapshot,
// SendAppendEntries, ExecuteReadBarrierOnLeader) block until the peer answers
// or the call fails, honor the caller's context for cancellation, and
// propagate the reply or failure. Fire-and-forget calls return immediately:
// the engine does not wait for completion or a reply, because Raft
// correctness never depends on any single such message arriving - the
// protocol retries through its own timers.
type RPC interface {
	// SendSnapshot streams a snapshot to a follower. The caller's context
	// is the abort signal for the transfer; no additional deadline is
	// applied.
	SendSnapshot(ctx context.Context, id ServerID, snap InstallSnapshot) (SnapshotReply, error)

	// SendAppendEntries replicates entries to one follower and returns the
	// follower's reply.
	SendAppendEntries(ctx context.Context, id ServerID, req AppendRequest) (AppendReply, error)

	// ExecuteReadBarrierOnLeader asks the current leader to certify a read
	// barrier on this server's behalf.
	ExecuteReadBarrierOnLeader(ctx context.Context, id ServerID) (ReadBarrierReply, error)

	// Fire-and-forget sends. After Abort has begun these are no-ops.
	SendAppendEntriesReply(id ServerID, reply AppendReply)
	SendVoteRequest(id ServerID, req VoteRequest)
	SendVoteReply(id ServerID, reply VoteReply)
	SendTimeoutNow(id ServerID, req TimeoutNow)
	SendReadQuorum(id ServerID, req ReadQuorum)
	SendReadQuorumReply(id ServerID, reply ReadQuorumReply)

	// AddServer decodes info into a network address and installs a
	// non-expirable mapping for id, replacing any previous address.
	// A payload that does not decode fails the call.
	AddServer(id ServerID, info ServerInfo) error

	// RemoveServer drops any mapping for id, however it was installed.
	// Removing an unknown id is a no-op.
	RemoveServer(id ServerID)

	// Abort stops the transport: new fire-and-forget sends are rejected and
	// the call blocks until every in-flight tracked send has finished.
	// Calling Abort again is a safe no-op that waits for the same drain.
	Abort()
}

// Handler is the inbound entry-point set a consensus engine exposes to its
// transport. The transport forwards each received message unmodified, tagged
// with the verified origin ServerID.
//
// One-way handlers must not block the transport's calling context; the
// engine is expected to queue internally. AppendEntries, ExecuteReadBarrier
// and ApplySnapshot are request/response: their return values travel back to
// the peer that sent the message. AppendEntriesReply remains for engines
// that answer appends asynchronously (pipelined replication).
type Handler interface {
	AppendEntries(ctx context.Context, from ServerID, req AppendRequest) (AppendReply, error)
	AppendEntriesReply(from ServerID, reply AppendReply)
	RequestVote(from ServerID, req VoteRequest)
	RequestVoteReply(from ServerID, reply VoteReply)
	TimeoutNowRequest(from ServerID, req TimeoutNow)
	ReadQuorumRequest(from ServerID, req ReadQuorum)
	ReadQuorumReply(from ServerID, reply ReadQuorumReply)

	ExecuteReadBarrier(ctx context.Context, from ServerID) (ReadBarrierReply, error)
	ApplySnapshot(ctx context.Context, from ServerID, snap InstallSnapshot) (SnapshotReply, error)
}
