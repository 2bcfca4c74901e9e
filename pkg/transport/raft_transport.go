package transport

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

// Config carries the immutable identity and tuning of a Transport.
type Config struct {
	// GroupID is the consensus group this transport serves. Fixed for the
	// transport's lifetime.
	GroupID raft.GroupID

	// LocalID is this server's id within the group. Fixed for the
	// transport's lifetime.
	LocalID raft.ServerID

	// TickInterval is the consensus ticker granularity used to size
	// fire-and-forget send deadlines. Defaults to DefaultTickInterval.
	TickInterval time.Duration

	// Logger receives the transport's only hot-path output: one error entry
	// per non-timeout fire-and-forget failure. Defaults to the standard
	// logrus logger tagged with the component name.
	Logger *logrus.Entry
}

// Transport is the production implementation of raft.RPC. It resolves peer
// ids through a Resolver, sends through a Messenger, and forwards inbound
// messages to the engine Handler injected at construction - so a message can
// never arrive before its dispatch target exists.
type Transport struct {
	groupID raft.GroupID
	localID raft.ServerID
	tick    time.Duration

	messenger Messenger
	resolver  Resolver
	handler   raft.Handler

	gate   *Gate
	logger *logrus.Entry

	posted   atomic.Uint64
	timedOut atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64
}

// Compile-time check that Transport implements the engine's contract.
var _ raft.RPC = (*Transport)(nil)

// New creates a Transport bound to one group and one local server id.
func New(cfg Config, m Messenger, r Resolver, h raft.Handler) *Transport {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger().WithField("component", "raftwire")
	}
	return &Transport{
		groupID:   cfg.GroupID,
		localID:   cfg.LocalID,
		tick:      cfg.TickInterval,
		messenger: m,
		resolver:  r,
		handler:   h,
		gate:      NewGate(),
		logger:    cfg.Logger,
	}
}

// GroupID returns the consensus group this transport serves.
func (t *Transport) GroupID() raft.GroupID { return t.groupID }

// LocalID returns this server's id within the group.
func (t *Transport) LocalID() raft.ServerID { return t.localID }

// Stats returns a snapshot of the fire-and-forget send counters.
func (t *Transport) Stats() Stats {
	return Stats{
		Posted:   t.posted.Load(),
		TimedOut: t.timedOut.Load(),
		Failed:   t.failed.Load(),
		Rejected: t.rejected.Load(),
		Pending:  t.gate.Pending(),
	}
}

// ============================================================================
// Outbound: request/response
// ============================================================================

// SendSnapshot transfers a snapshot to the given peer. The caller's context
// is the abort signal for the transfer; the transport layers no deadline of
// its own and does not gate-track the call - the engine owns its lifetime
// and must stop issuing snapshot transfers before shutting down.
func (t *Transport) SendSnapshot(ctx context.Context, id raft.ServerID, snap raft.InstallSnapshot) (raft.SnapshotReply, error) {
	addr, err := t.resolver.Resolve(id)
	if err != nil {
		return raft.SnapshotReply{}, err
	}
	return t.messenger.InstallSnapshot(ctx, addr, t.groupID, t.localID, id, snap)
}

// SendAppendEntries replicates entries to one follower and returns the
// follower's reply unmodified. Any substrate timeout applies; this component
// adds none.
func (t *Transport) SendAppendEntries(ctx context.Context, id raft.ServerID, req raft.AppendRequest) (raft.AppendReply, error) {
	addr, err := t.resolver.Resolve(id)
	if err != nil {
		return raft.AppendReply{}, err
	}
	return t.messenger.AppendEntries(ctx, addr, t.groupID, t.localID, id, req)
}

// ExecuteReadBarrierOnLeader asks the peer believed to be leader to certify
// a read barrier on this server's behalf.
func (t *Transport) ExecuteReadBarrierOnLeader(ctx context.Context, id raft.ServerID) (raft.ReadBarrierReply, error) {
	addr, err := t.resolver.Resolve(id)
	if err != nil {
		return raft.ReadBarrierReply{}, err
	}
	return t.messenger.ReadBarrier(ctx, addr, t.groupID, t.localID, id)
}

// ============================================================================
// Outbound: fire-and-forget
// ============================================================================

// SendAppendEntriesReply sends an append reply without waiting for delivery.
func (t *Transport) SendAppendEntriesReply(id raft.ServerID, reply raft.AppendReply) {
	t.post(id, "append reply", func(ctx context.Context, addr string) error {
		return t.messenger.AppendEntriesReply(ctx, addr, t.groupID, t.localID, id, reply)
	})
}

// SendVoteRequest sends a vote request without waiting for delivery.
func (t *Transport) SendVoteRequest(id raft.ServerID, req raft.VoteRequest) {
	t.post(id, "vote request", func(ctx context.Context, addr string) error {
		return t.messenger.VoteRequest(ctx, addr, t.groupID, t.localID, id, req)
	})
}

// SendVoteReply sends a vote reply without waiting for delivery.
func (t *Transport) SendVoteReply(id raft.ServerID, reply raft.VoteReply) {
	t.post(id, "vote reply", func(ctx context.Context, addr string) error {
		return t.messenger.VoteReply(ctx, addr, t.groupID, t.localID, id, reply)
	})
}

// SendTimeoutNow tells a peer to start an immediate election, without
// waiting for delivery.
func (t *Transport) SendTimeoutNow(id raft.ServerID, req raft.TimeoutNow) {
	t.post(id, "timeout now", func(ctx context.Context, addr string) error {
		return t.messenger.TimeoutNow(ctx, addr, t.groupID, t.localID, id, req)
	})
}

// SendReadQuorum sends a read-quorum round without waiting for delivery.
func (t *Transport) SendReadQuorum(id raft.ServerID, req raft.ReadQuorum) {
	t.post(id, "read barrier", func(ctx context.Context, addr string) error {
		return t.messenger.ReadQuorum(ctx, addr, t.groupID, t.localID, id, req)
	})
}

// SendReadQuorumReply sends a read-quorum acknowledgement without waiting
// for delivery.
func (t *Transport) SendReadQuorumReply(id raft.ServerID, reply raft.ReadQuorumReply) {
	t.post(id, "read barrier reply", func(ctx context.Context, addr string) error {
		return t.messenger.ReadQuorumReply(ctx, addr, t.groupID, t.localID, id, reply)
	})
}

// post runs one fire-and-forget send as a gate-tracked detached goroutine.
// The gate is entered before the goroutine starts, so once Abort begins no
// new network operation can be launched. The caller gets nothing back: a
// timeout is expected noise that the engine's own timers absorb, and any
// other failure is logged with the destination id and dropped.
func (t *Transport) post(id raft.ServerID, what string, send func(ctx context.Context, addr string) error) {
	if err := t.gate.Enter(); err != nil {
		t.rejected.Add(1)
		return
	}
	t.posted.Add(1)
	go func() {
		defer t.gate.Leave()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout(t.tick))
		defer cancel()

		addr, err := t.resolver.Resolve(id)
		if err == nil {
			err = send(ctx, addr)
		}
		switch {
		case err == nil:
		case IsTimeout(err):
			t.timedOut.Add(1)
		default:
			t.failed.Add(1)
			t.logger.WithField("to", id.String()).WithError(err).Errorf("failed to send %s", what)
		}
	}()
}

// ============================================================================
// Address administration
// ============================================================================

// AddServer decodes info into a network address and installs the mapping.
// Entries managed explicitly through AddServer and RemoveServer never
// expire, while entries learnt from received message origins do. Calling
// AddServer again for the same id replaces the address.
func (t *Transport) AddServer(id raft.ServerID, info raft.ServerInfo) error {
	addr, err := DecodeServerInfo(info)
	if err != nil {
		return fmt.Errorf("add server %s: %w", id, err)
	}
	t.resolver.Update(id, addr, false)
	return nil
}

// RemoveServer drops any mapping for id, whether administered or learnt.
// Removing an unknown id is a no-op.
func (t *Transport) RemoveServer(id raft.ServerID) {
	t.resolver.Remove(id)
}

// ============================================================================
// Shutdown
// ============================================================================

// Abort closes the shutdown gate and waits for every in-flight
// fire-and-forget send to finish. Afterwards fire-and-forget calls are
// no-ops. Safe to call more than once.
func (t *Transport) Abort() {
	t.gate.Close()
}

// ============================================================================
// Inbound dispatch (invoked by the messaging substrate)
// ============================================================================

// AppendEntries hands a received append request to the engine and returns
// the engine's reply to the substrate, which sends it back over the wire.
func (t *Transport) AppendEntries(ctx context.Context, from raft.ServerID, req raft.AppendRequest) (raft.AppendReply, error) {
	return t.handler.AppendEntries(ctx, from, req)
}

// AppendEntriesReply forwards a received append reply to the engine.
func (t *Transport) AppendEntriesReply(from raft.ServerID, reply raft.AppendReply) {
	t.handler.AppendEntriesReply(from, reply)
}

// RequestVote forwards a received vote request to the engine.
func (t *Transport) RequestVote(from raft.ServerID, req raft.VoteRequest) {
	t.handler.RequestVote(from, req)
}

// RequestVoteReply forwards a received vote reply to the engine.
func (t *Transport) RequestVoteReply(from raft.ServerID, reply raft.VoteReply) {
	t.handler.RequestVoteReply(from, reply)
}

// TimeoutNowRequest forwards a received timeout-now to the engine.
func (t *Transport) TimeoutNowRequest(from raft.ServerID, req raft.TimeoutNow) {
	t.handler.TimeoutNowRequest(from, req)
}

// ReadQuorumRequest forwards a received read-quorum round to the engine.
func (t *Transport) ReadQuorumRequest(from raft.ServerID, req raft.ReadQuorum) {
	t.handler.ReadQuorumRequest(from, req)
}

// ReadQuorumReply forwards a received read-quorum acknowledgement to the
// engine.
func (t *Transport) ReadQuorumReply(from raft.ServerID, reply raft.ReadQuorumReply) {
	t.handler.ReadQuorumReply(from, reply)
}

// ExecuteReadBarrier asks the engine to certify a read barrier for a peer
// and returns the engine's reply to the substrate, which sends it back over
// the wire.
func (t *Transport) ExecuteReadBarrier(ctx context.Context, from raft.ServerID) (raft.ReadBarrierReply, error) {
	return t.handler.ExecuteReadBarrier(ctx, from)
}

// ApplySnapshot hands a received snapshot to the engine and returns the
// engine's reply to the substrate.
func (t *Transport) ApplySnapshot(ctx context.Context, from raft.ServerID, snap raft.InstallSnapshot) (raft.SnapshotReply, error) {
	return t.handler.ApplySnapshot(ctx, from, snap)
}
