package main

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

// echoHandler is the diagnostic consensus handler the probe server runs the
// transport under. It is not an engine: it acknowledges every request with
// the sender's own term so two probe nodes can exercise the full path from
// transport through substrate and back.
type echoHandler struct {
	logger   *logrus.Entry
	received atomic.Uint64
}

func newEchoHandler(logger *logrus.Entry) *echoHandler {
	return &echoHandler{logger: logger}
}

// Received returns the number of messages dispatched to this handler.
func (h *echoHandler) Received() uint64 {
	return h.received.Load()
}

func (h *echoHandler) seen(kind string, from raft.ServerID) {
	h.received.Add(1)
	h.logger.WithFields(logrus.Fields{"kind": kind, "from": from.String()}).Debug("received message")
}

func (h *echoHandler) AppendEntries(ctx context.Context, from raft.ServerID, req raft.AppendRequest) (raft.AppendReply, error) {
	h.seen("append_entries", from)
	last := req.PrevLogIndex + uint64(len(req.Entries))
	return raft.AppendReply{Term: req.Term, CommitIndex: req.LeaderCommit, Success: true, LastIndex: last}, nil
}

func (h *echoHandler) AppendEntriesReply(from raft.ServerID, reply raft.AppendReply) {
	h.seen("append_entries_reply", from)
}

func (h *echoHandler) RequestVote(from raft.ServerID, req raft.VoteRequest) {
	h.seen("request_vote", from)
}

func (h *echoHandler) RequestVoteReply(from raft.ServerID, reply raft.VoteReply) {
	h.seen("request_vote_reply", from)
}

func (h *echoHandler) TimeoutNowRequest(from raft.ServerID, req raft.TimeoutNow) {
	h.seen("timeout_now", from)
}

func (h *echoHandler) ReadQuorumRequest(from raft.ServerID, req raft.ReadQuorum) {
	h.seen("read_quorum", from)
}

func (h *echoHandler) ReadQuorumReply(from raft.ServerID, reply raft.ReadQuorumReply) {
	h.seen("read_quorum_reply", from)
}

func (h *echoHandler) ExecuteReadBarrier(ctx context.Context, from raft.ServerID) (raft.ReadBarrierReply, error) {
	h.seen("read_barrier", from)
	return raft.ReadBarrierReply{}, nil
}

func (h *echoHandler) ApplySnapshot(ctx context.Context, from raft.ServerID, snap raft.InstallSnapshot) (raft.SnapshotReply, error) {
	h.seen("install_snapshot", from)
	return raft.SnapshotReply{Term: snap.Term, Success: true}, nil
}
