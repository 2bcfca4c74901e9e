package raft

// LogType distinguishes the kinds of entries carried in an AppendRequest.
type LogType int32

const (
	LogCommand       LogType = iota // Application command bytes
	LogConfiguration                // Cluster membership change
	LogNoop                         // Leader-start barrier entry
)

// LogEntry is one replicated log record. Entries are immutable once created;
// the transport routes them without inspecting Data.
type LogEntry struct {
	Index uint64  `json:"index"`
	Term  uint64  `json:"term"`
	Type  LogType `json:"type"`
	Data  []byte  `json:"data,omitempty"`
}

// AppendRequest asks a follower to append entries. An empty Entries slice is
// a heartbeat.
type AppendRequest struct {
	Term         uint64     `json:"term"`
	PrevLogIndex uint64     `json:"prev_log_index"`
	PrevLogTerm  uint64     `json:"prev_log_term"`
	LeaderCommit uint64     `json:"leader_commit"`
	Entries      []LogEntry `json:"entries,omitempty"`
}

// AppendReply reports the outcome of an AppendRequest. On rejection LastIndex
// carries the follower's last log index so the leader can back up.
type AppendReply struct {
	Term        uint64 `json:"term"`
	CommitIndex uint64 `json:"commit_index"`
	Success     bool   `json:"success"`
	LastIndex   uint64 `json:"last_index"`
}

// VoteRequest solicits a vote for the sender in the given term.
type VoteRequest struct {
	Term         uint64 `json:"term"`
	LastLogIndex uint64 `json:"last_log_index"`
	LastLogTerm  uint64 `json:"last_log_term"`
	PreVote      bool   `json:"pre_vote,omitempty"`
	Force        bool   `json:"force,omitempty"`
}

// VoteReply answers a VoteRequest.
type VoteReply struct {
	Term        uint64 `json:"term"`
	VoteGranted bool   `json:"vote_granted"`
	PreVote     bool   `json:"pre_vote,omitempty"`
}

// TimeoutNow instructs the receiver to start an immediate election,
// typically during leadership transfer.
type TimeoutNow struct {
	Term uint64 `json:"term"`
}

// ReadQuorum is the leader's round-trip used to confirm it still holds a
// quorum before serving a linearizable read.
type ReadQuorum struct {
	Term        uint64 `json:"term"`
	CommitIndex uint64 `json:"commit_index"`
	ReadID      uint64 `json:"read_id"`
}

// ReadQuorumReply acknowledges a ReadQuorum round.
type ReadQuorumReply struct {
	Term        uint64 `json:"term"`
	CommitIndex uint64 `json:"commit_index"`
	ReadID      uint64 `json:"read_id"`
}

// SnapshotDescriptor identifies a snapshot and the log position it covers.
// Snapshot content format is owned by the engine and its state machine.
type SnapshotDescriptor struct {
	ID    ServerID `json:"id"`
	Index uint64   `json:"index"`
	Term  uint64   `json:"term"`
}

// InstallSnapshot transfers a snapshot to a follower that is too far behind
// for log replay.
type InstallSnapshot struct {
	Term     uint64             `json:"term"`
	Snapshot SnapshotDescriptor `json:"snapshot"`
	Data     []byte             `json:"data,omitempty"`
}

// SnapshotReply reports whether the receiver installed the snapshot.
type SnapshotReply struct {
	Term    uint64 `json:"term"`
	Success bool   `json:"success"`
}

// ReadBarrierReply answers a read barrier. When the target served the barrier
// Index is the commit index it certifies; otherwise Leader hints at where to
// retry and Index is zero.
type ReadBarrierReply struct {
	Index  uint64   `json:"index"`
	Leader ServerID `json:"leader,omitempty"`
}
