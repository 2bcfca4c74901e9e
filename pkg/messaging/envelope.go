// Package messaging is the production cluster messaging substrate: it
// carries raftwire envelopes between servers over gRPC. The transport layer
// above it decides what to send and how to react to outcomes; this package
// only moves bytes, pools connections, and reports timeouts distinctly from
// other failures.
package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

// Kind discriminates the message variant carried in an Envelope.
type Kind string

// Message kinds on the wire. The reply to a request/response kind travels in
// the response envelope of the same exchange; one-way kinds are answered
// with an empty acknowledgement envelope.
const (
	KindAppendEntries      Kind = "append_entries"
	KindAppendEntriesReply Kind = "append_entries_reply"
	KindVoteRequest        Kind = "vote_request"
	KindVoteReply          Kind = "vote_reply"
	KindTimeoutNow         Kind = "timeout_now"
	KindReadQuorum         Kind = "read_quorum"
	KindReadQuorumReply    Kind = "read_quorum_reply"
	KindInstallSnapshot    Kind = "install_snapshot"
	KindReadBarrier        Kind = "read_barrier"
)

// Envelope is the unit of exchange between two messaging servers. FromAddr
// carries the sender's advertised listen address so a receiver can learn how
// to reach an origin it has no mapping for.
type Envelope struct {
	Group    raft.GroupID    `json:"group"`
	From     raft.ServerID   `json:"from"`
	To       raft.ServerID   `json:"to"`
	FromAddr string          `json:"from_addr,omitempty"`
	Kind     Kind            `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// seal wraps a message value into an envelope payload.
func seal(env *Envelope, payload interface{}) (*Envelope, error) {
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", env.Kind, err)
	}
	env.Payload = raw
	return env, nil
}

// open unwraps an envelope payload into the given message value.
func open(env *Envelope, v interface{}) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
	}
	return nil
}
