// Package raft defines the contract surface between a Raft consensus engine
// and the infrastructure that carries its messages. The engine itself is an
// external collaborator: this package holds the identifiers and message
// variants it exchanges, the RPC interface it consumes for outbound traffic,
// and the Handler interface it exposes for inbound traffic.
package raft

import "github.com/google/uuid"

// ElectionTicks is the election timeout expressed in ticker granularity.
// The transport derives its per-send deadline budget from half of it.
const ElectionTicks = 10

// ServerID uniquely identifies a consensus participant. It is assigned once
// and never recycled while an address mapping for it exists.
type ServerID uuid.UUID

// NewServerID returns a fresh random ServerID.
func NewServerID() ServerID {
	return ServerID(uuid.New())
}

// ParseServerID parses the canonical UUID text form of a ServerID.
func ParseServerID(s string) (ServerID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ServerID{}, err
	}
	return ServerID(u), nil
}

// String returns the canonical UUID text form.
func (id ServerID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the id is the zero value.
func (id ServerID) IsZero() bool {
	return id == ServerID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id ServerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ServerID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = ServerID(u)
	return nil
}

// GroupID identifies one consensus group. A transport instance is bound to
// exactly one group and one local ServerID for its entire lifetime.
type GroupID uuid.UUID

// NewGroupID returns a fresh random GroupID.
func NewGroupID() GroupID {
	return GroupID(uuid.New())
}

// ParseGroupID parses the canonical UUID text form of a GroupID.
func ParseGroupID(s string) (GroupID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GroupID{}, err
	}
	return GroupID(u), nil
}

// String returns the canonical UUID text form.
func (g GroupID) String() string {
	return uuid.UUID(g).String()
}

// MarshalText implements encoding.TextMarshaler.
func (g GroupID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GroupID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*g = GroupID(u)
	return nil
}

// ServerInfo is the opaque payload supplied by the engine when a peer is
// added administratively. For this transport it decodes to a network address;
// see the transport package for the encoding.
type ServerInfo []byte
