package transport

import (
	"fmt"
	"net"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

// EncodeServerInfo packs a host:port network address into the opaque
// ServerInfo payload the engine hands to AddServer.
func EncodeServerInfo(addr string) (raft.ServerInfo, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	b, err := proto.Marshal(wrapperspb.String(addr))
	if err != nil {
		return nil, err
	}
	return raft.ServerInfo(b), nil
}

// DecodeServerInfo unpacks a ServerInfo payload into a host:port address.
// A payload that does not decode, or decodes to something that is not a
// host:port pair, is an error: installing a bad mapping silently would break
// delivery to that peer until the next reconfiguration.
func DecodeServerInfo(info raft.ServerInfo) (string, error) {
	var sv wrapperspb.StringValue
	if err := proto.Unmarshal(info, &sv); err != nil {
		return "", fmt.Errorf("unmarshal server info: %w", err)
	}
	if _, _, err := net.SplitHostPort(sv.Value); err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", sv.Value, err)
	}
	return sv.Value, nil
}
