package messaging

import (
	"context"

	"google.golang.org/grpc"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

// ExchangeMethod is the full gRPC method name of the envelope exchange.
const ExchangeMethod = "/raftwire.Messaging/Exchange"

// Dispatcher is what a messaging server needs from the RPC transport above
// it: one inbound entry point per message variant, each taking the verified
// origin server id. AppendEntries, ExecuteReadBarrier and ApplySnapshot
// return the value that travels back in the response envelope.
type Dispatcher interface {
	AppendEntries(ctx context.Context, from raft.ServerID, req raft.AppendRequest) (raft.AppendReply, error)
	AppendEntriesReply(from raft.ServerID, reply raft.AppendReply)
	RequestVote(from raft.ServerID, req raft.VoteRequest)
	RequestVoteReply(from raft.ServerID, reply raft.VoteReply)
	TimeoutNowRequest(from raft.ServerID, req raft.TimeoutNow)
	ReadQuorumRequest(from raft.ServerID, req raft.ReadQuorum)
	ReadQuorumReply(from raft.ServerID, reply raft.ReadQuorumReply)
	ExecuteReadBarrier(ctx context.Context, from raft.ServerID) (raft.ReadBarrierReply, error)
	ApplySnapshot(ctx context.Context, from raft.ServerID, snap raft.InstallSnapshot) (raft.SnapshotReply, error)
}

// exchangeServer is the server-side surface of the Exchange method.
type exchangeServer interface {
	Exchange(ctx context.Context, env *Envelope) (*Envelope, error)
}

func exchangeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(exchangeServer).Exchange(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExchangeMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(exchangeServer).Exchange(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

// The service descriptor is registered by hand: the envelope is not a
// protobuf message, so there is no generated stub to lean on.
var messagingServiceDesc = grpc.ServiceDesc{
	ServiceName: "raftwire.Messaging",
	HandlerType: (*exchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Exchange",
			Handler:    exchangeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raftwire/messaging",
}
