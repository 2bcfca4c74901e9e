package messaging

import (
	"context"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/quorumlabs/raftwire/pkg/raft"
	"github.com/quorumlabs/raftwire/pkg/transport"
)

// Server is the inbound half of the substrate. It receives envelopes for one
// consensus group, verifies the group id, learns expirable address mappings
// for unknown origins, and dispatches each message to the RPC transport's
// inbound entry points. The dispatcher is injected at construction, so no
// message can arrive before its target exists.
type Server struct {
	group      raft.GroupID
	dispatcher Dispatcher
	resolver   transport.Resolver
	logger     *logrus.Entry

	localAddr string
	server    *grpc.Server
	listener  net.Listener

	shutdown   chan struct{}
	shutdownMu sync.Mutex
}

// NewServer starts a messaging server for one group on listenAddr. The
// resolver may be nil, in which case origin addresses are not learnt.
func NewServer(listenAddr string, group raft.GroupID, d Dispatcher, r transport.Resolver, logger *logrus.Entry) (*Server, error) {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger().WithField("component", "messaging")
	}

	s := &Server{
		group:      group,
		dispatcher: d,
		resolver:   r,
		logger:     logger,
		localAddr:  listener.Addr().String(),
		listener:   listener,
		shutdown:   make(chan struct{}),
	}

	s.server = grpc.NewServer()
	s.server.RegisterService(&messagingServiceDesc, s)

	go func() {
		_ = s.server.Serve(listener)
	}()

	return s, nil
}

// LocalAddr returns the address on which this server listens.
func (s *Server) LocalAddr() string {
	return s.localAddr
}

// Exchange handles one envelope. Request/response kinds answer with the
// engine's reply in the response envelope; one-way kinds are dispatched and
// answered with an empty acknowledgement.
func (s *Server) Exchange(ctx context.Context, env *Envelope) (*Envelope, error) {
	if env.Group != s.group {
		return nil, status.Errorf(codes.FailedPrecondition, "envelope for unknown group %s", env.Group)
	}
	if env.From.IsZero() {
		return nil, status.Error(codes.InvalidArgument, "envelope without origin id")
	}

	s.learnOrigin(env)

	ack := &Envelope{Group: s.group, From: env.To, To: env.From, Kind: env.Kind}

	switch env.Kind {
	case KindAppendEntries:
		var req raft.AppendRequest
		if err := open(env, &req); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		reply, err := s.dispatcher.AppendEntries(ctx, env.From, req)
		if err != nil {
			return nil, err
		}
		return seal(ack, reply)

	case KindAppendEntriesReply:
		var reply raft.AppendReply
		if err := open(env, &reply); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.dispatcher.AppendEntriesReply(env.From, reply)
		return ack, nil

	case KindVoteRequest:
		var req raft.VoteRequest
		if err := open(env, &req); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.dispatcher.RequestVote(env.From, req)
		return ack, nil

	case KindVoteReply:
		var reply raft.VoteReply
		if err := open(env, &reply); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.dispatcher.RequestVoteReply(env.From, reply)
		return ack, nil

	case KindTimeoutNow:
		var req raft.TimeoutNow
		if err := open(env, &req); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.dispatcher.TimeoutNowRequest(env.From, req)
		return ack, nil

	case KindReadQuorum:
		var req raft.ReadQuorum
		if err := open(env, &req); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.dispatcher.ReadQuorumRequest(env.From, req)
		return ack, nil

	case KindReadQuorumReply:
		var reply raft.ReadQuorumReply
		if err := open(env, &reply); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.dispatcher.ReadQuorumReply(env.From, reply)
		return ack, nil

	case KindInstallSnapshot:
		var snap raft.InstallSnapshot
		if err := open(env, &snap); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		reply, err := s.dispatcher.ApplySnapshot(ctx, env.From, snap)
		if err != nil {
			return nil, err
		}
		return seal(ack, reply)

	case KindReadBarrier:
		reply, err := s.dispatcher.ExecuteReadBarrier(ctx, env.From)
		if err != nil {
			return nil, err
		}
		return seal(ack, reply)

	default:
		return nil, status.Errorf(codes.Unimplemented, "unknown message kind %q", env.Kind)
	}
}

// learnOrigin installs an expirable mapping for an origin the resolver does
// not know yet. Mappings learnt this way are eligible for the registry's own
// eviction, unlike administered ones.
func (s *Server) learnOrigin(env *Envelope) {
	if s.resolver == nil || env.FromAddr == "" {
		return
	}
	if _, err := s.resolver.Resolve(env.From); err != nil {
		s.logger.WithFields(logrus.Fields{
			"id":   env.From.String(),
			"addr": env.FromAddr,
		}).Debug("learnt peer address from message origin")
		s.resolver.Update(env.From, env.FromAddr, true)
	}
}

// Close stops the gRPC server gracefully, letting in-flight exchanges
// finish. Safe to call multiple times.
func (s *Server) Close() error {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	select {
	case <-s.shutdown:
		return nil
	default:
	}
	close(s.shutdown)

	s.server.GracefulStop()
	return nil
}
