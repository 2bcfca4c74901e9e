package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/quorumlabs/raftwire/pkg/raft"
	"github.com/quorumlabs/raftwire/pkg/transport"
)

// Error variables for client operations.
var (
	// ErrClosed is returned when operations are attempted on a closed client.
	ErrClosed = errors.New("messaging client is closed")
	// ErrConnectionFailed is returned when a connection to a peer cannot be
	// established.
	ErrConnectionFailed = errors.New("failed to connect to peer")
)

// Client is the outbound half of the substrate: the production
// implementation of transport.Messenger. It pools one gRPC connection per
// peer address and stamps every envelope with the local advertised address
// so receivers can learn how to reach this server.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	advertiseAddr string

	// Connection pool: map[peerAddr]*grpc.ClientConn
	connPool sync.Map

	shutdown   chan struct{}
	shutdownMu sync.Mutex
}

// Compile-time check that Client implements transport.Messenger.
var _ transport.Messenger = (*Client)(nil)

// NewClient creates a Client. advertiseAddr is the listen address of this
// server's own messaging endpoint, embedded in outgoing envelopes.
func NewClient(advertiseAddr string) *Client {
	return &Client{
		advertiseAddr: advertiseAddr,
		shutdown:      make(chan struct{}),
	}
}

// getOrCreateConn returns an existing connection from the pool or creates a
// new one. Uses LoadOrStore so that when multiple goroutines race to connect
// to the same peer, only one connection is kept.
func (c *Client) getOrCreateConn(peerAddr string) (*grpc.ClientConn, error) {
	select {
	case <-c.shutdown:
		return nil, ErrClosed
	default:
	}

	if val, ok := c.connPool.Load(peerAddr); ok {
		return val.(*grpc.ClientConn), nil
	}

	conn, err := grpc.NewClient(peerAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, ErrConnectionFailed
	}

	actual, loaded := c.connPool.LoadOrStore(peerAddr, conn)
	if loaded {
		conn.Close()
		return actual.(*grpc.ClientConn), nil
	}

	return conn, nil
}

// exchange performs one envelope round trip with the peer at addr, honoring
// the context's deadline and cancellation.
func (c *Client) exchange(ctx context.Context, addr string, env *Envelope) (*Envelope, error) {
	conn, err := c.getOrCreateConn(addr)
	if err != nil {
		return nil, err
	}

	out := new(Envelope)
	err = conn.Invoke(ctx, ExchangeMethod, env, out, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// classify maps deadline expiry onto the transport's distinguished timeout
// error; everything else passes through as-is.
func classify(err error) error {
	if status.Code(err) == codes.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", transport.ErrSendTimeout, err)
	}
	return err
}

func (c *Client) envelope(kind Kind, group raft.GroupID, from, to raft.ServerID, payload interface{}) (*Envelope, error) {
	return seal(&Envelope{
		Group:    group,
		From:     from,
		To:       to,
		FromAddr: c.advertiseAddr,
		Kind:     kind,
	}, payload)
}

// post sends a one-way envelope and ignores the acknowledgement body.
func (c *Client) post(ctx context.Context, addr string, kind Kind, group raft.GroupID, from, to raft.ServerID, payload interface{}) error {
	env, err := c.envelope(kind, group, from, to, payload)
	if err != nil {
		return err
	}
	_, err = c.exchange(ctx, addr, env)
	return err
}

// AppendEntries sends an append request and returns the peer's reply.
func (c *Client) AppendEntries(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, req raft.AppendRequest) (raft.AppendReply, error) {
	env, err := c.envelope(KindAppendEntries, group, from, to, req)
	if err != nil {
		return raft.AppendReply{}, err
	}
	resp, err := c.exchange(ctx, addr, env)
	if err != nil {
		return raft.AppendReply{}, err
	}
	var reply raft.AppendReply
	if err := open(resp, &reply); err != nil {
		return raft.AppendReply{}, err
	}
	return reply, nil
}

// AppendEntriesReply sends an append reply one-way.
func (c *Client) AppendEntriesReply(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, reply raft.AppendReply) error {
	return c.post(ctx, addr, KindAppendEntriesReply, group, from, to, reply)
}

// VoteRequest sends a vote request one-way.
func (c *Client) VoteRequest(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, req raft.VoteRequest) error {
	return c.post(ctx, addr, KindVoteRequest, group, from, to, req)
}

// VoteReply sends a vote reply one-way.
func (c *Client) VoteReply(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, reply raft.VoteReply) error {
	return c.post(ctx, addr, KindVoteReply, group, from, to, reply)
}

// TimeoutNow sends a timeout-now one-way.
func (c *Client) TimeoutNow(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, req raft.TimeoutNow) error {
	return c.post(ctx, addr, KindTimeoutNow, group, from, to, req)
}

// ReadQuorum sends a read-quorum round one-way.
func (c *Client) ReadQuorum(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, req raft.ReadQuorum) error {
	return c.post(ctx, addr, KindReadQuorum, group, from, to, req)
}

// ReadQuorumReply sends a read-quorum acknowledgement one-way.
func (c *Client) ReadQuorumReply(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, reply raft.ReadQuorumReply) error {
	return c.post(ctx, addr, KindReadQuorumReply, group, from, to, reply)
}

// InstallSnapshot transfers a snapshot and returns the peer's reply.
func (c *Client) InstallSnapshot(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID, snap raft.InstallSnapshot) (raft.SnapshotReply, error) {
	env, err := c.envelope(KindInstallSnapshot, group, from, to, snap)
	if err != nil {
		return raft.SnapshotReply{}, err
	}
	resp, err := c.exchange(ctx, addr, env)
	if err != nil {
		return raft.SnapshotReply{}, err
	}
	var reply raft.SnapshotReply
	if err := open(resp, &reply); err != nil {
		return raft.SnapshotReply{}, err
	}
	return reply, nil
}

// ReadBarrier asks the peer to certify a read barrier and returns its reply.
func (c *Client) ReadBarrier(ctx context.Context, addr string, group raft.GroupID, from, to raft.ServerID) (raft.ReadBarrierReply, error) {
	env, err := c.envelope(KindReadBarrier, group, from, to, nil)
	if err != nil {
		return raft.ReadBarrierReply{}, err
	}
	resp, err := c.exchange(ctx, addr, env)
	if err != nil {
		return raft.ReadBarrierReply{}, err
	}
	var reply raft.ReadBarrierReply
	if err := open(resp, &reply); err != nil {
		return raft.ReadBarrierReply{}, err
	}
	return reply, nil
}

// Close shuts the client down and closes all pooled connections. Safe to
// call multiple times.
func (c *Client) Close() error {
	c.shutdownMu.Lock()
	defer c.shutdownMu.Unlock()

	select {
	case <-c.shutdown:
		return nil
	default:
	}
	close(c.shutdown)

	c.connPool.Range(func(key, value interface{}) bool {
		if conn, ok := value.(*grpc.ClientConn); ok {
			conn.Close()
		}
		c.connPool.Delete(key)
		return true
	})

	return nil
}
