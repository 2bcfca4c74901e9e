package messaging

import (
	"testing"

	"google.golang.org/grpc/encoding"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

func TestEnvelope_SealOpen(t *testing.T) {
	env := &Envelope{
		Group: raft.NewGroupID(),
		From:  raft.NewServerID(),
		To:    raft.NewServerID(),
		Kind:  KindVoteRequest,
	}
	want := raft.VoteRequest{Term: 3, LastLogIndex: 9, LastLogTerm: 2, PreVote: true}

	env, err := seal(env, want)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	var got raft.VoteRequest
	if err := open(env, &got); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if got != want {
		t.Errorf("payload round trip changed the message: %+v", got)
	}
}

func TestEnvelope_SealNilPayload(t *testing.T) {
	env, err := seal(&Envelope{Kind: KindReadBarrier}, nil)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if env.Payload != nil {
		t.Errorf("nil payload must stay empty, got %s", env.Payload)
	}
}

func TestEnvelope_OpenMalformedPayload(t *testing.T) {
	env := &Envelope{Kind: KindVoteRequest, Payload: []byte("{broken")}
	var req raft.VoteRequest
	if err := open(env, &req); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestCodec_RegisteredWithGRPC(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	if codec == nil {
		t.Fatalf("codec %q not registered", CodecName)
	}

	env := &Envelope{Group: raft.NewGroupID(), From: raft.NewServerID(), Kind: KindTimeoutNow}
	data, err := codec.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out := new(Envelope)
	if err := codec.Unmarshal(data, out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Group != env.Group || out.From != env.From || out.Kind != env.Kind {
		t.Errorf("envelope round trip mismatch: %+v", out)
	}
}
