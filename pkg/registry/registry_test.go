package registry

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

func newTestMap(t *testing.T, opts Options) *AddressMap {
	t.Helper()
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestAddressMap_UpdateResolve(t *testing.T) {
	m := newTestMap(t, Options{})
	id := raft.NewServerID()

	if _, err := m.Resolve(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	m.Update(id, "10.0.0.7:7000", false)
	addr, err := m.Resolve(id)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if addr != "10.0.0.7:7000" {
		t.Errorf("expected 10.0.0.7:7000, got %s", addr)
	}
}

func TestAddressMap_AdministeredLastWriteWins(t *testing.T) {
	m := newTestMap(t, Options{})
	id := raft.NewServerID()

	m.Update(id, "10.0.0.7:7000", false)
	m.Update(id, "10.0.0.8:7000", false)

	addr, err := m.Resolve(id)
	if err != nil {
		t.Fatal(err)
	}
	if addr != "10.0.0.8:7000" {
		t.Errorf("expected the later address, got %s", addr)
	}
}

func TestAddressMap_LearntNeverOverwritesAdministered(t *testing.T) {
	m := newTestMap(t, Options{})
	id := raft.NewServerID()

	m.Update(id, "10.0.0.7:7000", false)
	m.Update(id, "192.168.1.1:9999", true)

	addr, err := m.Resolve(id)
	if err != nil {
		t.Fatal(err)
	}
	if addr != "10.0.0.7:7000" {
		t.Errorf("learnt update must not displace administered entry, got %s", addr)
	}

	snap := m.Snapshot()
	if len(snap) != 1 || snap[0].Expirable {
		t.Errorf("entry must stay non-expirable, got %+v", snap)
	}
}

func TestAddressMap_AdministeredReplacesLearnt(t *testing.T) {
	m := newTestMap(t, Options{})
	id := raft.NewServerID()

	m.Update(id, "192.168.1.1:9999", true)
	m.Update(id, "10.0.0.7:7000", false)

	addr, err := m.Resolve(id)
	if err != nil {
		t.Fatal(err)
	}
	if addr != "10.0.0.7:7000" {
		t.Errorf("administered update must win over learnt entry, got %s", addr)
	}
}

func TestAddressMap_LearntEntryExpires(t *testing.T) {
	m := newTestMap(t, Options{ExpiryPeriod: 20 * time.Millisecond})
	id := raft.NewServerID()

	m.Update(id, "10.0.0.7:7000", true)
	if _, err := m.Resolve(id); err != nil {
		t.Fatalf("fresh learnt entry must resolve: %v", err)
	}

	time.Sleep(40 * time.Millisecond)
	if _, err := m.Resolve(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired learnt entry, got %v", err)
	}
	if snap := m.Snapshot(); len(snap) != 0 {
		t.Errorf("expired entry must not appear in snapshot, got %+v", snap)
	}
}

func TestAddressMap_ResolveRefreshesLearntEntry(t *testing.T) {
	m := newTestMap(t, Options{ExpiryPeriod: 60 * time.Millisecond})
	id := raft.NewServerID()

	m.Update(id, "10.0.0.7:7000", true)
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		if _, err := m.Resolve(id); err != nil {
			t.Fatalf("refreshed entry must stay alive, failed at round %d: %v", i, err)
		}
	}
}

func TestAddressMap_AdministeredNeverExpires(t *testing.T) {
	m := newTestMap(t, Options{ExpiryPeriod: 20 * time.Millisecond})
	id := raft.NewServerID()

	m.Update(id, "10.0.0.7:7000", false)
	time.Sleep(50 * time.Millisecond)

	if _, err := m.Resolve(id); err != nil {
		t.Errorf("administered entry must survive the expiry period: %v", err)
	}
}

func TestAddressMap_RemoveIdempotent(t *testing.T) {
	m := newTestMap(t, Options{})
	id := raft.NewServerID()

	m.Remove(id) // unknown id

	m.Update(id, "10.0.0.7:7000", false)
	m.Remove(id)
	m.Remove(id)

	if _, err := m.Resolve(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after Remove, got %v", err)
	}
}

func TestAddressMap_PersistenceAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	admin := raft.NewServerID()
	learnt := raft.NewServerID()

	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore failed: %v", err)
	}
	m, err := New(Options{Store: store})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m.Update(admin, "10.0.0.7:7000", false)
	m.Update(learnt, "192.168.1.1:9999", true)
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = NewBoltStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	m = newTestMap(t, Options{Store: store})

	addr, err := m.Resolve(admin)
	if err != nil {
		t.Fatalf("administered entry must survive restart: %v", err)
	}
	if addr != "10.0.0.7:7000" {
		t.Errorf("expected 10.0.0.7:7000, got %s", addr)
	}
	if _, err := m.Resolve(learnt); !errors.Is(err, ErrNotFound) {
		t.Errorf("learnt entry must not be persisted, got %v", err)
	}
}

func TestAddressMap_RemoveDeletesPersistedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	id := raft.NewServerID()

	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(Options{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	m.Update(id, "10.0.0.7:7000", false)
	m.Remove(id)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	m = newTestMap(t, Options{Store: store})
	if _, err := m.Resolve(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("removed entry must not reappear after restart, got %v", err)
	}
}

func TestBoltStore_PutLoadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore failed: %v", err)
	}
	defer store.Close()

	a, b := raft.NewServerID(), raft.NewServerID()
	if err := store.Put(a, "10.0.0.1:7000"); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(b, "10.0.0.2:7000"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(b); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(raft.NewServerID()); err != nil {
		t.Errorf("deleting an absent id must succeed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 || got[a] != "10.0.0.1:7000" {
		t.Errorf("unexpected contents: %v", got)
	}
}
