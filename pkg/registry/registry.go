// Package registry maintains the mapping from consensus server ids to
// network addresses.
//
// Entries come from two paths with different lifetimes. Administered entries
// are installed through explicit reconfiguration (the transport's AddServer)
// and never expire; they can optionally be persisted so a peer's relocated
// address survives restarts. Learnt entries are installed when a message
// arrives from an origin the registry does not know; they expire after a
// quiet period so departed peers do not accumulate forever.
//
// AddressMap is safe for concurrent use by multiple goroutines.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quorumlabs/raftwire/pkg/raft"
)

// ErrNotFound is returned by Resolve when no live mapping exists for an id.
var ErrNotFound = errors.New("no address mapping for server")

// DefaultExpiryPeriod is how long a learnt entry survives without being
// refreshed by another message from the same origin.
const DefaultExpiryPeriod = time.Hour

// Store persists administered mappings across restarts. Implementations
// must tolerate Delete of absent keys.
type Store interface {
	Load() (map[raft.ServerID]string, error)
	Put(id raft.ServerID, addr string) error
	Delete(id raft.ServerID) error
	Close() error
}

type entry struct {
	addr      string
	expirable bool
	lastSeen  time.Time
}

// Mapping is one registry entry as reported by Snapshot.
type Mapping struct {
	ID        raft.ServerID `json:"id"`
	Addr      string        `json:"addr"`
	Expirable bool          `json:"expirable"`
}

// Options configures an AddressMap.
type Options struct {
	// ExpiryPeriod bounds the lifetime of learnt entries. Defaults to
	// DefaultExpiryPeriod.
	ExpiryPeriod time.Duration

	// Store, when set, persists administered entries. The AddressMap takes
	// ownership and closes it on Close.
	Store Store

	// Logger reports persistence failures. Defaults to the standard logger.
	Logger *logrus.Entry
}

// AddressMap is the peer address registry.
type AddressMap struct {
	mu      sync.Mutex
	entries map[raft.ServerID]entry

	expiry time.Duration
	store  Store
	logger *logrus.Entry
	now    func() time.Time

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New creates an AddressMap, loading any persisted administered entries and
// starting the background sweep that evicts expired learnt entries.
func New(opts Options) (*AddressMap, error) {
	if opts.ExpiryPeriod <= 0 {
		opts.ExpiryPeriod = DefaultExpiryPeriod
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger().WithField("component", "registry")
	}

	m := &AddressMap{
		entries:   make(map[raft.ServerID]entry),
		expiry:    opts.ExpiryPeriod,
		store:     opts.Store,
		logger:    opts.Logger,
		now:       time.Now,
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}

	if m.store != nil {
		persisted, err := m.store.Load()
		if err != nil {
			return nil, fmt.Errorf("load persisted mappings: %w", err)
		}
		for id, addr := range persisted {
			m.entries[id] = entry{addr: addr, expirable: false, lastSeen: m.now()}
		}
	}

	go m.sweep()

	return m, nil
}

// Resolve returns the network address mapped to id. Resolving a learnt entry
// refreshes its expiry; a learnt entry past its expiry is treated as absent.
func (m *AddressMap) Resolve(id raft.ServerID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.expirable {
		now := m.now()
		if now.Sub(e.lastSeen) >= m.expiry {
			delete(m.entries, id)
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		e.lastSeen = now
		m.entries[id] = e
	}
	return e.addr, nil
}

// Update installs or replaces the mapping for id. Administered updates
// (expirable=false) always win and are persisted when a Store is configured.
// Learnt updates (expirable=true) never downgrade or overwrite an
// administered entry; against another learnt entry, last write wins.
func (m *AddressMap) Update(id raft.ServerID, addr string, expirable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.entries[id]; ok && !cur.expirable && expirable {
		return
	}
	m.entries[id] = entry{addr: addr, expirable: expirable, lastSeen: m.now()}

	if !expirable && m.store != nil {
		if err := m.store.Put(id, addr); err != nil {
			m.logger.WithField("id", id.String()).WithError(err).Error("failed to persist address mapping")
		}
	}
}

// Remove drops any mapping for id, administered or learnt. Removing an
// unknown id is a no-op.
func (m *AddressMap) Remove(id raft.ServerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	delete(m.entries, id)

	if ok && !e.expirable && m.store != nil {
		if err := m.store.Delete(id); err != nil {
			m.logger.WithField("id", id.String()).WithError(err).Error("failed to delete persisted address mapping")
		}
	}
}

// Snapshot returns a copy of the current live mappings.
func (m *AddressMap) Snapshot() []Mapping {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]Mapping, 0, len(m.entries))
	for id, e := range m.entries {
		if e.expirable && now.Sub(e.lastSeen) >= m.expiry {
			continue
		}
		out = append(out, Mapping{ID: id, Addr: e.addr, Expirable: e.expirable})
	}
	return out
}

// Close stops the background sweep and releases the Store, if any.
func (m *AddressMap) Close() error {
	close(m.sweepStop)
	<-m.sweepDone
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// sweep periodically evicts expired learnt entries so ids that went quiet
// do not pin memory until someone resolves them.
func (m *AddressMap) sweep() {
	defer close(m.sweepDone)

	interval := m.expiry / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.sweepStop:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for id, e := range m.entries {
				if e.expirable && now.Sub(e.lastSeen) >= m.expiry {
					delete(m.entries, id)
				}
			}
			m.mu.Unlock()
		}
	}
}
