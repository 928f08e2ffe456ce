// Package link binds clusters to network-level broadcast domains.
package link

import (
	"sort"
	"sync"

	"globaldb/pkg/cluster"
	"globaldb/pkg/identifier"

	"go.uber.org/zap"
)

// Manager is the network link manager. AssociateNetwork returns false when
// the network id is rejected.
type Manager interface {
	AssociateNetwork(networkID uint64, lc cluster.LinkCluster) bool
}

// Table is an in-memory Manager over a fixed set of known networks. A link
// cluster is associated with at most one network at a time.
type Table struct {
	mu       sync.RWMutex
	networks map[uint64]map[identifier.Identifier]cluster.LinkCluster
	bound    map[identifier.Identifier]uint64
	logger   *zap.Logger
}

// NewTable creates a table that knows the given networks.
func NewTable(logger *zap.Logger, networks ...uint64) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Table{
		networks: make(map[uint64]map[identifier.Identifier]cluster.LinkCluster),
		bound:    make(map[identifier.Identifier]uint64),
		logger:   logger,
	}
	for _, id := range networks {
		t.AddNetwork(id)
	}
	return t
}

// AddNetwork makes id known. Adding a known network is a no-op.
func (t *Table) AddNetwork(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.networks[id]; !ok {
		t.networks[id] = make(map[identifier.Identifier]cluster.LinkCluster)
		t.logger.Debug("Network added", zap.Uint64("network_id", id))
	}
}

// RemoveNetwork forgets id and every association with it.
func (t *Table) RemoveNetwork(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.networks[id]
	if !ok {
		return false
	}
	for cid := range members {
		delete(t.bound, cid)
	}
	delete(t.networks, id)
	return true
}

// AssociateNetwork implements Manager.
func (t *Table) AssociateNetwork(networkID uint64, lc cluster.LinkCluster) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.networks[networkID]
	if !ok {
		t.logger.Debug("Rejected association with unknown network",
			zap.Uint64("network_id", networkID),
			zap.Stringer("cluster", lc.ID))
		return false
	}

	if prev, ok := t.bound[lc.ID]; ok && prev != networkID {
		delete(t.networks[prev], lc.ID)
	}
	members[lc.ID] = lc
	t.bound[lc.ID] = networkID
	return true
}

// Networks returns the known network ids in ascending order.
func (t *Table) Networks() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]uint64, 0, len(t.networks))
	for id := range t.networks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clusters returns the link clusters associated with networkID.
func (t *Table) Clusters(networkID uint64) []cluster.LinkCluster {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := t.networks[networkID]
	out := make([]cluster.LinkCluster, 0, len(members))
	for _, lc := range members {
		out = append(out, lc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

// NetworkOf returns the network a link cluster is associated with.
func (t *Table) NetworkOf(id identifier.Identifier) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.bound[id]
	return n, ok
}
