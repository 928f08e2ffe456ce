package cluster

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"globaldb/pkg/identifier"
	"globaldb/pkg/metrics"

	"go.uber.org/zap"
)

// Config is the definition of a cluster, validated by Registry.Create.
type Config struct {
	Mnemonic        string
	ID              identifier.Identifier
	GroupMask       string
	TTL             time.Duration
	OwnerRootAccess bool
	DefaultRole     Role
	Type            Type
}

// Member is a node address with its assigned role. Members are immutable.
type Member struct {
	Address string
	Role    Role
	Added   time.Time
}

// LinkCluster is the handle passed to the network link manager.
type LinkCluster struct {
	ID       identifier.Identifier
	Mnemonic string
	Type     Type
}

// Cluster is an access-controlled replication domain over the storage
// groups matched by its mask. Members and subscriptions share one lock.
type Cluster struct {
	cfg   Config
	owner string
	state atomic.Int32

	mu            sync.RWMutex
	members       map[string]*Member
	subscriptions []*Subscription
	networkID     uint64
	hasNetwork    bool

	seq     *atomic.Uint64
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func newCluster(cfg Config, owner string, seq *atomic.Uint64, m *metrics.Metrics, logger *zap.Logger) *Cluster {
	c := &Cluster{
		cfg:     cfg,
		owner:   owner,
		members: make(map[string]*Member),
		seq:     seq,
		metrics: m,
	}
	c.logger = logger.With(zap.String("cluster", c.Name()), zap.String("mask", cfg.GroupMask))
	c.state.Store(int32(StateCreated))
	return c
}

// Name returns the mnemonic, or the hex id when the mnemonic is empty.
func (c *Cluster) Name() string {
	if c.cfg.Mnemonic != "" {
		return c.cfg.Mnemonic
	}
	return c.cfg.ID.Hex()
}

func (c *Cluster) Mnemonic() string { return c.cfg.Mnemonic }
func (c *Cluster) ID() identifier.Identifier { return c.cfg.ID }
func (c *Cluster) GroupMask() string { return c.cfg.GroupMask }
func (c *Cluster) TTL() time.Duration { return c.cfg.TTL }
func (c *Cluster) OwnerRootAccess() bool { return c.cfg.OwnerRootAccess }
func (c *Cluster) DefaultRole() Role { return c.cfg.DefaultRole }
func (c *Cluster) Type() Type { return c.cfg.Type }
func (c *Cluster) Config() Config { return c.cfg }
func (c *Cluster) State() State { return State(c.state.Load()) }
func (c *Cluster) Matches(group string) bool { return MatchMask(c.cfg.GroupMask, group) }

// LinkCluster returns the handle passed to the network link manager.
func (c *Cluster) LinkCluster() LinkCluster {
	return LinkCluster{ID: c.cfg.ID, Mnemonic: c.cfg.Mnemonic, Type: c.cfg.Type}
}

// MemberAdd adds addr with the given role. If addr is already a member the
// existing entry is returned unchanged and role is ignored.
func (c *Cluster) MemberAdd(addr string, role Role) (*Member, error) {
	if addr == "" {
		return nil, fmt.Errorf("member address is empty")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w %s for member %s", ErrInvalidRole, role, addr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateTornDown {
		return nil, ErrTornDown
	}

	if existing, ok := c.members[addr]; ok {
		if existing.Role != role {
			c.logger.Debug("Member already present, keeping existing role",
				zap.String("address", addr),
				zap.Stringer("role", existing.Role),
				zap.Stringer("requested_role", role))
		}
		return existing, nil
	}

	m := &Member{Address: addr, Role: role, Added: time.Now()}
	c.members[addr] = m
	c.metrics.SetMembers(c.Name(), len(c.members))

	c.logger.Info("Member added",
		zap.String("address", addr),
		zap.Stringer("role", role))

	return m, nil
}

// MemberDelete removes addr. It reports whether a member was removed.
func (c *Cluster) MemberDelete(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[addr]; !ok {
		return false
	}
	delete(c.members, addr)
	c.metrics.SetMembers(c.Name(), len(c.members))

	c.logger.Info("Member removed", zap.String("address", addr))
	return true
}

// Member looks up addr.
func (c *Cluster) Member(addr string) (*Member, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.members[addr]
	return m, ok
}

// Members returns all members ordered by address.
func (c *Cluster) Members() []*Member {
	c.mu.RLock()
	members := make([]*Member, 0, len(c.members))
	for _, m := range c.members {
		members = append(members, m)
	}
	c.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		return members[i].Address < members[j].Address
	})
	return members
}

// MemberCount returns the number of members.
func (c *Cluster) MemberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// RoleOf resolves the effective role of addr. Explicit members use their
// stored role, with RoleDefault mapped to the cluster default. Others get
// the default role, except the owner, who gets RoleRoot when the cluster
// grants owner root access.
func (c *Cluster) RoleOf(addr string) Role {
	c.mu.RLock()
	m, ok := c.members[addr]
	c.mu.RUnlock()

	if ok {
		if m.Role == RoleDefault {
			return c.cfg.DefaultRole
		}
		return m.Role
	}
	if c.cfg.OwnerRootAccess && c.owner != "" && addr == c.owner {
		return RoleRoot
	}
	return c.cfg.DefaultRole
}

// NotifyAdd registers cb to be called for every mutation on a group this
// cluster matches. The returned handle can cancel the registration.
func (c *Cluster) NotifyAdd(cb Callback, arg interface{}) (*Subscription, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateTornDown {
		return nil, ErrTornDown
	}

	sub := &Subscription{
		id:       c.seq.Add(1),
		cluster:  c,
		callback: cb,
		arg:      arg,
	}
	c.subscriptions = append(c.subscriptions, sub)
	c.metrics.SetSubscriptions(c.Name(), len(c.subscriptions))

	c.logger.Debug("Subscription added", zap.Uint64("subscription", sub.id))
	return sub, nil
}

// Subscriptions returns a snapshot of the registered subscriptions in
// registration order.
func (c *Cluster) Subscriptions() []*Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subs := make([]*Subscription, len(c.subscriptions))
	copy(subs, c.subscriptions)
	return subs
}

func (c *Cluster) removeSubscription(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.subscriptions {
		if s == sub {
			c.subscriptions = append(c.subscriptions[:i], c.subscriptions[i+1:]...)
			c.metrics.SetSubscriptions(c.Name(), len(c.subscriptions))
			c.logger.Debug("Subscription canceled", zap.Uint64("subscription", sub.id))
			return
		}
	}
}

// BindNetwork records the network id the link cluster is associated with.
func (c *Cluster) BindNetwork(networkID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.networkID = networkID
	c.hasNetwork = true
}

// NetworkID returns the associated network id, if any.
func (c *Cluster) NetworkID() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.networkID, c.hasNetwork
}

func (c *Cluster) activate() bool {
	return c.state.CompareAndSwap(int32(StateCreated), int32(StateActive))
}

func (c *Cluster) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Store(int32(StateTornDown))
	for _, s := range c.subscriptions {
		s.canceled.Store(true)
	}
	c.subscriptions = nil
	c.members = make(map[string]*Member)
	c.hasNetwork = false
	c.metrics.ForgetCluster(c.Name())
}
