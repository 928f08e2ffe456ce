package cluster

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"globaldb/pkg/identifier"
	"globaldb/pkg/metrics"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultGroupCacheTTL is how long a group lookup result stays cached.
const DefaultGroupCacheTTL = time.Minute

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Owner is the local node address, granted RoleRoot on clusters
	// created with OwnerRootAccess.
	Owner string
	// GroupCacheTTL bounds cached group lookups. Zero disables the cache.
	GroupCacheTTL time.Duration
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

// Registry holds the live clusters of one instance, indexed by id and mask.
// Masks of registered clusters never overlap, so a group resolves to at
// most one cluster.
type Registry struct {
	mu       sync.RWMutex
	clusters map[identifier.Identifier]*Cluster
	byMask   map[string]*Cluster
	order    []*Cluster
	active   bool
	torn     bool

	groups  *gocache.Cache
	owner   string
	seq     atomic.Uint64
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		clusters: make(map[identifier.Identifier]*Cluster),
		byMask:   make(map[string]*Cluster),
		owner:    opts.Owner,
		metrics:  opts.Metrics,
		logger:   logger,
	}
	if opts.GroupCacheTTL > 0 {
		r.groups = gocache.New(opts.GroupCacheTTL, 2*opts.GroupCacheTTL)
	}
	return r
}

// Create validates cfg and registers a new cluster. Invalid definitions
// return a *ConfigurationError naming the mask. The cluster starts in
// StateCreated, or StateActive once the registry has been activated.
func (r *Registry) Create(cfg Config) (*Cluster, error) {
	if !cfg.DefaultRole.Valid() {
		return nil, configError(cfg, "default role %s is not assignable", cfg.DefaultRole)
	}
	if cfg.DefaultRole == RoleDefault {
		return nil, configError(cfg, "default role cannot be %s", RoleDefault)
	}
	if !cfg.Type.Valid() {
		return nil, configError(cfg, "cluster type %s is not usable", cfg.Type)
	}
	if err := ValidateMask(cfg.GroupMask); err != nil {
		return nil, configError(cfg, "%v", err)
	}
	if cfg.TTL < 0 {
		return nil, configError(cfg, "ttl %s is negative", cfg.TTL)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.torn {
		return nil, ErrTornDown
	}
	if existing, ok := r.clusters[cfg.ID]; ok {
		return nil, configError(cfg, "identifier %s already used by cluster %q", cfg.ID, existing.Name())
	}
	for _, existing := range r.order {
		if MasksOverlap(existing.cfg.GroupMask, cfg.GroupMask) {
			return nil, configError(cfg, "mask collides with mask %q of cluster %q",
				existing.cfg.GroupMask, existing.Name())
		}
	}

	c := newCluster(cfg, r.owner, &r.seq, r.metrics, r.logger)
	r.clusters[cfg.ID] = c
	r.byMask[cfg.GroupMask] = c
	r.order = append(r.order, c)
	if r.active {
		c.activate()
	}
	r.flushGroups()
	r.metrics.SetClusters(len(r.order))

	r.logger.Info("Cluster created",
		zap.String("cluster", c.Name()),
		zap.Stringer("id", cfg.ID),
		zap.String("mask", cfg.GroupMask),
		zap.Stringer("type", cfg.Type),
		zap.Stringer("default_role", cfg.DefaultRole),
		zap.Stringer("state", c.State()))

	return c, nil
}

// Activate moves every created cluster to StateActive. Clusters created
// afterwards are activated immediately.
func (r *Registry) Activate() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.torn {
		return 0
	}
	r.active = true
	n := 0
	for _, c := range r.order {
		if c.activate() {
			n++
		}
	}
	return n
}

// ClusterByGroup returns the cluster whose mask matches group, or nil.
func (r *Registry) ClusterByGroup(group string) *Cluster {
	if r.groups != nil {
		if v, ok := r.groups.Get(group); ok {
			return v.(*Cluster)
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Cluster
	if c, ok := r.byMask[group]; ok {
		found = c
	} else {
		for _, c := range r.order {
			if c.Matches(group) {
				found = c
				break
			}
		}
	}

	// Stored under the read lock so a concurrent Create cannot have its
	// flush overtaken by a stale result.
	if r.groups != nil && !r.torn {
		r.groups.SetDefault(group, found)
	}
	return found
}

// ClusterByID returns the cluster registered under id, or nil.
func (r *Registry) ClusterByID(id identifier.Identifier) *Cluster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clusters[id]
}

// ClusterByMnemonic returns the first cluster with the given mnemonic, or nil.
func (r *Registry) ClusterByMnemonic(mnemonic string) *Cluster {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.order {
		if c.cfg.Mnemonic == mnemonic {
			return c
		}
	}
	return nil
}

// Clusters returns the registered clusters ordered by mnemonic.
func (r *Registry) Clusters() []*Cluster {
	r.mu.RLock()
	clusters := make([]*Cluster, len(r.order))
	copy(clusters, r.order)
	r.mu.RUnlock()

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Name() < clusters[j].Name()
	})
	return clusters
}

// Len returns the number of registered clusters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Teardown releases every cluster. No cluster is resolvable afterwards.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.torn {
		return
	}
	r.torn = true

	for _, c := range r.order {
		c.teardown()
	}
	r.logger.Info("Clusters torn down", zap.Int("count", len(r.order)))

	r.clusters = make(map[identifier.Identifier]*Cluster)
	r.byMask = make(map[string]*Cluster)
	r.order = nil
	r.flushGroups()
	r.metrics.SetClusters(0)
}

func (r *Registry) flushGroups() {
	if r.groups != nil {
		r.groups.Flush()
	}
}
