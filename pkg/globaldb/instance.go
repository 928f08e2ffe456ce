// Package globaldb owns the lifecycle of one GlobalDB instance: its cluster
// registry, notification dispatcher, link associator and metrics.
package globaldb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"globaldb/pkg/cluster"
	"globaldb/pkg/dispatch"
	"globaldb/pkg/link"
	"globaldb/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var ErrShutdown = errors.New("instance is shut down")

type Options struct {
	// NodeAddress identifies the local node. It is the owner granted root
	// on clusters created with owner root access.
	NodeAddress string
	Dispatcher  dispatch.Config
	// GroupCacheTTL of zero disables the group lookup cache.
	GroupCacheTTL time.Duration
	// Networks seeds the built-in link table. Ignored when LinkManager is set.
	Networks    []uint64
	LinkManager link.Manager
	// Registerer receives the instance collectors. A private registry is
	// used when nil.
	Registerer prometheus.Registerer
}

type Instance struct {
	registry   *cluster.Registry
	dispatcher *dispatch.Dispatcher
	associator *link.Associator
	links      link.Manager
	table      *link.Table
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	logger     *zap.Logger

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// Init builds an instance. Clusters created before Start stay in
// StateCreated and receive no notifications.
func Init(opts Options, logger *zap.Logger) (*Instance, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Dispatcher.Workers < 0 || opts.Dispatcher.QueueSize < 0 {
		return nil, fmt.Errorf("invalid dispatcher sizing: workers=%d queue_size=%d",
			opts.Dispatcher.Workers, opts.Dispatcher.QueueSize)
	}
	if opts.GroupCacheTTL < 0 {
		return nil, fmt.Errorf("group cache ttl %s is negative", opts.GroupCacheTTL)
	}

	reg := opts.Registerer
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	} else {
		gatherer = prometheus.DefaultGatherer
	}

	m := metrics.New(reg)

	inst := &Instance{
		metrics:  m,
		gatherer: gatherer,
		logger:   logger,
	}

	inst.registry = cluster.NewRegistry(cluster.RegistryOptions{
		Owner:         opts.NodeAddress,
		GroupCacheTTL: opts.GroupCacheTTL,
		Metrics:       m,
		Logger:        logger.Named("registry"),
	})
	inst.dispatcher = dispatch.New(inst.registry, opts.Dispatcher, m, logger.Named("dispatch"))

	inst.links = opts.LinkManager
	if inst.links == nil {
		inst.table = link.NewTable(logger.Named("link"), opts.Networks...)
		inst.links = inst.table
	}
	inst.associator = link.NewAssociator(inst.links, m, logger.Named("link"))

	cfg := inst.dispatcher.Config()
	logger.Info("GlobalDB instance initialized",
		zap.String("node_address", opts.NodeAddress),
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Stringer("overflow", cfg.Overflow),
		zap.Duration("group_cache_ttl", opts.GroupCacheTTL))
	return inst, nil
}

// Start activates every registered cluster and starts notification delivery.
func (i *Instance) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.shutdown {
		return ErrShutdown
	}
	if i.started {
		return nil
	}
	i.started = true

	n := i.registry.Activate()
	i.dispatcher.Start()
	i.logger.Info("GlobalDB instance started", zap.Int("activated_clusters", n))
	return nil
}

// Shutdown stops accepting mutations, drains queued notifications until the
// drain timeout or ctx expires, then tears down every cluster. The drain
// error, if any, is returned after teardown completes.
func (i *Instance) Shutdown(ctx context.Context) error {
	i.mu.Lock()
	if i.shutdown {
		i.mu.Unlock()
		return nil
	}
	i.shutdown = true
	i.mu.Unlock()

	err := i.dispatcher.Stop(ctx)
	if err != nil {
		i.logger.Warn("Notifications discarded during shutdown", zap.Error(err))
	}
	i.registry.Teardown()
	i.logger.Info("GlobalDB instance shut down")
	return err
}

// CreateCluster validates and registers a cluster.
func (i *Instance) CreateCluster(cfg cluster.Config) (*cluster.Cluster, error) {
	return i.registry.Create(cfg)
}

// ClusterByGroup returns the cluster owning group, or nil.
func (i *Instance) ClusterByGroup(group string) *cluster.Cluster {
	return i.registry.ClusterByGroup(group)
}

func (i *Instance) ClusterByMnemonic(mnemonic string) *cluster.Cluster {
	return i.registry.ClusterByMnemonic(mnemonic)
}

func (i *Instance) Clusters() []*cluster.Cluster {
	return i.registry.Clusters()
}

// AssociateNetwork binds c to a network through the link manager.
func (i *Instance) AssociateNetwork(c *cluster.Cluster, networkID uint64) bool {
	return i.associator.AssociateNetwork(c, networkID)
}

// Associate is AssociateNetwork returning the rejection as an error.
func (i *Instance) Associate(c *cluster.Cluster, networkID uint64) error {
	return i.associator.Associate(c, networkID)
}

// OnMutation forwards a committed storage write to the dispatcher.
func (i *Instance) OnMutation(group, key string, value []byte, op cluster.Op) int {
	return i.dispatcher.OnMutation(group, key, value, op)
}

// Snapshot implements metrics.Source.
func (i *Instance) Snapshot() metrics.Snapshot {
	s := metrics.Snapshot{
		Running:              i.dispatcher.Running(),
		PendingNotifications: i.dispatcher.Pending(),
		QueueCapacity:        i.dispatcher.Capacity(),
	}
	for _, c := range i.registry.Clusters() {
		s.Clusters++
		if c.State() == cluster.StateActive {
			s.ActiveClusters++
		}
		s.Members += c.MemberCount()
		s.Subscriptions += len(c.Subscriptions())
	}
	return s
}

func (i *Instance) Registry() *cluster.Registry { return i.registry }
func (i *Instance) Dispatcher() *dispatch.Dispatcher { return i.dispatcher }
func (i *Instance) Metrics() *metrics.Metrics { return i.metrics }
func (i *Instance) Gatherer() prometheus.Gatherer { return i.gatherer }
func (i *Instance) Logger() *zap.Logger { return i.logger }

// Links returns the built-in link table, or nil when an external link
// manager was supplied.
func (i *Instance) Links() *link.Table { return i.table }

// Started reports whether Start has run and Shutdown has not.
func (i *Instance) Started() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.started && !i.shutdown
}
