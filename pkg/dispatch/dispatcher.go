// Package dispatch fans store mutations out to cluster subscribers on a
// bounded pool of background workers. Writers only copy the mutation and
// enqueue it; subscriber code never runs on the writer's goroutine.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"globaldb/pkg/cluster"
	"globaldb/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers      = 4
	DefaultQueueSize    = 1024
	DefaultDrainTimeout = 5 * time.Second
)

// ErrDrainTimeout is returned by Stop when queued notifications could not
// be delivered in time. The remainder is discarded.
var ErrDrainTimeout = errors.New("notification drain timed out")

// OverflowPolicy decides what happens when a worker queue is full.
type OverflowPolicy int

const (
	// OverflowDropOldest evicts the oldest queued notification. Writers never wait.
	OverflowDropOldest OverflowPolicy = iota
	// OverflowBlock makes the writer wait for space until the dispatcher stops.
	OverflowBlock
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDropOldest:
		return "drop-oldest"
	case OverflowBlock:
		return "block"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy accepts "drop-oldest" or "block". Empty means drop-oldest.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop-oldest", "drop_oldest":
		return OverflowDropOldest, nil
	case "block":
		return OverflowBlock, nil
	}
	return 0, fmt.Errorf("unknown overflow policy %q (expected drop-oldest or block)", s)
}

// Resolver finds the cluster owning a storage group.
type Resolver interface {
	ClusterByGroup(group string) *cluster.Cluster
}

// Config configures a Dispatcher. Zero values select the defaults.
type Config struct {
	Workers      int
	QueueSize    int
	Overflow     OverflowPolicy
	DrainTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	return c
}

// Dispatcher delivers mutations to the subscriptions of the matching
// cluster. Each subscription is pinned to one worker, so its notifications
// are delivered in the order they were queued.
type Dispatcher struct {
	resolver Resolver
	cfg      Config
	workers  []*worker
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu       sync.RWMutex
	started  bool
	closed   bool
	stopping chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	discard  atomic.Bool
	group    errgroup.Group
}

// New creates a Dispatcher. Call Start to begin delivering.
func New(resolver Resolver, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	d := &Dispatcher{
		resolver: resolver,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
	d.workers = make([]*worker, cfg.Workers)
	for i := range d.workers {
		d.workers[i] = &worker{
			id:    i,
			queue: make(chan unit, cfg.QueueSize),
			d:     d,
		}
	}
	return d
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Start launches the workers. It is a no-op once started or stopped.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true
	for _, w := range d.workers {
		d.group.Go(w.work)
	}
	go func() {
		_ = d.group.Wait()
		close(d.done)
	}()

	d.logger.Info("Dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize),
		zap.Stringer("overflow", d.cfg.Overflow))
}

// OnMutation is called by the storage engine after a write. It copies the
// mutation once per subscription of the matching cluster and returns the
// number of notifications queued. Groups without a cluster are ignored.
func (d *Dispatcher) OnMutation(group, key string, value []byte, op cluster.Op) int {
	if op != cluster.OpPut && op != cluster.OpDelete {
		d.metrics.ObserveMutation(metrics.MutationRejected)
		d.logger.Debug("Ignoring mutation with unknown operation",
			zap.String("group", group),
			zap.Stringer("op", op))
		return 0
	}

	c := d.resolver.ClusterByGroup(group)
	if c == nil {
		d.metrics.ObserveMutation(metrics.MutationUnmatched)
		return 0
	}
	if c.State() != cluster.StateActive {
		d.metrics.ObserveMutation(metrics.MutationInactive)
		return 0
	}
	d.metrics.ObserveMutation(metrics.MutationMatched)

	subs := c.Subscriptions()
	if len(subs) == 0 {
		return 0
	}

	m := cluster.NewMutation(group, key, value, op)
	now := time.Now()

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		for range subs {
			d.metrics.NotificationDropped(metrics.DropShutdown)
		}
		return 0
	}

	queued := 0
	for i, sub := range subs {
		um := m
		if i > 0 {
			um = m.Clone()
		}
		if d.enqueue(unit{sub: sub, mutation: um, queued: now}) {
			queued++
		}
	}
	return queued
}

// enqueue must be called with d.mu held for reading.
func (d *Dispatcher) enqueue(u unit) bool {
	w := d.workers[u.sub.ID()%uint64(len(d.workers))]

	if d.cfg.Overflow == OverflowBlock {
		select {
		case w.queue <- u:
			d.metrics.NotificationQueued()
			return true
		default:
		}
		d.metrics.WriterBlocked()
		select {
		case w.queue <- u:
			d.metrics.NotificationQueued()
			return true
		case <-d.stopping:
			d.metrics.NotificationDropped(metrics.DropShutdown)
			return false
		}
	}

	for {
		select {
		case w.queue <- u:
			d.metrics.NotificationQueued()
			return true
		default:
		}
		select {
		case old := <-w.queue:
			d.metrics.NotificationDropped(metrics.DropOverflow)
			d.logger.Debug("Queue full, dropped oldest notification",
				zap.Int("worker", w.id),
				zap.Uint64("subscription", old.sub.ID()),
				zap.String("group", old.mutation.Group),
				zap.String("key", old.mutation.Key))
		default:
		}
	}
}

// Pending returns the number of queued notifications.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, w := range d.workers {
		n += len(w.queue)
	}
	return n
}

// Capacity returns the total queue capacity across workers.
func (d *Dispatcher) Capacity() int {
	return d.cfg.Workers * d.cfg.QueueSize
}

// Running reports whether the dispatcher has started and not been stopped.
func (d *Dispatcher) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.started && !d.closed
}

// Stop refuses new mutations and drains queued notifications until the
// queues are empty, ctx is done, or the drain timeout passes. Whatever is
// left is discarded and ErrDrainTimeout is returned. Writers blocked by
// OverflowBlock are released.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stopping) })

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.queue)
	}
	started := d.started
	d.mu.Unlock()

	if !started {
		discarded := 0
		for _, w := range d.workers {
			for range w.queue {
				discarded++
				d.metrics.NotificationDropped(metrics.DropShutdown)
			}
		}
		d.logger.Info("Dispatcher stopped before start", zap.Int("discarded", discarded))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.DrainTimeout)
	defer cancel()

	select {
	case <-d.done:
		d.logger.Info("Dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.discard.Store(true)
		pending := d.Pending()
		d.logger.Warn("Dispatcher drain timed out, discarding pending notifications",
			zap.Int("pending", pending),
			zap.Duration("drain_timeout", d.cfg.DrainTimeout))
		return fmt.Errorf("%w: %d notifications discarded", ErrDrainTimeout, pending)
	}
}
