package cluster

import (
	"sync/atomic"
)

// Callback receives mutations for groups matched by a cluster. arg is the
// value given to NotifyAdd.
type Callback func(c *Cluster, m Mutation, arg interface{}) error

// Subscription is a registered callback on a cluster. It is safe to share
// between goroutines.
type Subscription struct {
	id       uint64
	cluster  *Cluster
	callback Callback
	arg      interface{}
	canceled atomic.Bool
}

// ID returns the subscription id, unique within a registry.
func (s *Subscription) ID() uint64 { return s.id }

// Cluster returns the cluster the subscription belongs to.
func (s *Subscription) Cluster() *Cluster { return s.cluster }

// Arg returns the opaque argument passed at registration.
func (s *Subscription) Arg() interface{} { return s.arg }

// Active reports whether the subscription still receives notifications.
func (s *Subscription) Active() bool {
	return !s.canceled.Load() && s.cluster.State() != StateTornDown
}

// Cancel removes the subscription from its cluster. Notifications already
// queued for it are skipped. Cancel is idempotent.
func (s *Subscription) Cancel() {
	if s.canceled.Swap(true) {
		return
	}
	s.cluster.removeSubscription(s)
}

// Deliver invokes the callback. Panics are not recovered here.
func (s *Subscription) Deliver(m Mutation) error {
	if s.callback == nil {
		return ErrCallbackUnavailable
	}
	return s.callback(s.cluster, m, s.arg)
}
