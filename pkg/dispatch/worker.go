package dispatch

import (
	"fmt"
	"time"

	"globaldb/pkg/cluster"
	"globaldb/pkg/metrics"

	"go.uber.org/zap"
)

type unit struct {
	sub      *cluster.Subscription
	mutation cluster.Mutation
	queued   time.Time
}

type worker struct {
	id    int
	queue chan unit
	d     *Dispatcher
}

func (w *worker) work() error {
	for u := range w.queue {
		if w.d.discard.Load() {
			w.d.metrics.NotificationDropped(metrics.DropShutdown)
			continue
		}
		w.d.deliver(u)
	}
	return nil
}

func (d *Dispatcher) deliver(u unit) {
	if !u.sub.Active() {
		d.metrics.NotificationDropped(metrics.DropCanceled)
		return
	}

	c := u.sub.Cluster()
	if err := invoke(u); err != nil {
		serr := &cluster.SubscriberError{
			Cluster:      c.Name(),
			Subscription: u.sub.ID(),
			Group:        u.mutation.Group,
			Key:          u.mutation.Key,
			Err:          err,
		}
		d.metrics.SubscriberFailed(c.Name())
		d.logger.Warn("Subscriber failed",
			zap.String("cluster", c.Name()),
			zap.Uint64("subscription", u.sub.ID()),
			zap.String("group", u.mutation.Group),
			zap.String("key", u.mutation.Key),
			zap.Stringer("op", u.mutation.Op),
			zap.Error(serr))
		return
	}
	d.metrics.NotificationDelivered(c.Name(), u.queued)
}

// invoke runs the callback, turning a panic into an error.
func invoke(u unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return u.sub.Deliver(u.mutation)
}
