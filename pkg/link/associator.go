package link

import (
	"fmt"

	"globaldb/pkg/cluster"
	"globaldb/pkg/metrics"

	"go.uber.org/zap"
)

// AssociationError reports a network association the link manager refused.
type AssociationError struct {
	Cluster   string
	NetworkID uint64
	Reason    string
}

func (e *AssociationError) Error() string {
	return fmt.Sprintf("cannot associate cluster %q with network %d: %s", e.Cluster, e.NetworkID, e.Reason)
}

// Associator hands cluster link handles to a Manager. It performs no I/O
// of its own.
type Associator struct {
	manager Manager
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAssociator creates an Associator over manager.
func NewAssociator(manager Manager, m *metrics.Metrics, logger *zap.Logger) *Associator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Associator{manager: manager, metrics: m, logger: logger}
}

// AssociateNetwork binds c's link cluster to networkID. It reports whether
// the link manager accepted the association.
func (a *Associator) AssociateNetwork(c *cluster.Cluster, networkID uint64) bool {
	return a.Associate(c, networkID) == nil
}

// Associate is AssociateNetwork returning an *AssociationError on rejection.
func (a *Associator) Associate(c *cluster.Cluster, networkID uint64) error {
	if c == nil {
		return &AssociationError{NetworkID: networkID, Reason: "no cluster"}
	}
	if c.State() == cluster.StateTornDown {
		a.metrics.LinkAssociation(false)
		return &AssociationError{Cluster: c.Name(), NetworkID: networkID, Reason: "cluster torn down"}
	}

	if !a.manager.AssociateNetwork(networkID, c.LinkCluster()) {
		a.metrics.LinkAssociation(false)
		a.logger.Warn("Link manager rejected network association",
			zap.String("cluster", c.Name()),
			zap.Uint64("network_id", networkID))
		return &AssociationError{Cluster: c.Name(), NetworkID: networkID, Reason: "unknown network"}
	}

	c.BindNetwork(networkID)
	a.metrics.LinkAssociation(true)
	a.logger.Info("Cluster associated with network",
		zap.String("cluster", c.Name()),
		zap.Uint64("network_id", networkID),
		zap.Stringer("type", c.Type()))
	return nil
}
