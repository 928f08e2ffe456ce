package globaldb

import (
	"fmt"

	"globaldb/pkg/cluster"
	"globaldb/pkg/config"
	"globaldb/pkg/dispatch"
	"globaldb/pkg/identifier"

	"go.uber.org/zap"
)

// OptionsFromConfig maps the file configuration onto instance options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	overflow, err := dispatch.ParseOverflowPolicy(cfg.Dispatcher.Overflow)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		NodeAddress: cfg.NodeAddress,
		Dispatcher: dispatch.Config{
			Workers:      cfg.Dispatcher.Workers,
			QueueSize:    cfg.Dispatcher.QueueSize,
			Overflow:     overflow,
			DrainTimeout: cfg.Dispatcher.DrainTimeout.Duration,
		},
		GroupCacheTTL: config.DefaultGroupCacheTTL,
		Networks:      cfg.Networks,
	}
	if cfg.Registry.GroupCacheTTL != nil {
		opts.GroupCacheTTL = cfg.Registry.GroupCacheTTL.Duration
	}
	return opts, nil
}

// ClusterConfig converts a persisted cluster definition.
func ClusterConfig(cc config.ClusterConfig) (cluster.Config, error) {
	invalid := func(err error) error {
		return &cluster.ConfigurationError{Mnemonic: cc.Mnemonic, Mask: cc.GroupMask, Reason: err.Error()}
	}

	role, err := cluster.ParseRole(cc.DefaultRole)
	if err != nil {
		return cluster.Config{}, invalid(err)
	}
	typ, err := cluster.ParseType(cc.Type)
	if err != nil {
		return cluster.Config{}, invalid(err)
	}

	var id identifier.Identifier
	switch {
	case cc.ID != "":
		id, err = identifier.ParseHex(cc.ID)
		if err != nil {
			return cluster.Config{}, err
		}
	case cc.NetworkID != nil && cc.ServiceID != nil:
		id = identifier.Compose(*cc.NetworkID, *cc.ServiceID)
	default:
		id = identifier.Generate()
	}

	return cluster.Config{
		Mnemonic:        cc.Mnemonic,
		ID:              id,
		GroupMask:       cc.GroupMask,
		TTL:             cc.TTL.Duration,
		OwnerRootAccess: cc.OwnerRootAccess,
		DefaultRole:     role,
		Type:            typ,
	}, nil
}

// Apply creates the clusters, members and network associations described
// by cfg. It stops at the first failure; clusters created before it remain.
func (i *Instance) Apply(cfg *config.Config) error {
	if i.table != nil {
		for _, n := range cfg.Networks {
			i.table.AddNetwork(n)
		}
	}

	for idx, cc := range cfg.Clusters {
		ccfg, err := ClusterConfig(cc)
		if err != nil {
			return fmt.Errorf("clusters[%d] %q: %w", idx, cc.Mnemonic, err)
		}

		c, err := i.registry.Create(ccfg)
		if err != nil {
			return fmt.Errorf("clusters[%d]: %w", idx, err)
		}

		for _, mc := range cc.Members {
			role := cluster.RoleDefault
			if mc.Role != "" {
				if role, err = cluster.ParseRole(mc.Role); err != nil {
					return fmt.Errorf("cluster %q member %s: %w", c.Name(), mc.Address, err)
				}
			}
			if _, err := c.MemberAdd(mc.Address, role); err != nil {
				return fmt.Errorf("cluster %q member %s: %w", c.Name(), mc.Address, err)
			}
		}

		if cc.Network != nil {
			if err := i.associator.Associate(c, *cc.Network); err != nil {
				return err
			}
		}

		i.logger.Debug("Applied cluster configuration",
			zap.String("cluster", c.Name()),
			zap.Int("members", len(cc.Members)))
	}
	return nil
}
