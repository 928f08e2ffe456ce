package admin

import (
	"time"

	"globaldb/pkg/cluster"
	"globaldb/pkg/config"
	"globaldb/pkg/metrics"
)

type ClusterInfo struct {
	Mnemonic        string       `json:"mnemonic"`
	ID              string       `json:"id"`
	GroupMask       string       `json:"group_mask"`
	TTL             string       `json:"ttl"`
	OwnerRootAccess bool         `json:"owner_root_access"`
	DefaultRole     string       `json:"default_role"`
	Type            string       `json:"type"`
	State           string       `json:"state"`
	Members         []MemberInfo `json:"members,omitempty"`
	Subscriptions   int          `json:"subscriptions"`
	Network         *uint64      `json:"network,omitempty"`
}

type MemberInfo struct {
	Address string    `json:"address"`
	Role    string    `json:"role"`
	Added   time.Time `json:"added"`
}

type CreateClusterRequest struct {
	Cluster config.ClusterConfig `json:"cluster"`
}

type CreateClusterResponse struct {
	Cluster ClusterInfo `json:"cluster"`
}

type ListClustersRequest struct{}

type ListClustersResponse struct {
	Clusters []ClusterInfo `json:"clusters"`
}

type ClusterByGroupRequest struct {
	Group string `json:"group"`
}

type ClusterByGroupResponse struct {
	Cluster *ClusterInfo `json:"cluster,omitempty"`
}

// Cluster fields accept a mnemonic or a 32 character hex identifier.

type MemberAddRequest struct {
	Cluster string `json:"cluster"`
	Address string `json:"address"`
	Role    string `json:"role"`
}

type MemberAddResponse struct {
	Member MemberInfo `json:"member"`
}

type MemberDeleteRequest struct {
	Cluster string `json:"cluster"`
	Address string `json:"address"`
}

type MemberDeleteResponse struct {
	Removed bool `json:"removed"`
}

type AssociateNetworkRequest struct {
	Cluster   string `json:"cluster"`
	NetworkID uint64 `json:"network_id"`
}

type AssociateNetworkResponse struct {
	Associated bool `json:"associated"`
}

type PutRequest struct {
	Group string `json:"group"`
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

type GetRequest struct {
	Group string `json:"group"`
	Key   string `json:"key"`
}

type GetResponse struct {
	Value []byte `json:"value"`
}

type DeleteRequest struct {
	Group string `json:"group"`
	Key   string `json:"key"`
}

// WriteResponse reports how many notifications a write queued.
type WriteResponse struct {
	Notified int `json:"notified"`
}

type StatusRequest struct{}

type StatusResponse struct {
	Snapshot metrics.Snapshot `json:"snapshot"`
	Health   float64          `json:"health"`
	Networks []uint64         `json:"networks,omitempty"`
}

type WatchRequest struct {
	Cluster string `json:"cluster"`
}

// Event is one mutation delivered to a watcher. Value is absent for deletes.
type Event struct {
	Cluster string    `json:"cluster"`
	Group   string    `json:"group"`
	Key     string    `json:"key"`
	Value   []byte    `json:"value,omitempty"`
	Op      string    `json:"op"`
	Time    time.Time `json:"time"`
}

func describe(c *cluster.Cluster) ClusterInfo {
	info := ClusterInfo{
		Mnemonic:        c.Mnemonic(),
		ID:              c.ID().Hex(),
		GroupMask:       c.GroupMask(),
		TTL:             c.TTL().String(),
		OwnerRootAccess: c.OwnerRootAccess(),
		DefaultRole:     c.DefaultRole().String(),
		Type:            c.Type().String(),
		State:           c.State().String(),
		Subscriptions:   len(c.Subscriptions()),
	}
	for _, m := range c.Members() {
		info.Members = append(info.Members, memberInfo(m))
	}
	if n, ok := c.NetworkID(); ok {
		info.Network = &n
	}
	return info
}

func memberInfo(m *cluster.Member) MemberInfo {
	return MemberInfo{Address: m.Address, Role: m.Role.String(), Added: m.Added}
}
