// Package cluster implements GlobalDB clusters: named, access-controlled
// replication domains that span the storage groups matched by a mask.
// A Registry owns the clusters of one instance and guarantees that masks
// never overlap, so every group name resolves to at most one cluster.
// Each cluster carries a membership table of node roles and a list of
// notification subscriptions, both guarded by a single per-cluster lock.
package cluster
