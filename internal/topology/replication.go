package topology

import "clustercfg/internal/domain"

// PlanReplication returns the replication factor for the storage layer:
// the total number of nodes in the snapshot. No clamp is applied.
func PlanReplication(snapshot *domain.MembershipSnapshot) domain.ReplicationPlan {
	return domain.ReplicationPlan(snapshot.Size())
}
