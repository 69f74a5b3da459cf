package domain

import (
	"slices"
	"time"
)

// MembershipSnapshot is a point-in-time, classified read of the cluster inventory.
// It holds exactly one coordinator; workers are kept in ascending address order.
type MembershipSnapshot struct {
	TakenAt     time.Time
	coordinator NodeRecord
	workers     []NodeRecord
}

// NewMembershipSnapshot builds a snapshot from an already classified partition.
// Roles are stamped onto the records and workers are sorted by address.
func NewMembershipSnapshot(coordinator NodeRecord, workers []NodeRecord) *MembershipSnapshot {
	sorted := make([]NodeRecord, 0, len(workers))
	for _, w := range workers {
		sorted = append(sorted, w.WithRole(RoleWorker))
	}
	SortByAddress(sorted)

	return &MembershipSnapshot{
		TakenAt:     time.Now(),
		coordinator: coordinator.WithRole(RoleCoordinator),
		workers:     sorted,
	}
}

// Coordinator returns the single coordinator node
func (s *MembershipSnapshot) Coordinator() NodeRecord {
	return s.coordinator
}

// Workers returns the worker nodes in ascending address order
func (s *MembershipSnapshot) Workers() []NodeRecord {
	return slices.Clone(s.workers)
}

// All returns every node, coordinator included, in ascending address order
func (s *MembershipSnapshot) All() []NodeRecord {
	all := make([]NodeRecord, 0, s.Size())
	all = append(all, s.coordinator)
	all = append(all, s.workers...)
	SortByAddress(all)
	return all
}

// Size returns the total number of nodes in the snapshot
func (s *MembershipSnapshot) Size() int {
	return 1 + len(s.workers)
}

// Lookup finds a node by identifier
func (s *MembershipSnapshot) Lookup(id string) (NodeRecord, bool) {
	if s.coordinator.ID == id {
		return s.coordinator, true
	}
	for _, w := range s.workers {
		if w.ID == id {
			return w, true
		}
	}
	return NodeRecord{}, false
}

// IsCoordinator reports whether id names the coordinator of this snapshot
func (s *MembershipSnapshot) IsCoordinator(id string) bool {
	return s.coordinator.ID == id
}

// WorkerIDs returns worker identifiers in ascending address order
func (s *MembershipSnapshot) WorkerIDs() []string {
	ids := make([]string, len(s.workers))
	for i, w := range s.workers {
		ids[i] = w.ID
	}
	return ids
}
