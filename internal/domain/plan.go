package domain

import (
	"fmt"
	"strings"
)

// ReplicationPlan is the data redundancy factor for the storage layer
type ReplicationPlan int

// QuorumSet is the ordered list of coordination-service members.
// The coordinator is always first.
type QuorumSet []string

// String returns the comma-joined member list, the form ZooKeeper clients expect
func (q QuorumSet) String() string {
	return strings.Join(q, ",")
}

// Contains reports whether id is a quorum member
func (q QuorumSet) Contains(id string) bool {
	for _, m := range q {
		if m == id {
			return true
		}
	}
	return false
}

// UnderProvisionedQuorum is an advisory raised when fewer nodes than the
// configured target are available for the quorum. It is not an error.
type UnderProvisionedQuorum struct {
	Target int `json:"target" yaml:"target"`
	Actual int `json:"actual" yaml:"actual"`
}

func (w UnderProvisionedQuorum) String() string {
	return fmt.Sprintf("quorum under-provisioned: %d of %d target members available", w.Actual, w.Target)
}

// PlanResult bundles the outputs of a planning pass
type PlanResult struct {
	Replication ReplicationPlan         `json:"replication" yaml:"replication"`
	Quorum      QuorumSet               `json:"quorum" yaml:"quorum"`
	QuorumSize  int                     `json:"quorum_target" yaml:"quorum_target"`
	Warning     *UnderProvisionedQuorum `json:"warning,omitempty" yaml:"warning,omitempty"`
}
