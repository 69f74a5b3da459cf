package domain

import (
	"fmt"
	"slices"
)

// Role is the function a node plays in the cluster
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleWorker      Role = "worker"
)

// NodeRecord represents a single member of the cluster inventory
type NodeRecord struct {
	ID      string   `json:"id" yaml:"id"`
	Address string   `json:"address" yaml:"address"`
	Role    Role     `json:"role,omitempty" yaml:"role,omitempty"`
	Groups  []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// NewNodeRecord creates a node record with no role assigned
func NewNodeRecord(id, address string, groups ...string) NodeRecord {
	return NodeRecord{
		ID:      id,
		Address: address,
		Groups:  groups,
	}
}

// WithRole returns a copy of the record with the given role
func (n NodeRecord) WithRole(role Role) NodeRecord {
	n.Groups = slices.Clone(n.Groups)
	n.Role = role
	return n
}

// InGroup reports whether the node belongs to the named inventory group
func (n NodeRecord) InGroup(group string) bool {
	return slices.Contains(n.Groups, group)
}

// IsCoordinator reports whether the node was classified as the coordinator
func (n NodeRecord) IsCoordinator() bool {
	return n.Role == RoleCoordinator
}

// Validate checks the fields every inventory entry must carry
func (n NodeRecord) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: node with address %q has no identifier", ErrInvalidMembership, n.Address)
	}
	if n.Address == "" {
		return fmt.Errorf("%w: node %s has no address", ErrInvalidMembership, n.ID)
	}
	return nil
}

// String returns "id (address)"
func (n NodeRecord) String() string {
	return fmt.Sprintf("%s (%s)", n.ID, n.Address)
}

// compareByAddress orders records by address, then identifier, so that equal
// addresses still produce a total order
func compareByAddress(a, b NodeRecord) int {
	if a.Address < b.Address {
		return -1
	}
	if a.Address > b.Address {
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

// SortByAddress sorts records in place in ascending address order
func SortByAddress(nodes []NodeRecord) {
	slices.SortFunc(nodes, compareByAddress)
}
