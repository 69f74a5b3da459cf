package topology

import (
	"fmt"
	"strings"

	"clustercfg/internal/domain"
)

// DefaultCoordinatorPattern is the identifier substring that marks the coordinator
const DefaultCoordinatorPattern = "master"

// RoleClassifier decides whether a node is the coordinator
type RoleClassifier interface {
	IsCoordinator(node domain.NodeRecord) bool
	// Describe names the rule for error messages
	Describe() string
}

// SubstringClassifier matches nodes whose identifier contains Pattern (case-sensitive)
type SubstringClassifier struct {
	Pattern string
}

// NewSubstringClassifier creates a classifier matching pattern anywhere in the identifier
func NewSubstringClassifier(pattern string) SubstringClassifier {
	return SubstringClassifier{Pattern: pattern}
}

func (c SubstringClassifier) IsCoordinator(node domain.NodeRecord) bool {
	return strings.Contains(node.ID, c.Pattern)
}

func (c SubstringClassifier) Describe() string {
	return fmt.Sprintf("identifier contains %q", c.Pattern)
}

// GroupClassifier matches nodes that belong to a named inventory group
type GroupClassifier struct {
	Group string
}

// NewGroupClassifier creates a classifier keyed on inventory group membership
func NewGroupClassifier(group string) GroupClassifier {
	return GroupClassifier{Group: group}
}

func (c GroupClassifier) IsCoordinator(node domain.NodeRecord) bool {
	return node.InGroup(c.Group)
}

func (c GroupClassifier) Describe() string {
	return fmt.Sprintf("member of group %q", c.Group)
}

// ClassifierFunc adapts a plain predicate to RoleClassifier
type ClassifierFunc func(node domain.NodeRecord) bool

func (f ClassifierFunc) IsCoordinator(node domain.NodeRecord) bool {
	return f(node)
}

func (f ClassifierFunc) Describe() string {
	return "custom predicate"
}

// Classify partitions entries into exactly one coordinator and the remaining workers.
// It fails with ErrNoCoordinator or ErrAmbiguousTopology (wrapped in a
// *domain.TopologyError listing the matching identifiers) rather than pick one.
func Classify(entries []domain.NodeRecord, classifier RoleClassifier) (*domain.MembershipSnapshot, error) {
	if classifier == nil {
		classifier = NewSubstringClassifier(DefaultCoordinatorPattern)
	}

	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	var coordinators, workers []domain.NodeRecord
	for _, node := range entries {
		if classifier.IsCoordinator(node) {
			coordinators = append(coordinators, node)
		} else {
			workers = append(workers, node)
		}
	}

	if len(coordinators) != 1 {
		kind := domain.ErrNoCoordinator
		if len(coordinators) > 1 {
			kind = domain.ErrAmbiguousTopology
		}
		domain.SortByAddress(coordinators)
		matches := make([]string, len(coordinators))
		for i, c := range coordinators {
			matches[i] = c.ID
		}
		return nil, &domain.TopologyError{
			Kind:    kind,
			Rule:    classifier.Describe(),
			Matches: matches,
			Total:   len(entries),
		}
	}

	return domain.NewMembershipSnapshot(coordinators[0], workers), nil
}

// validateEntries rejects missing fields and duplicate identifiers or addresses.
// Addresses key the ordering, so two nodes sharing one would make it ambiguous.
func validateEntries(entries []domain.NodeRecord) error {
	ids := make(map[string]bool, len(entries))
	addrs := make(map[string]string, len(entries))

	for _, node := range entries {
		if err := node.Validate(); err != nil {
			return err
		}
		if ids[node.ID] {
			return fmt.Errorf("%w: duplicate node identifier %s", domain.ErrInvalidMembership, node.ID)
		}
		if other, ok := addrs[node.Address]; ok {
			return fmt.Errorf("%w: nodes %s and %s share address %s",
				domain.ErrInvalidMembership, other, node.ID, node.Address)
		}
		ids[node.ID] = true
		addrs[node.Address] = node.ID
	}
	return nil
}
