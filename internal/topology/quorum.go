package topology

import (
	"fmt"

	"clustercfg/internal/domain"
)

// DefaultQuorumSize is the coordination-service quorum target when none is configured
const DefaultQuorumSize = 3

// SelectQuorum picks the coordination-service members: the coordinator first,
// then workers in ascending address order until target members are chosen.
//
// A membership smaller than target yields a smaller quorum together with an
// UnderProvisionedQuorum advisory; it is never an error. The quorum size is not
// forced to be odd.
func SelectQuorum(snapshot *domain.MembershipSnapshot, target int) (domain.QuorumSet, *domain.UnderProvisionedQuorum, error) {
	if target < 1 {
		return nil, nil, fmt.Errorf("%w: target %d, must be at least 1", domain.ErrInvalidQuorumSize, target)
	}

	quorum := make(domain.QuorumSet, 0, target)
	quorum = append(quorum, snapshot.Coordinator().ID)

	for _, worker := range snapshot.Workers() {
		if len(quorum) >= target {
			break
		}
		quorum = append(quorum, worker.ID)
	}

	if len(quorum) < target {
		return quorum, &domain.UnderProvisionedQuorum{Target: target, Actual: len(quorum)}, nil
	}
	return quorum, nil, nil
}
