package topology

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"clustercfg/internal/domain"
)

// Plan derives the replication factor and quorum set for a snapshot.
// Both read only the immutable snapshot, so they run concurrently.
func Plan(ctx context.Context, snapshot *domain.MembershipSnapshot, quorumSize int) (*domain.PlanResult, error) {
	result := &domain.PlanResult{QuorumSize: quorumSize}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Replication = PlanReplication(snapshot)
		return nil
	})
	g.Go(func() error {
		quorum, warning, err := SelectQuorum(snapshot, quorumSize)
		if err != nil {
			return err
		}
		result.Quorum = quorum
		result.Warning = warning
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug().
		Int("replication", int(result.Replication)).
		Str("quorum", result.Quorum.String()).
		Int("quorum_target", quorumSize).
		Msg("Topology planned")

	if result.Warning != nil {
		log.Warn().
			Int("target", result.Warning.Target).
			Int("actual", result.Warning.Actual).
			Msg(result.Warning.String())
	}

	return result, nil
}
