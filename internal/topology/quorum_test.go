package topology

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clustercfg/internal/domain"
)

func classified(t *testing.T, entries ...domain.NodeRecord) *domain.MembershipSnapshot {
	t.Helper()
	snap, err := Classify(entries, nil)
	require.NoError(t, err)
	return snap
}

func TestExampleScenario(t *testing.T) {
	snap := classified(t,
		domain.NewNodeRecord("master", "10.0.0.1"),
		domain.NewNodeRecord("slave1", "10.0.0.2"),
		domain.NewNodeRecord("slave2", "10.0.0.3"),
		domain.NewNodeRecord("slave3", "10.0.0.4"),
	)

	result, err := Plan(context.Background(), snap, 3)
	require.NoError(t, err)

	assert.Equal(t, "master", snap.Coordinator().ID)
	assert.Equal(t, domain.ReplicationPlan(4), result.Replication)
	assert.Equal(t, domain.QuorumSet{"master", "slave1", "slave2"}, result.Quorum)
	assert.Nil(t, result.Warning)
	assert.Equal(t, "master,slave1,slave2", result.Quorum.String())
}

func TestSelectQuorum(t *testing.T) {
	snap := classified(t,
		domain.NewNodeRecord("slave-c", "10.0.0.30"),
		domain.NewNodeRecord("master", "10.0.0.99"),
		domain.NewNodeRecord("slave-a", "10.0.0.10"),
		domain.NewNodeRecord("slave-b", "10.0.0.20"),
	)

	tests := []struct {
		name        string
		target      int
		want        domain.QuorumSet
		underTarget bool
	}{
		{"coordinator only", 1, domain.QuorumSet{"master"}, false},
		{"truncates at target", 2, domain.QuorumSet{"master", "slave-a"}, false},
		{"even target is honored", 4, domain.QuorumSet{"master", "slave-a", "slave-b", "slave-c"}, false},
		{"under-provisioned", 5, domain.QuorumSet{"master", "slave-a", "slave-b", "slave-c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quorum, warning, err := SelectQuorum(snap, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, quorum)
			if tt.underTarget {
				require.NotNil(t, warning)
				assert.Equal(t, tt.target, warning.Target)
				assert.Equal(t, len(tt.want), warning.Actual)
			} else {
				assert.Nil(t, warning)
			}
		})
	}
}

func TestSelectQuorumInvalidTarget(t *testing.T) {
	snap := classified(t, domain.NewNodeRecord("master", "10.0.0.1"))

	_, _, err := SelectQuorum(snap, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidQuorumSize))

	_, err = Plan(context.Background(), snap, -1)
	assert.True(t, errors.Is(err, domain.ErrInvalidQuorumSize))
}

func TestPlanReplicationSingleNode(t *testing.T) {
	snap := classified(t, domain.NewNodeRecord("master", "10.0.0.1"))
	assert.Equal(t, domain.ReplicationPlan(1), PlanReplication(snap))
}

func TestPlanFiveNodes(t *testing.T) {
	snap := classified(t,
		domain.NewNodeRecord("master", "10.0.0.1"),
		domain.NewNodeRecord("slave1", "10.0.0.2"),
		domain.NewNodeRecord("slave2", "10.0.0.3"),
		domain.NewNodeRecord("slave3", "10.0.0.4"),
		domain.NewNodeRecord("slave4", "10.0.0.5"),
	)
	assert.Equal(t, domain.ReplicationPlan(5), PlanReplication(snap))
}
