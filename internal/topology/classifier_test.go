package topology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clustercfg/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		entries     []domain.NodeRecord
		wantErr     error
		coordinator string
		workers     []string
	}{
		{
			name: "single master",
			entries: []domain.NodeRecord{
				domain.NewNodeRecord("slave2", "10.0.0.3"),
				domain.NewNodeRecord("master", "10.0.0.1"),
				domain.NewNodeRecord("slave1", "10.0.0.2"),
			},
			coordinator: "master",
			workers:     []string{"slave1", "slave2"},
		},
		{
			name: "substring anywhere in identifier",
			entries: []domain.NodeRecord{
				domain.NewNodeRecord("hadoop-master-01", "10.0.0.1"),
				domain.NewNodeRecord("hadoop-worker-01", "10.0.0.2"),
			},
			coordinator: "hadoop-master-01",
			workers:     []string{"hadoop-worker-01"},
		},
		{
			name: "match is case-sensitive",
			entries: []domain.NodeRecord{
				domain.NewNodeRecord("Master", "10.0.0.1"),
				domain.NewNodeRecord("slave1", "10.0.0.2"),
			},
			wantErr: domain.ErrNoCoordinator,
		},
		{
			name: "single node cluster",
			entries: []domain.NodeRecord{
				domain.NewNodeRecord("master", "10.0.0.1"),
			},
			coordinator: "master",
		},
		{
			name: "no coordinator",
			entries: []domain.NodeRecord{
				domain.NewNodeRecord("slave1", "10.0.0.2"),
				domain.NewNodeRecord("slave2", "10.0.0.3"),
			},
			wantErr: domain.ErrNoCoordinator,
		},
		{
			name:    "empty membership",
			wantErr: domain.ErrNoCoordinator,
		},
		{
			name: "two coordinators",
			entries: []domain.NodeRecord{
				domain.NewNodeRecord("master", "10.0.0.1"),
				domain.NewNodeRecord("master2", "10.0.0.9"),
				domain.NewNodeRecord("slave1", "10.0.0.2"),
			},
			wantErr: domain.ErrAmbiguousTopology,
		},
		{
			name: "duplicate address",
			entries: []domain.NodeRecord{
				domain.NewNodeRecord("master", "10.0.0.1"),
				domain.NewNodeRecord("slave1", "10.0.0.1"),
			},
			wantErr: domain.ErrInvalidMembership,
		},
		{
			name: "duplicate identifier",
			entries: []domain.NodeRecord{
				domain.NewNodeRecord("master", "10.0.0.1"),
				domain.NewNodeRecord("master", "10.0.0.2"),
			},
			wantErr: domain.ErrInvalidMembership,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Classify(tt.entries, nil)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, snap)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.coordinator, snap.Coordinator().ID)
			if len(tt.workers) == 0 {
				assert.Empty(t, snap.WorkerIDs())
			} else {
				assert.Equal(t, tt.workers, snap.WorkerIDs())
			}
		})
	}
}

func TestClassifyAmbiguousNamesEveryMatch(t *testing.T) {
	entries := []domain.NodeRecord{
		domain.NewNodeRecord("master-b", "10.0.0.2"),
		domain.NewNodeRecord("master-a", "10.0.0.1"),
		domain.NewNodeRecord("slave1", "10.0.0.3"),
	}

	_, err := Classify(entries, NewSubstringClassifier("master"))
	require.Error(t, err)

	var topoErr *domain.TopologyError
	require.True(t, errors.As(err, &topoErr))
	assert.Equal(t, []string{"master-a", "master-b"}, topoErr.Matches)
	assert.Equal(t, 3, topoErr.Total)
	assert.Contains(t, err.Error(), `identifier contains "master"`)
}

func TestGroupClassifier(t *testing.T) {
	entries := []domain.NodeRecord{
		domain.NewNodeRecord("nn1", "10.0.0.1", "hadoop", "namenode"),
		domain.NewNodeRecord("dn1", "10.0.0.2", "hadoop"),
		domain.NewNodeRecord("dn2", "10.0.0.3", "hadoop"),
	}

	snap, err := Classify(entries, NewGroupClassifier("namenode"))
	require.NoError(t, err)
	assert.Equal(t, "nn1", snap.Coordinator().ID)
	assert.Equal(t, []string{"dn1", "dn2"}, snap.WorkerIDs())
}

func TestClassifierFunc(t *testing.T) {
	entries := []domain.NodeRecord{
		domain.NewNodeRecord("a", "10.0.0.1"),
		domain.NewNodeRecord("b", "10.0.0.2"),
	}
	pick := ClassifierFunc(func(n domain.NodeRecord) bool { return n.Address == "10.0.0.2" })

	snap, err := Classify(entries, pick)
	require.NoError(t, err)
	assert.Equal(t, "b", snap.Coordinator().ID)
}
