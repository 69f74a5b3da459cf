package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopologyErrorNamesMatches(t *testing.T) {
	err := &TopologyError{
		Kind:    ErrAmbiguousTopology,
		Rule:    `contains "master"`,
		Matches: []string{"master-a", "master-b"},
		Total:   5,
	}

	assert.True(t, errors.Is(err, ErrAmbiguousTopology))
	assert.False(t, errors.Is(err, ErrNoCoordinator))
	assert.Contains(t, err.Error(), "master-a, master-b")
}

func TestTopologyErrorNoMatches(t *testing.T) {
	err := &TopologyError{Kind: ErrNoCoordinator, Rule: `contains "master"`, Total: 3}
	assert.True(t, errors.Is(err, ErrNoCoordinator))
	assert.Contains(t, err.Error(), "none of 3 nodes")
}
