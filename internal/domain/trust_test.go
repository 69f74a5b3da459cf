package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustStateTransitions(t *testing.T) {
	tests := []struct {
		from, to TrustState
		allowed  bool
	}{
		{TrustUnvisited, TrustKeyTransferred, true},
		{TrustUnvisited, TrustFailed, true},
		{TrustUnvisited, TrustEstablished, false},
		{TrustKeyTransferred, TrustAlready, true},
		{TrustKeyTransferred, TrustEstablished, true},
		{TrustKeyTransferred, TrustFailed, true},
		{TrustEstablished, TrustAlready, false},
		{TrustAlready, TrustFailed, false},
		{TrustFailed, TrustKeyTransferred, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTrustStateTerminal(t *testing.T) {
	assert.False(t, TrustUnvisited.Terminal())
	assert.False(t, TrustKeyTransferred.Terminal())
	assert.True(t, TrustAlready.Terminal())
	assert.True(t, TrustEstablished.Terminal())
	assert.True(t, TrustFailed.Terminal())
}

func TestNodeTrustAdvance(t *testing.T) {
	nt := NewNodeTrust(NewNodeRecord("slave1", "10.0.0.2"))
	require.NoError(t, nt.Advance(TrustKeyTransferred))
	require.NoError(t, nt.Advance(TrustEstablished))
	require.Error(t, nt.Advance(TrustAlready))
	assert.Equal(t, TrustEstablished, nt.State)
}

func TestTrustResult(t *testing.T) {
	cause := errors.New("connection refused")
	failed := NewNodeTrust(NewNodeRecord("slave3", "10.0.0.4"))
	failed.Fail(cause)

	result := &TrustResult{
		Truster: "master",
		Nodes: []NodeTrust{
			{NodeID: "master", Address: "10.0.0.1", State: TrustAlready},
			{NodeID: "slave1", Address: "10.0.0.2", State: TrustEstablished},
			{NodeID: "slave2", Address: "10.0.0.3", State: TrustEstablished},
			*failed,
		},
	}

	assert.Equal(t, []TrustEdge{
		{Truster: "master", Trusted: "slave1"},
		{Truster: "master", Trusted: "slave2"},
	}, result.Created())

	require.Len(t, result.Failures(), 1)
	assert.Equal(t, "slave3", result.Failures()[0].NodeID)

	counts := result.Counts()
	assert.Equal(t, 1, counts[TrustAlready])
	assert.Equal(t, 2, counts[TrustEstablished])
	assert.Equal(t, 1, counts[TrustFailed])

	err := result.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransferFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "slave3")
}

func TestTrustResultNoFailures(t *testing.T) {
	result := &TrustResult{Truster: "master", Nodes: []NodeTrust{{NodeID: "master", State: TrustAlready}}}
	assert.NoError(t, result.Err())
	assert.Empty(t, result.Created())
}
