package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSnapshot() *MembershipSnapshot {
	return NewMembershipSnapshot(
		NewNodeRecord("master", "10.0.0.5"),
		[]NodeRecord{
			NewNodeRecord("slave3", "10.0.0.4"),
			NewNodeRecord("slave1", "10.0.0.2"),
			NewNodeRecord("slave2", "10.0.0.3"),
		},
	)
}

func TestMembershipSnapshot(t *testing.T) {
	snap := newTestSnapshot()

	t.Run("coordinator is stamped", func(t *testing.T) {
		assert.Equal(t, "master", snap.Coordinator().ID)
		assert.Equal(t, RoleCoordinator, snap.Coordinator().Role)
		assert.True(t, snap.IsCoordinator("master"))
		assert.False(t, snap.IsCoordinator("slave1"))
	})

	t.Run("workers ordered by address", func(t *testing.T) {
		assert.Equal(t, []string{"slave1", "slave2", "slave3"}, snap.WorkerIDs())
		for _, w := range snap.Workers() {
			assert.Equal(t, RoleWorker, w.Role)
		}
	})

	t.Run("all includes coordinator in address order", func(t *testing.T) {
		var ids []string
		for _, n := range snap.All() {
			ids = append(ids, n.ID)
		}
		assert.Equal(t, []string{"slave1", "slave2", "slave3", "master"}, ids)
		assert.Equal(t, 4, snap.Size())
	})

	t.Run("workers returns a copy", func(t *testing.T) {
		workers := snap.Workers()
		workers[0].ID = "mutated"
		assert.Equal(t, "slave1", snap.WorkerIDs()[0])
	})

	t.Run("lookup", func(t *testing.T) {
		n, ok := snap.Lookup("slave2")
		assert.True(t, ok)
		assert.Equal(t, "10.0.0.3", n.Address)

		_, ok = snap.Lookup("nope")
		assert.False(t, ok)
	})
}

func TestSingleNodeSnapshot(t *testing.T) {
	snap := NewMembershipSnapshot(NewNodeRecord("master", "10.0.0.1"), nil)
	assert.Equal(t, 1, snap.Size())
	assert.Empty(t, snap.Workers())
	assert.Len(t, snap.All(), 1)
}
