package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViolationBufferDrain(t *testing.T) {
	b := NewViolationBuffer(10)
	b.Add(Violation{EntityID: 1, Reason: "SpeedHack"})
	b.Add(Violation{EntityID: 2, Reason: "TeleportDetected"})
	assert.Equal(t, 2, b.Len())

	got := b.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].EntityID)
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Drain())
}

func TestViolationBufferDropsOldest(t *testing.T) {
	b := NewViolationBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Add(Violation{EntityID: uint64(i)})
	}
	got := b.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[0].EntityID)
	assert.Equal(t, uint64(5), got[2].EntityID)
	assert.Equal(t, uint64(2), b.Dropped())
}

func TestViolationBufferRequeueKeepsOrder(t *testing.T) {
	b := NewViolationBuffer(4)
	b.Add(Violation{EntityID: 1})
	b.Add(Violation{EntityID: 2})
	batch := b.Drain()

	b.Add(Violation{EntityID: 3})
	b.Add(Violation{EntityID: 4})
	b.Add(Violation{EntityID: 5})
	b.Requeue(batch)

	got := b.Drain()
	require.Len(t, got, 4)
	ids := []uint64{got[0].EntityID, got[1].EntityID, got[2].EntityID, got[3].EntityID}
	assert.Equal(t, []uint64{2, 3, 4, 5}, ids)
	assert.Equal(t, uint64(1), b.Dropped())
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := MigrationFiles()
	require.NoError(t, err)
	assert.Contains(t, names, "00001_movement_violations.sql")
}
