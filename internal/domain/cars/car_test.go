package cars

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/domain/shared/money"
)

func TestExpiredOnlyForInactivePastCutoff(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, -2, 0)

	active := &Car{ID: "a", Active: true}
	assert.False(t, active.Expired(cutoff))

	old := &Car{ID: "b", Active: true}
	old.Deactivate(cutoff.Add(-time.Hour))
	assert.True(t, old.Expired(cutoff))

	edge := &Car{ID: "c", Active: true}
	edge.Deactivate(cutoff)
	assert.True(t, edge.Expired(cutoff))

	recent := &Car{ID: "d", Active: true}
	recent.Deactivate(now.AddDate(0, -1, 0))
	assert.False(t, recent.Expired(cutoff))

	missingStamp := &Car{ID: "e", Active: false}
	assert.False(t, missingStamp.Expired(cutoff))
}

func TestReactivateClearsStamp(t *testing.T) {
	c := &Car{ID: "a", Active: true, DailyPrice: money.Must(5000, "USD")}
	require.NoError(t, c.Validate())
	c.Deactivate(time.Now())
	require.NotNil(t, c.DeactivatedAt)
	require.NoError(t, c.Reactivate())
	assert.Nil(t, c.DeactivatedAt)
	assert.ErrorIs(t, c.Reactivate(), ErrAlreadyActive)
}
