package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/infra/obs"
	"rentacar/internal/infra/storage/memory"
)

func writeFixtures(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cars.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCarFixtures(t *testing.T) {
	ctx := context.Background()
	path := writeFixtures(t, `[
		{"id": "car-1", "name": "Golf", "daily_price": "52.50"},
		{"id": "car-2", "name": "Fiat", "daily_price": "30", "currency": "EUR", "active": false, "deactivated_at": "2024-01-15T00:00:00Z"},
		{"id": "car-3", "name": "Broken", "daily_price": "free"}
	]`)
	repo := memory.NewCarRepository()

	require.NoError(t, loadCarFixtures(ctx, repo, path, "USD", obs.Discard()))

	golf, err := repo.ByID(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, money.Must(5250, "USD"), golf.DailyPrice)
	assert.True(t, golf.Active)

	fiat, err := repo.ByID(ctx, "car-2")
	require.NoError(t, err)
	assert.False(t, fiat.Active)
	require.NotNil(t, fiat.DeactivatedAt)
	assert.Equal(t, "2024-01-15T00:00:00Z", fiat.DeactivatedAt.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "EUR", fiat.DailyPrice.Currency)

	_, err = repo.ByID(ctx, "car-3")
	assert.ErrorIs(t, err, domaincars.ErrNotFound)
}

func TestLoadCarFixturesKeepsStoredCars(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCarRepository(&domaincars.Car{ID: "car-1", Name: "Golf", DailyPrice: money.Must(9900, "USD"), Active: true})
	path := writeFixtures(t, `[{"id": "car-1", "name": "Golf", "daily_price": "52.50"}]`)

	require.NoError(t, loadCarFixtures(ctx, repo, path, "USD", obs.Discard()))

	car, err := repo.ByID(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9900), car.DailyPrice.Amount)
}

func TestLoadCarFixturesMissingFile(t *testing.T) {
	repo := memory.NewCarRepository()
	err := loadCarFixtures(context.Background(), repo, filepath.Join(t.TempDir(), "nope.json"), "USD", obs.Discard())
	assert.NoError(t, err)

	bad := writeFixtures(t, `{"id":`)
	assert.Error(t, loadCarFixtures(context.Background(), repo, bad, "USD", obs.Discard()))
}
