package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	domaincars "rentacar/internal/domain/cars"
	"rentacar/internal/domain/shared/money"
)

type carFixture struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DailyPrice    string `json:"daily_price"`
	Currency      string `json:"currency"`
	Active        *bool  `json:"active"`
	DeactivatedAt string `json:"deactivated_at"`
}

// loadCarFixtures seeds cars that are not stored yet. Existing cars are left
// untouched so restarts never undo a deactivation.
func loadCarFixtures(ctx context.Context, repo domaincars.Repository, path, currency string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("car fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []carFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	imported := 0
	for _, fx := range fixtures {
		id := domaincars.CarID(fx.ID)
		if _, err := repo.ByID(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, domaincars.ErrNotFound) {
			return err
		}
		cur := fx.Currency
		if cur == "" {
			cur = currency
		}
		price, err := money.ParseDecimal(fx.DailyPrice, cur)
		if err != nil {
			logger.Error("fixture invalid", "car_id", fx.ID, "error", err)
			continue
		}
		car := &domaincars.Car{ID: id, Name: fx.Name, DailyPrice: price, Active: fx.Active == nil || *fx.Active}
		if !car.Active {
			at := time.Now().UTC()
			if t, err := time.Parse(time.RFC3339, fx.DeactivatedAt); err == nil {
				at = t.UTC()
			}
			car.DeactivatedAt = &at
		}
		if err := repo.Save(ctx, car); err != nil {
			logger.Error("cannot store fixture car", "car_id", fx.ID, "error", err)
			continue
		}
		imported++
	}
	logger.Info("car fixtures imported", "count", imported, "path", path)
	return nil
}
