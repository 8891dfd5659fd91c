package sweeps

import (
	"context"
	"log/slog"
	"time"

	"rentacar/internal/app/commands"
	handlersupport "rentacar/internal/app/handlers/support"
	"rentacar/internal/app/uow"
)

const purgeInactiveCarsKey = "cars.purge_inactive"

const DefaultRetentionMonths = 2

// PurgeInactiveCarsCommand hard-deletes cars deactivated at or before Cutoff.
type PurgeInactiveCarsCommand struct {
	Cutoff time.Time
}

func (c PurgeInactiveCarsCommand) Key() string { return purgeInactiveCarsKey }

type PurgeInactiveCarsResult struct {
	Deleted int
}

type PurgeInactiveCarsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *PurgeInactiveCarsHandler) Handle(ctx context.Context, cmd PurgeInactiveCarsCommand) (*PurgeInactiveCarsResult, error) {
	res := &PurgeInactiveCarsResult{}
	err := handlersupport.WithinUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		n, err := unit.Cars().PurgeDeactivatedBefore(ctx, cmd.Cutoff)
		res.Deleted = n
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CarCleanup removes catalog entries that have been inactive for longer than
// RetentionMonths.
type CarCleanup struct {
	Bus             commands.Bus
	RetentionMonths int
	Logger          *slog.Logger
}

func (c *CarCleanup) Name() string { return "car-cleanup" }

func (c *CarCleanup) Run(ctx context.Context, now time.Time) error {
	_, err := c.Sweep(ctx, now)
	return err
}

func (c *CarCleanup) Sweep(ctx context.Context, now time.Time) (int, error) {
	months := c.RetentionMonths
	if months <= 0 {
		months = DefaultRetentionMonths
	}
	cutoff := now.UTC().AddDate(0, -months, 0)
	res, err := commands.Dispatch[PurgeInactiveCarsCommand, *PurgeInactiveCarsResult](ctx, c.Bus, PurgeInactiveCarsCommand{Cutoff: cutoff})
	if err != nil {
		return 0, err
	}
	deleted := 0
	if res != nil {
		deleted = res.Deleted
	}
	if deleted > 0 && c.Logger != nil {
		c.Logger.Info("inactive cars purged", "count", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

var _ commands.Handler[PurgeInactiveCarsCommand, *PurgeInactiveCarsResult] = (*PurgeInactiveCarsHandler)(nil)
