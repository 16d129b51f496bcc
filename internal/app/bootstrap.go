package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/adapters/sessions"
	"github.com/okian/league/internal/adapters/sheets"
	"github.com/okian/league/internal/config"
	"github.com/okian/league/internal/domain/schedule"
	"github.com/okian/league/internal/domain/workflow"
	"github.com/okian/league/pkg/logger"
)

// scheduleBackend reads schedule grids and publishes the match table.
type scheduleBackend interface {
	schedule.Source
	sheets.Publisher
}

// Runtime holds the adapters built from a Config. Close releases them in
// reverse order of creation.
type Runtime struct {
	Service *Service
	Store   *repository.Store
	Bus     *notify.Bus

	closers []io.Closer
}

// Close stops the service and releases every adapter.
func (rt *Runtime) Close() error {
	if rt.Service != nil {
		rt.Service.Stop()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStore opens the database named by cfg and applies pending migrations.
func OpenStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	store, err := repository.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if _, err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// OpenScheduleBackend returns the file or hosted spreadsheet backend.
func OpenScheduleBackend(ctx context.Context, cfg *config.Config) (scheduleBackend, error) {
	if cfg.ScheduleSource == "sheets" {
		client, err := sheets.ServiceAccountClient(ctx, cfg.SheetsCredentials)
		if err != nil {
			return nil, err
		}
		remote, err := sheets.NewRemoteSource(ctx,
			sheets.WithHTTPClient(client),
			sheets.WithEndpoint(cfg.SheetsBaseURL),
		)
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
	return sheets.NewFileSource(cfg.ScheduleDir), nil
}

// Build wires a Service from cfg without starting it. The notification bus
// is already running when Build returns.
func Build(ctx context.Context, cfg *config.Config, l logger.Logger) (*Runtime, error) {
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	rt.Store = store
	rt.closers = append(rt.closers, store)

	var sess workflow.Store = sessions.NewMemoryStore()
	if cfg.SessionStore == "bolt" {
		bolt, err := sessions.OpenBolt(cfg.SessionStorePath)
		if err != nil {
			return fail(err)
		}
		rt.closers = append(rt.closers, bolt)
		sess = bolt
	}

	bus, err := notify.New(
		notify.WithLogger(l.Named("notify")),
		notify.WithModerationWebhook(cfg.ModerationWebhook),
		notify.WithAnnouncementWebhook(cfg.AnnouncementWebhook),
	)
	if err != nil {
		return fail(err)
	}
	rt.Bus = bus
	rt.closers = append(rt.closers, bus)
	go func() {
		if err := bus.Run(context.WithoutCancel(ctx)); err != nil {
			l.Error(ctx, "notification bus stopped", logger.Error(err))
		}
	}()
	select {
	case <-bus.Running():
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	backend, err := OpenScheduleBackend(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("schedule backend: %w", err))
	}

	opts := []Option{
		WithLogger(l.Named("service")),
		WithStore(store),
		WithSessions(sess),
		WithNotifier(bus),
		WithScheduleSource(backend),
		WithPublisher(backend, cfg.ExportSheetKey),
		WithDefaultKFactor(cfg.DefaultKFactor),
		WithSessionTTLs(cfg.SessionTTL, cfg.ReviewTTL),
		WithJanitorInterval(cfg.JanitorInterval),
		WithLeaderboard(cfg.LeaderboardInterval, cfg.LeaderboardSize),
		WithPageSize(cfg.PageSize),
		WithQueueSize(cfg.ExportQueueSize),
		WithWorkerCount(cfg.WorkerCount),
		WithDedupeSize(cfg.DedupeSize),
	}
	for _, d := range cfg.Divisions {
		opts = append(opts, WithDivision(d.Name, d.SheetKey, d.KFactor))
	}
	rt.Service = New(opts...)
	return rt, nil
}
