/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/HamedShams/effort-pulse/internal/repo"
	"github.com/HamedShams/effort-pulse/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	reportLockKey   = "effort-pulse:scheduled-report"
	reminderLockKey = "effort-pulse:due-reminders"
)

type service interface {
	RunScheduledReport(ctx context.Context) error
	SendDueReminders(ctx context.Context) (services.ReminderResult, error)
}

type Cron struct {
	cfg    config.Config
	log    zerolog.Logger
	svc    service
	locker repo.Locker
	c      *cron.Cron
	report cron.EntryID
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, locker repo.Locker) (*Cron, error) {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, locker: locker, c: c}
	id, err := c.AddFunc(cfg.ReportCron, cr.scheduledReport)
	if err != nil {
		return nil, fmt.Errorf("report schedule %q: %w", cfg.ReportCron, err)
	}
	cr.report = id
	if cfg.ReminderCron != "" {
		if _, err := c.AddFunc(cfg.ReminderCron, cr.dueReminders); err != nil {
			return nil, fmt.Errorf("reminder schedule %q: %w", cfg.ReminderCron, err)
		}
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop waits for running jobs to return.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

// NextReport is the next scheduled report time; zero before Start.
func (cr *Cron) NextReport() time.Time { return cr.c.Entry(cr.report).Next }

func (cr *Cron) timeout() time.Duration {
	if cr.cfg.JobTimeout > 0 {
		return cr.cfg.JobTimeout
	}
	return 5 * time.Minute
}

// locked runs fn while holding key in the store so replicas never overlap.
func (cr *Cron) locked(name, key string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cr.timeout())
	defer cancel()
	ok, err := cr.locker.TryLock(ctx, key)
	if err != nil {
		cr.log.Error().Err(err).Str("job", name).Msg("cron: lock error")
		return
	}
	if !ok {
		cr.log.Info().Str("job", name).Msg("cron: already running elsewhere")
		return
	}
	defer func() {
		if err := cr.locker.Unlock(context.Background(), key); err != nil {
			cr.log.Warn().Err(err).Str("job", name).Msg("cron: unlock failed")
		}
	}()
	cr.log.Info().Str("job", name).Msg("cron: start")
	if err := fn(ctx); err != nil {
		cr.log.Error().Err(err).Str("job", name).Msg("cron: job failed")
	}
}

func (cr *Cron) scheduledReport() {
	cr.locked("scheduled-report", reportLockKey, cr.svc.RunScheduledReport)
}

func (cr *Cron) dueReminders() {
	cr.locked("due-reminders", reminderLockKey, func(ctx context.Context) error {
		_, err := cr.svc.SendDueReminders(ctx)
		return err
	})
}
