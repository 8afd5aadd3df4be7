/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/HamedShams/effort-pulse/internal/repo"
	"github.com/HamedShams/effort-pulse/internal/services"
	"github.com/rs/zerolog"
)

type fakeSvc struct {
	reports   int
	reminders int
	err       error
}

func (f *fakeSvc) RunScheduledReport(context.Context) error {
	f.reports++
	return f.err
}

func (f *fakeSvc) SendDueReminders(context.Context) (services.ReminderResult, error) {
	f.reminders++
	return services.ReminderResult{}, f.err
}

func testConfig() config.Config {
	return config.Config{TZ: "UTC", ReportCron: "0 8 * * MON", ReminderCron: "0 9 * * *", JobTimeout: time.Minute}
}

func TestNewCron_RejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.ReportCron = "every monday"
	if _, err := NewCron(cfg, zerolog.Nop(), &fakeSvc{}, repo.NewMemory()); err == nil {
		t.Fatalf("expected schedule parse error")
	}
}

func TestScheduledReport_TakesStoreLock(t *testing.T) {
	store := repo.NewMemory()
	svc := &fakeSvc{}
	cr, err := NewCron(testConfig(), zerolog.Nop(), svc, store)
	if err != nil {
		t.Fatalf("new cron: %v", err)
	}

	// another replica holds the lock
	if ok, _ := store.TryLock(context.Background(), reportLockKey); !ok {
		t.Fatalf("could not take lock")
	}
	cr.scheduledReport()
	if svc.reports != 0 {
		t.Fatalf("job must not run while the lock is held elsewhere")
	}

	_ = store.Unlock(context.Background(), reportLockKey)
	cr.scheduledReport()
	if svc.reports != 1 {
		t.Fatalf("expected one run, got %d", svc.reports)
	}
	if ok, _ := store.TryLock(context.Background(), reportLockKey); !ok {
		t.Fatalf("lock must be released after the run")
	}
}

func TestDueReminders_ReleasesLockOnError(t *testing.T) {
	store := repo.NewMemory()
	svc := &fakeSvc{err: errors.New("smtp down")}
	cr, err := NewCron(testConfig(), zerolog.Nop(), svc, store)
	if err != nil {
		t.Fatalf("new cron: %v", err)
	}
	cr.dueReminders()
	cr.dueReminders()
	if svc.reminders != 2 {
		t.Fatalf("expected two runs, got %d", svc.reminders)
	}
}

func TestNextReport(t *testing.T) {
	cr, err := NewCron(testConfig(), zerolog.Nop(), &fakeSvc{}, repo.NewMemory())
	if err != nil {
		t.Fatalf("new cron: %v", err)
	}
	cr.Start()
	defer cr.Stop()
	next := cr.NextReport()
	if next.IsZero() || next.Weekday() != time.Monday || next.Hour() != 8 {
		t.Fatalf("unexpected next run %v", next)
	}
}
