/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
)

func TestMemory_FindTasksFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 7, 23, 59, 59, 0, time.UTC)
	inside := start
	outside := end.Add(time.Hour)

	tasks := []domain.Task{
		{ID: "a", Assignees: []string{"u1"}, Completed: true, CompletedAt: &inside},
		{ID: "b", Assignees: []string{"u1", "u2"}, Completed: true, CompletedAt: &end},
		{ID: "c", Assignees: []string{"u1"}, Completed: true, CompletedAt: &outside},
		{ID: "d", Assignees: []string{"u2"}},
	}
	for _, tk := range tasks {
		if err := m.SaveTask(ctx, tk); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	got, err := m.FindTasks(ctx, TaskFilter{AssigneeID: "u1", Completed: Completed(true), CompletedFrom: &start, CompletedTo: &end})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tasks in range (bounds inclusive), got %d", len(got))
	}
	open, _ := m.FindTasks(ctx, TaskFilter{Completed: Completed(false)})
	if len(open) != 1 || open[0].ID != "d" {
		t.Fatalf("unexpected open tasks: %+v", open)
	}
}

func TestMemory_NotFoundAndLedger(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.GetTask(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.GetLastRun(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty ledger, got %v", err)
	}
	id, err := m.StartJobRun(ctx, "report")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.FinishJobRun(ctx, domain.JobRun{ID: id, Success: true, Delivered: 2}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	last, err := m.GetLastRun(ctx)
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last.Kind != "report" || !last.Success || last.Delivered != 2 || last.FinishedAt == nil {
		t.Fatalf("unexpected run: %+v", last)
	}
}

func TestMemory_Lock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ok, _ := m.TryLock(ctx, "report")
	if !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := m.TryLock(ctx, "report"); ok {
		t.Fatalf("second lock should fail while held")
	}
	_ = m.Unlock(ctx, "report")
	if ok, _ := m.TryLock(ctx, "report"); !ok {
		t.Fatalf("lock should be free after unlock")
	}
}
