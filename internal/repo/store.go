/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
)

// TaskFilter narrows FindTasks. Zero values mean "any".
type TaskFilter struct {
	AssigneeID    string
	ProjectID     string
	Completed     *bool
	CompletedFrom *time.Time // inclusive
	CompletedTo   *time.Time // inclusive
	DueFrom       *time.Time
	DueTo         *time.Time
}

// Match applies the filter in memory; backends that cannot express a
// condition natively fall back to it.
func (f TaskFilter) Match(t domain.Task) bool {
	if f.AssigneeID != "" && !t.AssignedTo(f.AssigneeID) {
		return false
	}
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.CompletedFrom != nil || f.CompletedTo != nil {
		if t.CompletedAt == nil {
			return false
		}
		if f.CompletedFrom != nil && t.CompletedAt.Before(*f.CompletedFrom) {
			return false
		}
		if f.CompletedTo != nil && t.CompletedAt.After(*f.CompletedTo) {
			return false
		}
	}
	if f.DueFrom != nil || f.DueTo != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
			return false
		}
		if f.DueTo != nil && t.DueDate.After(*f.DueTo) {
			return false
		}
	}
	return true
}

// Store is the task store: canonical owner of task, user and project records.
type Store interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SaveUser(ctx context.Context, u domain.User) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	SaveProject(ctx context.Context, p domain.Project) error
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	FindTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error)
	SaveTask(ctx context.Context, t domain.Task) error
}

// Ledger records scheduled/manual report runs.
type Ledger interface {
	StartJobRun(ctx context.Context, kind string) (string, error)
	FinishJobRun(ctx context.Context, run domain.JobRun) error
	GetLastRun(ctx context.Context) (*domain.JobRun, error)
}

// Locker is a cross-process mutex used by cron jobs.
type Locker interface {
	TryLock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Backend bundles everything a storage driver provides.
type Backend interface {
	Store
	Ledger
	Locker
	Close(ctx context.Context) error
}

func boolPtr(b bool) *bool { return &b }

// Completed is a convenience for TaskFilter.Completed.
func Completed(b bool) *bool { return boolPtr(b) }
