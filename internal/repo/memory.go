/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/google/uuid"
)

// Memory is an in-process Backend used by tests and STORE_DRIVER=memory.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	projects map[string]domain.Project
	tasks    map[string]domain.Task
	runs     []domain.JobRun
	locks    map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		users:    map[string]domain.User{},
		projects: map[string]domain.Project{},
		tasks:    map[string]domain.Task{},
		locks:    map[string]struct{}{},
	}
}

func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.NotFound("user", id)
	}
	return &u, nil
}

func (m *Memory) ListUsers(context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SaveUser(_ context.Context, u domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetProject(_ context.Context, id string) (*domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.NotFound("project", id)
	}
	return &p, nil
}

func (m *Memory) ListProjects(context.Context) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SaveProject(_ context.Context, p domain.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.projects[p.ID] = p
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetTask(_ context.Context, id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.NotFound("task", id)
	}
	return &t, nil
}

// FindTasks returns matches ordered by creation time, then id.
func (m *Memory) FindTasks(_ context.Context, f TaskFilter) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) SaveTask(_ context.Context, t domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()
	return nil
}

func (m *Memory) StartJobRun(_ context.Context, kind string) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	m.runs = append(m.runs, domain.JobRun{ID: id, Kind: kind, StartedAt: time.Now().UTC()})
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) FinishJobRun(_ context.Context, run domain.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID != run.ID {
			continue
		}
		now := time.Now().UTC()
		run.Kind, run.StartedAt, run.FinishedAt = m.runs[i].Kind, m.runs[i].StartedAt, &now
		m.runs[i] = run
		return nil
	}
	return domain.NotFound("job run", run.ID)
}

func (m *Memory) GetLastRun(context.Context) (*domain.JobRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return nil, domain.NotFound("job run", "last")
	}
	r := m.runs[len(m.runs)-1]
	return &r, nil
}

func (m *Memory) TryLock(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[key]; held {
		return false, nil
	}
	m.locks[key] = struct{}{}
	return true, nil
}

func (m *Memory) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.locks, key)
	m.mu.Unlock()
	return nil
}
