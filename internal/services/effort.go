/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"math"
	"strings"

	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/HamedShams/effort-pulse/internal/realtime"
	"github.com/google/uuid"
)

const maxEntryHours = 24

func (s *Service) loadTask(ctx context.Context, id string) (*domain.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.Invalid("task id is required")
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	t.EffortMetrics = t.EffortMetrics.Normalize()
	return t, nil
}

func (s *Service) saveTask(ctx context.Context, t *domain.Task, action string) (*domain.Task, error) {
	t.UpdatedAt = s.now().UTC()
	if err := s.store.SaveTask(ctx, *t); err != nil {
		return nil, err
	}
	s.log.Info().Str("task", t.ID).Str("action", action).
		Float64("actual", t.EffortMetrics.ActualHours).
		Float64("effective", t.EffortMetrics.EffectiveHours).
		Msg("task effort updated")
	s.publish(realtime.EventTaskUpdated, map[string]any{
		"id":            t.ID,
		"action":        action,
		"effortMetrics": t.EffortMetrics,
		"completed":     t.Completed,
	})
	return t, nil
}

// LogWork appends a time entry and recomputes actual and effective hours.
func (s *Service) LogWork(ctx context.Context, taskID, userID string, hours float64, note string) (*domain.Task, error) {
	if math.IsNaN(hours) || hours <= 0 || hours > maxEntryHours {
		return nil, domain.Invalid("hours must be in (0, %d], got %v", maxEntryHours, hours)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("user id is required")
	}
	t, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	t.EffortMetrics.TimeTracking = append(t.EffortMetrics.TimeTracking, domain.TimeEntry{
		ID:       uuid.NewString(),
		UserID:   userID,
		Hours:    domain.Round2(hours),
		Note:     strings.TrimSpace(note),
		LoggedAt: s.now().UTC(),
	})
	t.EffortMetrics.Recompute()
	if t.Status == domain.StatusTodo || t.Status == "" {
		t.Status = domain.StatusInProgress
	}
	return s.saveTask(ctx, t, "worklog")
}

// BlockTask opens a block episode on a task that is not blocked already.
func (s *Service) BlockTask(ctx context.Context, taskID, blockType, reason string) (*domain.Task, error) {
	bt, ok := domain.ParseBlockType(blockType)
	if !ok {
		return nil, domain.Invalid("unknown block type %q", blockType)
	}
	t, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Completed {
		return nil, domain.Invalid("task %s is completed", t.ID)
	}
	if t.EffortMetrics.IsBlocked() {
		return nil, domain.Invalid("task %s is already blocked by %s", t.ID, t.EffortMetrics.BlockedBy)
	}
	t.EffortMetrics.BlockedBy = bt
	t.EffortMetrics.BlockHistory = append(t.EffortMetrics.BlockHistory, domain.BlockEpisode{
		BlockedBy:    bt,
		Reason:       strings.TrimSpace(reason),
		BlockedSince: s.now().UTC(),
	})
	return s.saveTask(ctx, t, "block")
}

// closeBlock ends the open episode, if any. It reports whether one was open.
func (s *Service) closeBlock(t *domain.Task) bool {
	em := &t.EffortMetrics
	closed := false
	now := s.now().UTC()
	for i := len(em.BlockHistory) - 1; i >= 0; i-- {
		ep := &em.BlockHistory[i]
		if !ep.Open() {
			continue
		}
		until := now
		ep.BlockedUntil = &until
		h := now.Sub(ep.BlockedSince).Hours()
		if h < 0 {
			h = 0
		}
		ep.Duration = domain.Round2(h)
		closed = true
		break
	}
	em.BlockedBy = domain.BlockNone
	em.Recompute()
	return closed
}

func (s *Service) UnblockTask(ctx context.Context, taskID string) (*domain.Task, error) {
	t, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.EffortMetrics.IsBlocked() {
		return nil, domain.Invalid("task %s is not blocked", t.ID)
	}
	s.closeBlock(t)
	return s.saveTask(ctx, t, "unblock")
}

// CompleteTask closes any open block and marks the task done.
func (s *Service) CompleteTask(ctx context.Context, taskID string, validated bool) (*domain.Task, error) {
	t, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Completed {
		return nil, domain.Invalid("task %s is already completed", t.ID)
	}
	s.closeBlock(t)
	now := s.now().UTC()
	t.Completed = true
	t.CompletedAt = &now
	t.Validated = validated
	t.Status = domain.StatusDone
	return s.saveTask(ctx, t, "complete")
}
