/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/HamedShams/effort-pulse/internal/repo"
)

type ReminderResult struct {
	Tasks  int `json:"tasks"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// SendDueReminders emails each assignee the open tasks due inside the
// reminder window. Delivery failures are counted, not returned.
func (s *Service) SendDueReminders(ctx context.Context) (ReminderResult, error) {
	var res ReminderResult
	window := s.cfg.ReminderWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	now := s.now().UTC()
	until := now.Add(window)
	tasks, err := s.store.FindTasks(ctx, repo.TaskFilter{
		Completed: repo.Completed(false),
		DueFrom:   &now,
		DueTo:     &until,
	})
	if err != nil {
		return res, fmt.Errorf("find due tasks: %w", err)
	}
	res.Tasks = len(tasks)

	byUser := map[string][]domain.Task{}
	for _, t := range tasks {
		for _, a := range t.Assignees {
			byUser[a] = append(byUser[a], t)
		}
	}
	ids := make([]string, 0, len(byUser))
	for id := range byUser {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		u, err := s.store.GetUser(ctx, id)
		if err != nil || u.Email == "" {
			s.log.Warn().Err(err).Str("user", id).Msg("reminder: no address")
			res.Failed++
			continue
		}
		list := byUser[id]
		sort.Slice(list, func(i, j int) bool { return list[i].DueDate.Before(*list[j].DueDate) })
		body, err := reminderEmailBody(u.Name, list)
		if err != nil {
			return res, fmt.Errorf("reminder body: %w", err)
		}
		subject := fmt.Sprintf("%d task(s) due soon", len(list))
		if err := s.mail.SendHTML(ctx, u.Email, subject, body, ""); err != nil {
			s.log.Error().Err(&domain.DeliveryError{Recipient: u.Email, Err: err}).Msg("reminder failed")
			res.Failed++
			continue
		}
		res.Sent++
	}
	s.log.Info().Int("tasks", res.Tasks).Int("sent", res.Sent).Int("failed", res.Failed).Msg("DueReminders: done")
	return res, nil
}
