/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/HamedShams/effort-pulse/internal/repo"
	"github.com/rs/zerolog"
)

// Aggregator reads the task store and derives transient statistics. Only
// user and project lookups can fail; arithmetic on sparse data never does.
type Aggregator struct {
	store repo.Store
	th    Thresholds
	log   zerolog.Logger
	Now   func() time.Time
}

func NewAggregator(store repo.Store, th Thresholds, log zerolog.Logger) *Aggregator {
	return &Aggregator{store: store, th: th, log: log, Now: time.Now}
}

func (a *Aggregator) completedBy(ctx context.Context, userID string, start, end time.Time) ([]domain.Task, error) {
	tasks, err := a.store.FindTasks(ctx, repo.TaskFilter{
		AssigneeID:    userID,
		Completed:     repo.Completed(true),
		CompletedFrom: &start,
		CompletedTo:   &end,
	})
	if err != nil {
		return nil, fmt.Errorf("find tasks for %s: %w", userID, err)
	}
	return tasks, nil
}

func (a *Aggregator) UserThroughput(ctx context.Context, userID string, start, end time.Time) (*Throughput, error) {
	if _, err := a.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	tasks, err := a.completedBy(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	th := ThroughputOf(tasks)
	return &th, nil
}

func (a *Aggregator) AdjustedEfficiency(ctx context.Context, userID string, raw *float64) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	u, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Adjust(raw, u.EffortProfile), nil
}

func (a *Aggregator) QualityMetrics(ctx context.Context, userID string, start, end time.Time) (*Quality, error) {
	if _, err := a.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	tasks, err := a.completedBy(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	q := QualityOf(tasks)
	return &q, nil
}

func (a *Aggregator) GenerateUserReport(ctx context.Context, userID string, start, end time.Time) (*UserReport, error) {
	u, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tasks, err := a.completedBy(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	ps, pe := previousPeriod(start, end)
	prev, err := a.completedBy(ctx, userID, ps, pe)
	if err != nil {
		return nil, err
	}
	th := ThroughputOf(tasks)
	rep := &UserReport{
		User:               UserRef{ID: u.ID, Name: u.Name, Email: u.Email},
		Period:             Period{Start: start, End: end},
		Throughput:         th,
		Quality:            QualityOf(tasks),
		Complexity:         ComplexityBreakdown(tasks),
		AdjustedEfficiency: Adjust(th.AvgEfficiency, u.EffortProfile),
		BlockAnalysis:      AnalyzeBlockHistory(tasks),
		BlockImpact:        BlockImpact(th),
		Trend:              TrendOf(th.AvgEfficiency, ThroughputOf(prev).AvgEfficiency),
	}
	return rep, nil
}

func (a *Aggregator) GenerateProjectReport(ctx context.Context, projectID string, start, end time.Time) (*ProjectReport, error) {
	p, err := a.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := a.store.FindTasks(ctx, repo.TaskFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("find tasks for project %s: %w", projectID, err)
	}
	users := a.userIndex(ctx)
	rep := a.projectReport(*p, tasks, users, start, end)
	return &rep, nil
}

// userIndex is best effort: members missing from the store are reported
// with their id only.
func (a *Aggregator) userIndex(ctx context.Context) map[string]domain.User {
	idx := map[string]domain.User{}
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("metrics: list users failed")
		return idx
	}
	for _, u := range users {
		idx[u.ID] = u
	}
	return idx
}

func (a *Aggregator) projectReport(p domain.Project, all []domain.Task, users map[string]domain.User, start, end time.Time) ProjectReport {
	done := completedWithin(all, start, end)
	th := ThroughputOf(done)
	period := Period{Start: start, End: end}
	rep := ProjectReport{
		ProjectID:     p.ID,
		Name:          p.Name,
		Period:        period,
		TotalTasks:    len(all),
		Throughput:    th,
		Quality:       QualityOf(done),
		Complexity:    ComplexityBreakdown(done),
		BlockAnalysis: AnalyzeBlockHistory(done),
		BlockImpact:   BlockImpact(th),
		ETA:           ProjectETA(all, th, period.Days()),
	}
	for _, t := range all {
		if !t.Completed {
			rep.OpenTasks++
		}
	}
	for _, m := range p.Members {
		mine := assignedTo(done, m.UserID)
		mt := ThroughputOf(mine)
		ref := UserRef{ID: m.UserID}
		if u, ok := users[m.UserID]; ok {
			ref = UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
		}
		rep.Members = append(rep.Members, MemberSlice{
			User:                ref,
			Role:                m.Role,
			TasksCompleted:      mt.TasksCompleted,
			Throughput:          mt.Throughput,
			TotalActualHours:    mt.TotalActualHours,
			TotalBlockedHours:   mt.TotalBlockedHours,
			AvgEfficiency:       mt.AvgEfficiency,
			BlockImpact:         BlockImpact(mt),
			MostCommonBlockType: AnalyzeBlockHistory(mine).MostCommonType(),
		})
	}
	rep.Recommendations = a.recommend(rep)
	return rep
}

func (a *Aggregator) recommend(rep ProjectReport) []string {
	var out []string
	for _, m := range rep.Members {
		if m.BlockImpact > a.th.BlockImpactAlertPct {
			name := m.User.Name
			if name == "" {
				name = m.User.ID
			}
			out = append(out, fmt.Sprintf("%s lost %.1f%% of logged time to blocks (mostly %s); review their dependencies and approvals.",
				name, m.BlockImpact, m.MostCommonBlockType))
		}
	}
	if ext := rep.BlockAnalysis.ByType[domain.BlockExternal].Count; ext > a.th.ExternalIncidentAlert {
		out = append(out, fmt.Sprintf("External blocks occurred %d times; agree response times with outside parties.", ext))
	}
	if eff := rep.Throughput.AvgEfficiency; eff != nil && *eff > a.th.GoodEfficiency {
		out = append(out, fmt.Sprintf("Team efficiency is %.2f, ahead of estimates. Well done.", *eff))
	}
	return out
}

// GenerateReport builds the full aggregated report across all users and projects.
func (a *Aggregator) GenerateReport(ctx context.Context, start, end time.Time) (*Report, error) {
	all, err := a.store.FindTasks(ctx, repo.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	now := a.Now()
	done := completedWithin(all, start, end)
	th := ThroughputOf(done)

	rep := &Report{
		Period:        Period{Start: start, End: end},
		GeneratedAt:   now.UTC(),
		BlockAnalysis: AnalyzeBlockHistory(done),
	}
	g := GlobalMetrics{
		TotalTasks:          len(all),
		CompletedInPeriod:   len(done),
		TotalEstimatedHours: th.TotalEstimatedHours,
		TotalActualHours:    th.TotalActualHours,
		TotalBlockedHours:   th.TotalBlockedHours,
		TotalEffectiveHours: th.TotalEffectiveHours,
		AvgEfficiency:       th.AvgEfficiency,
		BlockImpact:         BlockImpact(th),
		Users:               len(users),
		Projects:            len(projects),
	}
	for _, t := range all {
		if t.Completed {
			g.CompletedTasks++
		} else {
			g.PendingTasks++
		}
		if t.Overdue(now) {
			g.OverdueTasks++
		}
	}
	g.CompletionRate = percent(float64(g.CompletedTasks), float64(g.TotalTasks))
	rep.Global = g

	idx := make(map[string]domain.User, len(users))
	ps, pe := previousPeriod(start, end)
	for _, u := range users {
		idx[u.ID] = u
		rep.Users = append(rep.Users, userMetrics(u, assignedTo(all, u.ID), start, end, ps, pe, now))
	}
	for _, p := range projects {
		var mine []domain.Task
		for _, t := range all {
			if t.ProjectID == p.ID {
				mine = append(mine, t)
			}
		}
		rep.Projects = append(rep.Projects, a.projectReport(p, mine, idx, start, end))
	}
	a.log.Debug().Int("tasks", len(all)).Int("users", len(users)).Int("projects", len(projects)).Msg("metrics: report aggregated")
	return rep, nil
}

func userMetrics(u domain.User, assigned []domain.Task, start, end, prevStart, prevEnd, now time.Time) UserMetrics {
	done := completedWithin(assigned, start, end)
	th := ThroughputOf(done)
	m := UserMetrics{
		User:                UserRef{ID: u.ID, Name: u.Name, Email: u.Email},
		AssignedTasks:       len(assigned),
		CompletedInPeriod:   len(done),
		Throughput:          th.Throughput,
		TotalActualHours:    th.TotalActualHours,
		TotalBlockedHours:   th.TotalBlockedHours,
		TotalEffectiveHours: th.TotalEffectiveHours,
		Efficiency:          th.AvgEfficiency,
		AdjustedEfficiency:  Adjust(th.AvgEfficiency, u.EffortProfile),
		QualityScore:        QualityOf(done).QualityScore,
		BlockImpact:         BlockImpact(th),
		MostCommonBlockType: AnalyzeBlockHistory(done).MostCommonType(),
		Trend:               TrendOf(th.AvgEfficiency, ThroughputOf(completedWithin(assigned, prevStart, prevEnd)).AvgEfficiency),
	}
	for _, t := range assigned {
		if t.Completed {
			m.CompletedTasks++
		} else {
			m.PendingTasks++
		}
		if t.Overdue(now) {
			m.OverdueTasks++
		}
	}
	m.CompletionRate = percent(float64(m.CompletedTasks), float64(m.AssignedTasks))
	return m
}
