/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/HamedShams/effort-pulse/internal/repo"
	"github.com/rs/zerolog"
)

var (
	periodStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
)

func completedTask(id, user string, est, act, eff float64, blocks ...domain.BlockEpisode) domain.Task {
	at := periodStart.Add(48 * time.Hour)
	em := domain.NewEffortMetrics()
	em.EstimatedHours, em.ActualHours, em.EffectiveHours = est, act, eff
	em.BlockHistory = blocks
	return domain.Task{
		ID: id, Title: "task " + id, Assignees: []string{user},
		Completed: true, CompletedAt: &at, Status: domain.StatusDone, EffortMetrics: em,
	}
}

func block(bt domain.BlockType, hours float64, reason string) domain.BlockEpisode {
	return domain.BlockEpisode{BlockedBy: bt, Duration: hours, Reason: reason, BlockedSince: periodStart}
}

func seeded(t *testing.T, users []domain.User, projects []domain.Project, tasks ...domain.Task) *Aggregator {
	t.Helper()
	ctx := context.Background()
	m := repo.NewMemory()
	for _, u := range users {
		if err := m.SaveUser(ctx, u); err != nil {
			t.Fatalf("save user: %v", err)
		}
	}
	for _, p := range projects {
		if err := m.SaveProject(ctx, p); err != nil {
			t.Fatalf("save project: %v", err)
		}
	}
	for _, tk := range tasks {
		if err := m.SaveTask(ctx, tk); err != nil {
			t.Fatalf("save task: %v", err)
		}
	}
	a := NewAggregator(m, DefaultThresholds(), zerolog.Nop())
	a.Now = func() time.Time { return periodEnd }
	return a
}

func TestTaskEfficiency_NilWithoutEffectiveTime(t *testing.T) {
	tk := completedTask("a", "u1", 5, 3, 0)
	if e := TaskEfficiency(tk); e != nil {
		t.Fatalf("expected nil efficiency, got %v", *e)
	}
	tk = completedTask("b", "u1", 5, 3, 2)
	if e := TaskEfficiency(tk); e == nil || *e != 2.5 {
		t.Fatalf("expected 2.5, got %v", e)
	}
}

func TestUserThroughput_TwoTasks(t *testing.T) {
	a := seeded(t, []domain.User{{ID: "u1", Name: "Ana"}}, nil,
		completedTask("a", "u1", 4, 2, 2),
		completedTask("b", "u1", 6, 3, 3),
	)
	th, err := a.UserThroughput(context.Background(), "u1", periodStart, periodEnd)
	if err != nil {
		t.Fatalf("throughput: %v", err)
	}
	if th.TotalEstimatedHours != 10 || th.TotalEffectiveHours != 5 {
		t.Fatalf("unexpected totals: %+v", th)
	}
	if th.AvgEfficiency == nil || *th.AvgEfficiency != 2.0 {
		t.Fatalf("expected avgEfficiency 2.0, got %v", th.AvgEfficiency)
	}
	if th.Throughput != 10 || th.TasksCompleted != 2 || len(th.Tasks) != 2 {
		t.Fatalf("unexpected throughput: %+v", th)
	}
}

func TestUserThroughput_EmptyAndUnknownUser(t *testing.T) {
	a := seeded(t, []domain.User{{ID: "u1"}}, nil)
	th, err := a.UserThroughput(context.Background(), "u1", periodStart, periodEnd)
	if err != nil {
		t.Fatalf("throughput: %v", err)
	}
	if th.TasksCompleted != 0 || th.TotalEstimatedHours != 0 || th.TotalActualHours != 0 ||
		th.TotalBlockedHours != 0 || th.TotalEffectiveHours != 0 || th.AvgEfficiency != nil {
		t.Fatalf("expected zero sums and nil efficiency, got %+v", th)
	}
	if _, err := a.UserThroughput(context.Background(), "ghost", periodStart, periodEnd); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdjust(t *testing.T) {
	got := Adjust(ptr(2.0), &domain.EffortProfile{WeeklyHours: 20, ExperienceLevel: "senior"})
	if got == nil || *got != 1.2 {
		t.Fatalf("expected 1.2, got %v", got)
	}
	if Adjust(nil, &domain.EffortProfile{WeeklyHours: 20}) != nil {
		t.Fatalf("nil efficiency must pass through")
	}
	if got := Adjust(ptr(1.5), nil); *got != 1.5 {
		t.Fatalf("missing profile should be neutral, got %v", *got)
	}
	if got := Adjust(ptr(1.0), &domain.EffortProfile{ExperienceLevel: "wizard"}); *got != 1.0 {
		t.Fatalf("unknown level should use multiplier 1, got %v", *got)
	}
}

func TestAdjustedEfficiency_LooksUpProfile(t *testing.T) {
	a := seeded(t, []domain.User{{ID: "u1", EffortProfile: &domain.EffortProfile{WeeklyHours: 40, ExperienceLevel: "junior"}}}, nil)
	got, err := a.AdjustedEfficiency(context.Background(), "u1", ptr(1.0))
	if err != nil || got == nil || *got != 0.8 {
		t.Fatalf("expected 0.8, got %v err=%v", got, err)
	}
	got, err = a.AdjustedEfficiency(context.Background(), "ghost", nil)
	if err != nil || got != nil {
		t.Fatalf("nil raw should pass through without lookup, got %v err=%v", got, err)
	}
}

func TestAnalyzeBlockHistory_Scenario(t *testing.T) {
	tasks := []domain.Task{
		completedTask("a", "u1", 4, 10, 2,
			block(domain.BlockExternal, 3, "waiting for client"),
			block(domain.BlockExternal, 5, "waiting for client"),
		),
		completedTask("b", "u1", 2, 2, 1, block(domain.BlockDependency, 1, "blocked by API")),
	}
	ba := AnalyzeBlockHistory(tasks)
	if ba.TotalBlockIncidents != 3 || ba.TotalBlockedHours != 9 {
		t.Fatalf("unexpected totals: %+v", ba)
	}
	if ba.MostCommonBlockReason != "waiting for client" {
		t.Fatalf("unexpected reason: %q", ba.MostCommonBlockReason)
	}
	if ba.LongestBlock == nil || ba.LongestBlock.Duration != 5 || ba.LongestBlock.TaskTitle != "task a" {
		t.Fatalf("unexpected longest: %+v", ba.LongestBlock)
	}
	if ba.ByType[domain.BlockExternal].Count != 2 || ba.ByType[domain.BlockExternal].TotalHours != 8 {
		t.Fatalf("unexpected external stats: %+v", ba.ByType[domain.BlockExternal])
	}
	if ba.AvgBlockDuration != 3 {
		t.Fatalf("expected avg 3, got %v", ba.AvgBlockDuration)
	}
	if ba.MostCommonType() != domain.BlockExternal {
		t.Fatalf("expected external, got %s", ba.MostCommonType())
	}
}

func TestAnalyzeBlockHistory_TiesAndEmpty(t *testing.T) {
	ba := AnalyzeBlockHistory([]domain.Task{completedTask("a", "u1", 1, 1, 1)})
	if ba.TotalBlockIncidents != 0 || ba.AvgBlockDuration != 0 || ba.LongestBlock != nil {
		t.Fatalf("expected empty analysis, got %+v", ba)
	}
	if ba.MostCommonType() != domain.BlockNone {
		t.Fatalf("expected none, got %s", ba.MostCommonType())
	}
	ba = AnalyzeBlockHistory([]domain.Task{completedTask("a", "u1", 1, 9, 1,
		block(domain.BlockApproval, 2, "legal"),
		block(domain.BlockApproval, 2, "Legal"),
		block(domain.BlockInformation, 2, "legal "),
	)})
	if ba.MostCommonBlockReason != "legal" {
		t.Fatalf("exact-match tie should go to the first reason, got %q", ba.MostCommonBlockReason)
	}
	if ba.LongestBlock.Reason != "legal" {
		t.Fatalf("first episode should win a duration tie, got %q", ba.LongestBlock.Reason)
	}
}

func TestMalformedInputStaysFinite(t *testing.T) {
	bad := completedTask("a", "u1", math.NaN(), 2, 5, block(domain.BlockExternal, math.Inf(1), ""))
	bad.EffortMetrics.EstimatedSize = "XXL"
	th := ThroughputOf([]domain.Task{bad})
	for name, v := range map[string]float64{
		"est": th.TotalEstimatedHours, "act": th.TotalActualHours,
		"blk": th.TotalBlockedHours, "eff": th.TotalEffectiveHours,
		"impact": BlockImpact(th),
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%s is not finite: %v", name, v)
		}
	}
	if th.AvgEfficiency == nil || math.IsNaN(*th.AvgEfficiency) {
		t.Fatalf("efficiency should be defined, got %v", th.AvgEfficiency)
	}
	if c := ComplexityBreakdown([]domain.Task{bad}); c.Bucket(domain.SizeM).Count != 1 {
		t.Fatalf("unknown size should count as M: %+v", c)
	}
}

func TestQualityOf(t *testing.T) {
	a := completedTask("a", "u1", 1, 1, 1)
	a.Validated = true
	b := completedTask("b", "u1", 1, 1, 1)
	b.EffortMetrics.BlockedBy = domain.BlockApproval
	q := QualityOf([]domain.Task{a, b})
	if q.QualityScore == nil || *q.QualityScore != 0.5 || q.BlockedPercentage != 50 {
		t.Fatalf("unexpected quality: %+v", q)
	}
	q = QualityOf(nil)
	if q.QualityScore != nil || q.BlockedPercentage != 0 {
		t.Fatalf("expected nil score for no tasks, got %+v", q)
	}
}

func TestTrendOf(t *testing.T) {
	cases := []struct {
		cur, prev *float64
		want      TrendDirection
		ratio     float64
	}{
		{ptr(2), ptr(1), TrendIncreasing, 2},
		{ptr(1), ptr(2), TrendDecreasing, 0.5},
		{ptr(1.02), ptr(1), TrendStable, 1.02},
		{ptr(1), nil, TrendStable, 1},
		{nil, ptr(1), TrendStable, 1},
		{ptr(1), ptr(0), TrendStable, 1},
		// direction is decided before rounding
		{ptr(1.37), ptr(1.30), TrendIncreasing, 1.05},
		{ptr(1.0), ptr(1.055), TrendDecreasing, 0.95},
		{ptr(1.05), ptr(1), TrendStable, 1.05},
		{ptr(0.95), ptr(1), TrendStable, 0.95},
	}
	for i, c := range cases {
		got := TrendOf(c.cur, c.prev)
		if got.Direction != c.want || got.Ratio != c.ratio {
			t.Fatalf("case %d: got %+v", i, got)
		}
	}
}

func TestGenerateUserReport_TrendAgainstPreviousPeriod(t *testing.T) {
	prev := completedTask("old", "u1", 4, 4, 4)
	at := periodStart.Add(-72 * time.Hour)
	prev.CompletedAt = &at
	a := seeded(t, []domain.User{{ID: "u1", Name: "Ana"}}, nil,
		prev,
		completedTask("new", "u1", 4, 3, 2, block(domain.BlockExternal, 1, "vendor")),
	)
	rep, err := a.GenerateUserReport(context.Background(), "u1", periodStart, periodEnd)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Trend.Direction != TrendIncreasing || rep.Trend.Ratio != 2 {
		t.Fatalf("unexpected trend: %+v", rep.Trend)
	}
	if rep.BlockImpact != 33.33 {
		t.Fatalf("expected block impact 33.33, got %v", rep.BlockImpact)
	}
	if rep.Throughput.TasksCompleted != 1 {
		t.Fatalf("previous-period task leaked into the report: %+v", rep.Throughput)
	}
}

func TestProjectETA(t *testing.T) {
	open := domain.Task{ID: "open", EffortMetrics: domain.EffortMetrics{EstimatedHours: 20}}
	done := completedTask("done", "u1", 10, 6, 5, block(domain.BlockExternal, 1, "x"))
	period := ThroughputOf([]domain.Task{done})
	eta := ProjectETA([]domain.Task{open, done}, period, 7)
	if eta.RemainingHours != 20 {
		t.Fatalf("expected remaining 20, got %v", eta.RemainingHours)
	}
	if eta.PredictedBlockedHours != 3.33 {
		t.Fatalf("expected predicted blocked 3.33, got %v", eta.PredictedBlockedHours)
	}
	if eta.PredictedEffectiveHours != 10 {
		t.Fatalf("expected predicted effective 10, got %v", eta.PredictedEffectiveHours)
	}
	if eta.AvgWeeklyRate != 10 || eta.EstimatedWeeksRemaining == nil || *eta.EstimatedWeeksRemaining != 2 {
		t.Fatalf("unexpected rate: %+v", eta)
	}

	// rate uses every completed estimate, not only the window's
	at := periodStart.Add(-30 * 24 * time.Hour)
	earlier := domain.Task{ID: "earlier", Completed: true, CompletedAt: &at, EffortMetrics: domain.EffortMetrics{EstimatedHours: 40}}
	hist := ProjectETA([]domain.Task{earlier, open}, ThroughputOf(nil), 14)
	if hist.CompletedEstimatedHours != 40 || hist.AvgWeeklyRate != 20 {
		t.Fatalf("expected rate 40/2 weeks = 20: %+v", hist)
	}
	if hist.EstimatedWeeksRemaining == nil || *hist.EstimatedWeeksRemaining != 1 {
		t.Fatalf("expected one week remaining: %+v", hist)
	}

	idle := ProjectETA([]domain.Task{open}, ThroughputOf(nil), 14)
	if idle.EstimatedWeeksRemaining != nil || idle.PredictedEffectiveHours != 20 {
		t.Fatalf("no velocity should leave weeks nil and fall back to remaining: %+v", idle)
	}
}

func TestGenerateProjectReport_Recommendations(t *testing.T) {
	users := []domain.User{{ID: "u1", Name: "Ana"}, {ID: "u2", Name: "Ben"}}
	proj := domain.Project{ID: "p1", Name: "Apollo", Members: []domain.Member{{UserID: "u1", Role: "dev"}, {UserID: "u2", Role: "dev"}}}
	var tasks []domain.Task
	for i := 0; i < 11; i++ {
		tk := completedTask(string(rune('a'+i)), "u1", 4, 2, 1, block(domain.BlockExternal, 1, "vendor"))
		tk.ProjectID = "p1"
		tasks = append(tasks, tk)
	}
	clean := completedTask("z", "u2", 2, 2, 2)
	clean.ProjectID = "p1"
	tasks = append(tasks, clean)

	a := seeded(t, users, []domain.Project{proj}, tasks...)
	rep, err := a.GenerateProjectReport(context.Background(), "p1", periodStart, periodEnd)
	if err != nil {
		t.Fatalf("project report: %v", err)
	}
	if len(rep.Members) != 2 || rep.Members[0].User.Name != "Ana" {
		t.Fatalf("unexpected members: %+v", rep.Members)
	}
	if rep.Members[0].BlockImpact != 50 || rep.Members[0].MostCommonBlockType != domain.BlockExternal {
		t.Fatalf("unexpected member slice: %+v", rep.Members[0])
	}
	if rep.Members[1].MostCommonBlockType != domain.BlockNone {
		t.Fatalf("expected none for clean member: %+v", rep.Members[1])
	}
	// member alert, external incidents alert, congratulation (46/13 > 1)
	if len(rep.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %q", rep.Recommendations)
	}
	if _, err := a.GenerateProjectReport(context.Background(), "ghost", periodStart, periodEnd); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerateReport_Global(t *testing.T) {
	due := periodEnd.Add(-time.Hour)
	overdue := domain.Task{ID: "late", Assignees: []string{"u1"}, DueDate: &due, EffortMetrics: domain.NewEffortMetrics()}
	a := seeded(t, []domain.User{{ID: "u1", Name: "Ana"}}, []domain.Project{{ID: "p1", Name: "Apollo"}},
		completedTask("a", "u1", 4, 2, 2),
		overdue,
	)
	rep, err := a.GenerateReport(context.Background(), periodStart, periodEnd)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	g := rep.Global
	if g.TotalTasks != 2 || g.CompletedTasks != 1 || g.PendingTasks != 1 || g.OverdueTasks != 1 || g.CompletionRate != 50 {
		t.Fatalf("unexpected global metrics: %+v", g)
	}
	if len(rep.Users) != 1 || rep.Users[0].OverdueTasks != 1 || rep.Users[0].CompletionRate != 50 {
		t.Fatalf("unexpected user metrics: %+v", rep.Users)
	}
	if len(rep.Projects) != 1 || rep.Projects[0].TotalTasks != 0 {
		t.Fatalf("unexpected project metrics: %+v", rep.Projects)
	}
}
