/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
)

const (
	standardWeeklyHours = 40.0
	trendUpper          = 1.05
	trendLower          = 0.95
)

var experienceMultiplier = map[string]float64{
	"junior": 0.8,
	"mid":    1.0,
	"senior": 1.2,
	"lead":   1.3,
}

func ptr(v float64) *float64 { return &v }

// ratio returns num/den rounded, nil when den is not positive.
func ratio(num, den float64) *float64 {
	if den <= 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return nil
	}
	r := domain.Round2(num / den)
	return &r
}

// percent returns num/den*100 rounded, 0 when den is not positive.
func percent(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return domain.Round2(num / den * 100)
}

// TaskEfficiency is estimated over effective hours; nil without effective time.
func TaskEfficiency(t domain.Task) *float64 {
	e := t.EffortMetrics.Normalize()
	return ratio(e.EstimatedHours, e.EffectiveHours)
}

// Adjust scales a raw efficiency by availability (weeklyHours/40) and
// seniority. A nil efficiency passes through.
func Adjust(raw *float64, p *domain.EffortProfile) *float64 {
	if raw == nil {
		return nil
	}
	weekly := standardWeeklyHours
	level := ""
	if p != nil {
		if p.WeeklyHours > 0 && !math.IsInf(p.WeeklyHours, 0) {
			weekly = p.WeeklyHours
		}
		level = strings.ToLower(strings.TrimSpace(p.ExperienceLevel))
	}
	mult, ok := experienceMultiplier[level]
	if !ok {
		mult = 1.0
	}
	return ptr(domain.Round2(*raw * (weekly / standardWeeklyHours) * mult))
}

func summarize(t domain.Task) TaskSummary {
	e := t.EffortMetrics.Normalize()
	return TaskSummary{
		ID:             t.ID,
		Title:          t.Title,
		EstimatedSize:  e.EstimatedSize,
		EstimatedHours: domain.Round2(e.EstimatedHours),
		ActualHours:    domain.Round2(e.ActualHours),
		BlockedHours:   domain.Round2(e.BlockedHours()),
		EffectiveHours: domain.Round2(e.EffectiveHours),
		Efficiency:     ratio(e.EstimatedHours, e.EffectiveHours),
		CompletedAt:    t.CompletedAt,
	}
}

// ThroughputOf sums effort over an already selected task set.
func ThroughputOf(tasks []domain.Task) Throughput {
	out := Throughput{Tasks: make([]TaskSummary, 0, len(tasks))}
	var est, act, blk, eff float64
	for _, t := range tasks {
		e := t.EffortMetrics.Normalize()
		est += e.EstimatedHours
		act += e.ActualHours
		blk += e.BlockedHours()
		eff += e.EffectiveHours
		out.Tasks = append(out.Tasks, summarize(t))
	}
	out.TasksCompleted = len(tasks)
	out.TotalEstimatedHours = domain.Round2(est)
	out.TotalActualHours = domain.Round2(act)
	out.TotalBlockedHours = domain.Round2(blk)
	out.TotalEffectiveHours = domain.Round2(eff)
	out.AvgEfficiency = ratio(est, eff)
	out.Throughput = out.TotalEstimatedHours
	return out
}

// QualityOf scores a set of completed tasks.
func QualityOf(completed []domain.Task) Quality {
	q := Quality{CompletedTasks: len(completed)}
	for _, t := range completed {
		if t.Validated {
			q.ValidatedTasks++
		}
		if t.EffortMetrics.Normalize().IsBlocked() {
			q.BlockedTasks++
		}
	}
	q.QualityScore = ratio(float64(q.ValidatedTasks), float64(q.CompletedTasks))
	q.BlockedPercentage = percent(float64(q.BlockedTasks), float64(q.CompletedTasks))
	return q
}

func ComplexityBreakdown(tasks []domain.Task) Complexity {
	out := make(Complexity, len(domain.Sizes))
	idx := map[domain.Size]int{}
	for i, s := range domain.Sizes {
		out[i] = SizeBucket{Size: s}
		idx[s] = i
	}
	for _, t := range tasks {
		e := t.EffortMetrics.Normalize()
		b := &out[idx[e.EstimatedSize]]
		b.Count++
		b.EstimatedHours += e.EstimatedHours
		b.ActualHours += e.ActualHours
	}
	for i := range out {
		out[i].EstimatedHours = domain.Round2(out[i].EstimatedHours)
		out[i].ActualHours = domain.Round2(out[i].ActualHours)
	}
	return out
}

func AnalyzeBlockHistory(tasks []domain.Task) BlockAnalysis {
	out := BlockAnalysis{ByType: make(map[domain.BlockType]BlockTypeStats, len(domain.BlockTypes))}
	for _, bt := range domain.BlockTypes {
		out.ByType[bt] = BlockTypeStats{}
	}
	counts := map[string]int{}
	var order []string
	total := 0.0
	for _, t := range tasks {
		for _, ep := range t.EffortMetrics.Normalize().BlockHistory {
			out.TotalBlockIncidents++
			total += ep.Duration
			if s, ok := out.ByType[ep.BlockedBy]; ok {
				s.Count++
				s.TotalHours += ep.Duration
				out.ByType[ep.BlockedBy] = s
			}
			if out.LongestBlock == nil || ep.Duration > out.LongestBlock.Duration {
				out.LongestBlock = &LongestBlock{
					TaskID:       t.ID,
					TaskTitle:    t.Title,
					BlockedBy:    ep.BlockedBy,
					Reason:       ep.Reason,
					Duration:     ep.Duration,
					BlockedSince: ep.BlockedSince,
					BlockedUntil: ep.BlockedUntil,
				}
			}
			if strings.TrimSpace(ep.Reason) == "" {
				continue
			}
			if counts[ep.Reason] == 0 {
				order = append(order, ep.Reason)
			}
			counts[ep.Reason]++
		}
	}
	for bt, s := range out.ByType {
		s.TotalHours = domain.Round2(s.TotalHours)
		out.ByType[bt] = s
	}
	out.TotalBlockedHours = domain.Round2(total)
	if out.TotalBlockIncidents > 0 {
		out.AvgBlockDuration = domain.Round2(total / float64(out.TotalBlockIncidents))
	}
	if len(order) > 0 {
		sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
		out.MostCommonBlockReason = order[0]
	}
	return out
}

// TrendOf compares two efficiencies. Missing data on either side, or a
// zero previous value, reads as stable.
func TrendOf(current, previous *float64) Trend {
	tr := Trend{Current: current, Previous: previous, Ratio: 1, Direction: TrendStable}
	if current == nil || previous == nil || *previous == 0 {
		return tr
	}
	r := *current / *previous
	tr.Ratio = domain.Round2(r)
	switch {
	case r > trendUpper:
		tr.Direction = TrendIncreasing
	case r < trendLower:
		tr.Direction = TrendDecreasing
	}
	return tr
}

// previousPeriod is the equal-length window ending just before start.
func previousPeriod(start, end time.Time) (time.Time, time.Time) {
	return start.Add(-end.Sub(start)), start.Add(-time.Nanosecond)
}

// BlockImpact is blocked time as a percentage of logged time.
func BlockImpact(th Throughput) float64 {
	return percent(th.TotalBlockedHours, th.TotalActualHours)
}

func completedWithin(tasks []domain.Task, start, end time.Time) []domain.Task {
	var out []domain.Task
	for _, t := range tasks {
		if t.CompletedWithin(start, end) {
			out = append(out, t)
		}
	}
	return out
}

func assignedTo(tasks []domain.Task, userID string) []domain.Task {
	var out []domain.Task
	for _, t := range tasks {
		if t.AssignedTo(userID) {
			out = append(out, t)
		}
	}
	return out
}

// ProjectETA projects the remaining work of a project. all is every task of
// the project regardless of period; period is the window's team throughput
// and days the window length. The weekly rate is the completed estimate
// spread over the window's weeks.
func ProjectETA(all []domain.Task, period Throughput, days float64) ETA {
	var total, done float64
	for _, t := range all {
		e := t.EffortMetrics.Normalize()
		total += e.EstimatedHours
		if t.Completed {
			done += e.EstimatedHours
		}
	}
	remaining := total - done
	if remaining < 0 {
		remaining = 0
	}
	eta := ETA{
		TotalEstimatedHours:     domain.Round2(total),
		CompletedEstimatedHours: domain.Round2(done),
		RemainingHours:          domain.Round2(remaining),
	}
	if den := period.TotalBlockedHours + period.TotalEffectiveHours; den > 0 {
		eta.PredictedBlockedHours = domain.Round2(remaining * period.TotalBlockedHours / den)
	}
	eta.PredictedEffectiveHours = eta.RemainingHours
	if eff := period.AvgEfficiency; eff != nil && *eff > 0 {
		eta.PredictedEffectiveHours = domain.Round2(remaining / *eff)
	}
	weeks := math.Ceil(days / 7)
	if weeks < 1 {
		weeks = 1
	}
	eta.AvgWeeklyRate = domain.Round2(done / weeks)
	if eta.AvgWeeklyRate > 0 {
		eta.EstimatedWeeksRemaining = ptr(domain.Round2(remaining / eta.AvgWeeklyRate))
	}
	return eta
}
