/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package report

import (
	"fmt"

	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/HamedShams/effort-pulse/internal/metrics"
)

// Evaluation is the per-user conclusion block printed under their metrics.
type Evaluation struct {
	Summary         []string
	Recommendations []string
}

// Evaluate applies fixed threshold rules to one user's metrics.
func Evaluate(u metrics.UserMetrics) Evaluation {
	var ev Evaluation
	rate := u.CompletionRate
	switch {
	case u.AssignedTasks == 0:
		ev.Summary = append(ev.Summary, "No tasks are assigned, so no delivery can be evaluated.")
	case rate >= 90:
		ev.Summary = append(ev.Summary, fmt.Sprintf("Excellent delivery: %.0f%% of assigned tasks are completed.", rate))
	case rate >= 70:
		ev.Summary = append(ev.Summary, fmt.Sprintf("Good delivery: %.0f%% of assigned tasks are completed.", rate))
	case rate >= 50:
		ev.Summary = append(ev.Summary, fmt.Sprintf("Satisfactory delivery: %.0f%% of assigned tasks are completed, with room to improve.", rate))
	default:
		ev.Summary = append(ev.Summary, fmt.Sprintf("Delivery needs attention: only %.0f%% of assigned tasks are completed.", rate))
		ev.Recommendations = append(ev.Recommendations, "Review workload and priorities with the team lead.")
	}

	switch {
	case u.OverdueTasks > 5:
		ev.Summary = append(ev.Summary, fmt.Sprintf("%d tasks are overdue.", u.OverdueTasks))
		ev.Recommendations = append(ev.Recommendations, "Escalate the overdue backlog to the project lead and agree new due dates this week.")
	case u.OverdueTasks > 2:
		ev.Summary = append(ev.Summary, fmt.Sprintf("%d tasks are overdue.", u.OverdueTasks))
		ev.Recommendations = append(ev.Recommendations, "Re-plan overdue tasks before taking new work.")
	}

	if u.BlockImpact > 20 {
		what := "blockers"
		if u.MostCommonBlockType != domain.BlockNone && u.MostCommonBlockType != "" {
			what = string(u.MostCommonBlockType) + " blockers"
		}
		ev.Summary = append(ev.Summary, fmt.Sprintf("%.1f%% of logged time was lost to %s.", u.BlockImpact, what))
		ev.Recommendations = append(ev.Recommendations, fmt.Sprintf("Raise recurring %s earlier and track them on the board.", what))
	}

	if eff := u.Efficiency; eff != nil {
		switch {
		case *eff >= 1.2:
			ev.Summary = append(ev.Summary, fmt.Sprintf("Work is finished ahead of estimates (efficiency %.2f).", *eff))
		case *eff < 0.8:
			ev.Summary = append(ev.Summary, fmt.Sprintf("Work takes longer than estimated (efficiency %.2f).", *eff))
			ev.Recommendations = append(ev.Recommendations, "Split large tasks and revisit estimates during planning.")
		}
	}
	if u.Trend.Direction == metrics.TrendDecreasing {
		ev.Recommendations = append(ev.Recommendations, "Efficiency dropped compared with the previous period; check for new blockers or scope changes.")
	}
	return ev
}
