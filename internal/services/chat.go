/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"strings"
)

const helpText = `Commands:
/report 7d  - effort summary for the last 7 days
/report 30d - effort summary for the last 30 days
/status     - report schedule and job state`

// SendHelp replies with the supported chat commands.
func (s *Service) SendHelp(ctx context.Context, chatID int64) error {
	if s.tg == nil {
		return nil
	}
	return s.tg.SendMessagePlain(ctx, chatID, helpText)
}

// RunOnDemandReport generates a report for the last days days and replies
// with a short text summary; the PDF stays in the archive.
func (s *Service) RunOnDemandReport(ctx context.Context, chatID int64, days int) error {
	if s.tg == nil {
		return nil
	}
	start, end := s.Period(days)
	gen, err := s.GenerateReport(ctx, start, end)
	if err != nil {
		s.log.Warn().Err(err).Int64("chat", chatID).Msg("on-demand report failed")
		msg := "Report failed: " + err.Error()
		if IsBusy(err) {
			msg = "A report is already being generated, try again in a minute."
		}
		return s.tg.SendMessagePlain(ctx, chatID, msg)
	}
	return s.tg.SendMessagePlain(ctx, chatID, chatSummary(gen))
}

// SendStatus replies with the schedule status.
func (s *Service) SendStatus(ctx context.Context, chatID int64) error {
	if s.tg == nil {
		return nil
	}
	st := s.ScheduleStatus()
	var b strings.Builder
	fmt.Fprintf(&b, "Schedule: %s (%s)\n", st.Schedule, st.Timezone)
	if st.NextRun != nil {
		fmt.Fprintf(&b, "Next run: %s\n", st.NextRun.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "Recipients: %d\n", len(st.Recipients))
	if st.Running {
		fmt.Fprintf(&b, "Running: %s since %s", st.RunningKind, st.RunningSince.Format("15:04:05"))
	} else {
		b.WriteString("Idle")
	}
	return s.tg.SendMessagePlain(ctx, chatID, b.String())
}

func chatSummary(gen *GenerateResult) string {
	g := gen.Summary.Global
	var b strings.Builder
	fmt.Fprintf(&b, "Effort summary %s to %s\n",
		gen.Summary.Period.Start.Format("2006-01-02"), gen.Summary.Period.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "Completed in period: %d\n", g.CompletedInPeriod)
	fmt.Fprintf(&b, "Pending: %d (overdue %d)\n", g.PendingTasks, g.OverdueTasks)
	fmt.Fprintf(&b, "Completion rate: %.1f%%\n", g.CompletionRate)
	fmt.Fprintf(&b, "Block impact: %.1f%% over %d incidents\n", g.BlockImpact, gen.Summary.BlockIncidents)
	if gen.Summary.ExecutiveSummary != "" {
		b.WriteString("\n" + gen.Summary.ExecutiveSummary + "\n")
	}
	if gen.File != nil {
		fmt.Fprintf(&b, "\nPDF: %s", gen.File.Filename)
	}
	return b.String()
}
