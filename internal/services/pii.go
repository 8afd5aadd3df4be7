/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/HamedShams/effort-pulse/internal/metrics"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+`)
	phoneRe = regexp.MustCompile(`\b\+?\d[\d\-\s]{7,}\b`)
	urlRe   = regexp.MustCompile(`https?://[^\s]+`)
	tokenRe = regexp.MustCompile(`(?i)\b(?:token|secret|password|apikey|api_key|bearer)[:=\s]+[A-Za-z0-9\-\._~+/]{8,}\b`)
)

// redactor aliases people and scrubs free text before a report leaves the
// process for the summarizer.
type redactor struct {
	alias map[string]string
	names []*regexp.Regexp
	to    []string
}

func newRedactor(rep *metrics.Report) *redactor {
	r := &redactor{alias: map[string]string{}}
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, ok := r.alias[name]; !ok {
			r.alias[name] = fmt.Sprintf("user%02d", len(r.alias)+1)
		}
	}
	for _, u := range rep.Users {
		add(u.User.Name)
	}
	for _, p := range rep.Projects {
		for _, m := range p.Members {
			add(m.User.Name)
		}
	}
	// longest names first so "Ann Lee" is replaced before "Ann"
	names := make([]string, 0, len(r.alias))
	for n := range r.alias {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, n := range names {
		r.names = append(r.names, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(n)+`\b`))
		r.to = append(r.to, r.alias[n])
	}
	return r
}

func (r *redactor) name(n string) string {
	if a, ok := r.alias[strings.TrimSpace(n)]; ok {
		return a
	}
	return "member"
}

func (r *redactor) scrub(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = emailRe.ReplaceAllString(s, "<email>")
	s = phoneRe.ReplaceAllString(s, "<phone>")
	s = urlRe.ReplaceAllString(s, "<url>")
	s = tokenRe.ReplaceAllString(s, "<secret>")
	for i, re := range r.names {
		s = re.ReplaceAllString(s, r.to[i])
	}
	return s
}

// redactReport builds the summarizer payload: numbers are kept, people are
// aliased, free text is scrubbed, ids and emails are dropped.
func redactReport(rep *metrics.Report) map[string]any {
	r := newRedactor(rep)
	users := make([]map[string]any, 0, len(rep.Users))
	for _, u := range rep.Users {
		users = append(users, map[string]any{
			"user":               r.name(u.User.Name),
			"assigned":           u.AssignedTasks,
			"completed":          u.CompletedTasks,
			"completedInPeriod":  u.CompletedInPeriod,
			"overdue":            u.OverdueTasks,
			"completionRate":     u.CompletionRate,
			"throughputHours":    u.Throughput,
			"efficiency":         u.Efficiency,
			"adjustedEfficiency": u.AdjustedEfficiency,
			"blockImpactPct":     u.BlockImpact,
			"mostCommonBlock":    u.MostCommonBlockType,
			"trend":              u.Trend.Direction,
		})
	}
	projects := make([]map[string]any, 0, len(rep.Projects))
	for _, p := range rep.Projects {
		recs := make([]string, 0, len(p.Recommendations))
		for _, s := range p.Recommendations {
			recs = append(recs, r.scrub(s))
		}
		projects = append(projects, map[string]any{
			"project":         r.scrub(p.Name),
			"totalTasks":      p.TotalTasks,
			"openTasks":       p.OpenTasks,
			"efficiency":      p.Throughput.AvgEfficiency,
			"blockImpactPct":  p.BlockImpact,
			"eta":             p.ETA,
			"recommendations": recs,
		})
	}
	blocks := map[string]any{
		"incidents":    rep.BlockAnalysis.TotalBlockIncidents,
		"blockedHours": rep.BlockAnalysis.TotalBlockedHours,
		"avgHours":     rep.BlockAnalysis.AvgBlockDuration,
		"byType":       rep.BlockAnalysis.ByType,
		"commonReason": r.scrub(rep.BlockAnalysis.MostCommonBlockReason),
	}
	if lb := rep.BlockAnalysis.LongestBlock; lb != nil {
		blocks["longest"] = map[string]any{"hours": lb.Duration, "type": lb.BlockedBy, "reason": r.scrub(lb.Reason)}
	}
	return map[string]any{
		"period":   map[string]string{"start": rep.Period.Start.Format("2006-01-02"), "end": rep.Period.End.Format("2006-01-02")},
		"global":   rep.Global,
		"blocks":   blocks,
		"users":    users,
		"projects": projects,
	}
}
