/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"bytes"
	"html/template"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
)

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"day": func(t time.Time) string { return t.Format("2006-01-02") },
}).Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#1f2937">
<h2 style="color:#1e40af">{{.Title}}</h2>
<p>Period: <b>{{day .S.Period.Start}}</b> to <b>{{day .S.Period.End}}</b></p>
<table cellpadding="6" style="border-collapse:collapse">
<tr><td>Tasks completed in period</td><td><b>{{.S.Global.CompletedInPeriod}}</b></td></tr>
<tr><td>Pending tasks</td><td><b>{{.S.Global.PendingTasks}}</b></td></tr>
<tr><td>Overdue tasks</td><td><b>{{.S.Global.OverdueTasks}}</b></td></tr>
<tr><td>Completion rate</td><td><b>{{printf "%.1f" .S.Global.CompletionRate}}%</b></td></tr>
<tr><td>Block impact</td><td><b>{{printf "%.1f" .S.Global.BlockImpact}}%</b></td></tr>
<tr><td>Block incidents</td><td><b>{{.S.BlockIncidents}}</b></td></tr>
</table>
{{if .S.ExecutiveSummary}}<h3>Summary</h3><p style="white-space:pre-line">{{.S.ExecutiveSummary}}</p>{{end}}
<p>The full report is attached ({{.File}}).</p>
</body></html>`))

var reminderTmpl = template.Must(template.New("reminder").Funcs(template.FuncMap{
	"due": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
}).Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#1f2937">
<p>Hi {{.Name}},</p>
<p>These tasks are due soon:</p>
<ul>{{range .Tasks}}<li><b>{{.Title}}</b> due {{due .DueDate}}</li>{{end}}</ul>
</body></html>`))

func reportEmailBody(title string, gen *GenerateResult) (string, error) {
	var buf bytes.Buffer
	file := ""
	if gen.File != nil {
		file = gen.File.Filename
	}
	err := reportTmpl.Execute(&buf, struct {
		Title string
		S     ReportSummary
		File  string
	}{title, gen.Summary, file})
	return buf.String(), err
}

func reminderEmailBody(name string, tasks []domain.Task) (string, error) {
	var buf bytes.Buffer
	err := reminderTmpl.Execute(&buf, struct {
		Name  string
		Tasks []domain.Task
	}{name, tasks})
	return buf.String(), err
}
