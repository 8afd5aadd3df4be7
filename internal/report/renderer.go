/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/HamedShams/effort-pulse/internal/metrics"
	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/props"
	"github.com/rs/zerolog"
)

const pageAlias = "{nb}"

// Document describes one rendered report file.
type Document struct {
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Pages        int       `json:"pages"`
	FooterStamps int       `json:"-"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

type Renderer struct {
	dir    string
	title  string
	layout Layout
	log    zerolog.Logger

	newCanvas func() canvas
	now       func() time.Time
}

func NewRenderer(dir, title string, log zerolog.Logger) *Renderer {
	if title == "" {
		title = "Team Effort Report"
	}
	return &Renderer{dir: dir, title: title, layout: DefaultLayout(), log: log, newCanvas: newMaroto, now: time.Now}
}

// Filename is the report name for t: sortable, millisecond resolution.
func Filename(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("effort-report-%s-%03d.pdf", t.Format("20060102-150405"), t.Nanosecond()/int(time.Millisecond))
}

// Render lays out rep and writes one PDF into the report directory.
func (r *Renderer) Render(rep *metrics.Report) (*Document, error) {
	if rep == nil {
		return nil, &domain.RenderError{Stage: "input", Err: fmt.Errorf("nil report")}
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, &domain.RenderError{Stage: "mkdir", Err: err}
	}
	c := r.newCanvas()
	d := &drawer{c: c, l: r.layout, p: newPaginator(c, r.layout.PageHeight)}

	// maroto runs the footer once at registration to measure it; only
	// calls after that close a page.
	stamps, armed := 0, false
	c.SetAliasNbPages(pageAlias)
	c.RegisterFooter(func() {
		if armed {
			stamps++
		}
		page := c.GetCurrentPage() + 1
		c.Row(8, func() {
			c.Col(12, func() {
				c.Text(fmt.Sprintf("Page %d of %s", page, pageAlias), props.Text{Size: 8, Align: consts.Right, Top: 3, Color: slate})
			})
		})
	})
	armed = true

	d.header(r.title, rep)
	d.executiveSummary(rep.ExecutiveSummary)
	d.global(rep.Global)
	d.blocks(rep.BlockAnalysis)
	for _, u := range rep.Users {
		d.user(u)
	}
	for _, p := range rep.Projects {
		d.project(p)
	}

	buf, err := c.Output()
	if err != nil {
		return nil, &domain.RenderError{Stage: "output", Err: err}
	}
	pages := c.GetCurrentPage() + 1
	if pages != d.p.pages {
		r.log.Debug().Int("canvas", pages).Int("planned", d.p.pages).Msg("report: canvas broke pages on its own")
	}
	at := r.now()
	name := Filename(at)
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, &domain.RenderError{Stage: "write", Err: err}
	}
	doc := &Document{
		Filename:     name,
		Path:         path,
		Size:         int64(buf.Len()),
		Pages:        pages,
		FooterStamps: stamps,
		GeneratedAt:  at.UTC(),
	}
	if doc.Pages != doc.FooterStamps {
		r.log.Warn().Int("pages", doc.Pages).Int("footers", doc.FooterStamps).Msg("report: page/footer mismatch")
	}
	r.log.Info().Str("file", name).Int("pages", doc.Pages).Int64("bytes", doc.Size).Msg("report rendered")
	return doc, nil
}

type drawer struct {
	c canvas
	l Layout
	p *paginator
}

func (d *drawer) text(h float64, s string, p props.Text) {
	d.p.row(h, func() { d.c.Col(12, func() { d.c.Text(s, p) }) })
}

// paragraph wraps s and draws one row per line so long text flows across pages.
func (d *drawer) paragraph(s string, p props.Text) {
	for _, line := range d.l.wrap(s) {
		d.text(d.l.TextLine, line, p)
	}
}

func (d *drawer) section(title string) {
	d.p.row(d.l.SectionTitle, func() {
		d.c.Col(12, func() {
			d.c.Text(title, props.Text{Top: 4, Size: 13, Style: consts.Bold, Color: navy})
		})
	})
}

func (d *drawer) spacer() { d.p.row(d.l.Spacer, func() {}) }

func (d *drawer) header(title string, rep *metrics.Report) {
	d.text(d.l.Title, title, props.Text{Top: 3, Size: 18, Style: consts.Bold, Align: consts.Center, Color: navy})
	period := fmt.Sprintf("%s to %s", rep.Period.Start.Format("2006-01-02"), rep.Period.End.Format("2006-01-02"))
	d.text(d.l.Subtitle, period, props.Text{Top: 1, Size: 11, Align: consts.Center})
	d.text(d.l.Subtitle, "Generated "+rep.GeneratedAt.Format("2006-01-02 15:04 MST"), props.Text{Top: 1, Size: 9, Align: consts.Center, Color: slate})
	d.spacer()
}

func (d *drawer) executiveSummary(s string) {
	if s == "" {
		return
	}
	d.p.keep(d.l.SectionTitle + math.Min(d.l.textHeight(s), 3*d.l.TextLine))
	d.section("Executive summary")
	d.paragraph(s, props.Text{Size: 10})
	d.spacer()
}

type box struct {
	label string
	value string
}

// boxes draws a grid of labeled cards, four per row.
func (d *drawer) boxes(items []box) {
	for i := 0; i < len(items); i += 4 {
		end := i + 4
		if end > len(items) {
			end = len(items)
		}
		row := items[i:end]
		d.p.row(d.l.MetricBox, func() {
			for _, b := range row {
				b := b
				d.c.SetBackgroundColor(lightGray)
				d.c.Col(3, func() {
					d.c.Text(b.value, props.Text{Top: 3, Size: 14, Style: consts.Bold, Align: consts.Center, Color: navy})
					d.c.Text(b.label, props.Text{Top: 11, Size: 8, Align: consts.Center, Color: slate})
				})
			}
			d.c.SetBackgroundColor(white)
		})
	}
}

// metricRow draws label/value pairs side by side.
func (d *drawer) metricRow(items []box) {
	if len(items) == 0 {
		return
	}
	w := uint(12 / len(items))
	d.p.row(d.l.MetricRow, func() {
		for _, b := range items {
			b := b
			d.c.Col(w, func() {
				d.c.Text(b.label+": "+b.value, props.Text{Top: 1, Size: 9})
			})
		}
	})
}

// progress draws a 12-column bar filled to pct percent.
func (d *drawer) progress(label string, pct float64) {
	d.text(d.l.TextLine, fmt.Sprintf("%s: %.1f%%", label, pct), props.Text{Size: 8, Color: slate})
	filled := uint(math.Round(clamp(pct, 0, 100) / 100 * 12))
	fill := barColor(pct)
	d.p.row(d.l.ProgressBar, func() {
		if filled > 0 {
			d.c.SetBackgroundColor(fill)
			d.c.Col(filled, func() {})
		}
		if filled < 12 {
			d.c.SetBackgroundColor(barGray)
			d.c.Col(12-filled, func() {})
		}
		d.c.SetBackgroundColor(white)
	})
}

func barColor(pct float64) color.Color {
	switch {
	case pct >= 70:
		return green
	case pct >= 50:
		return amber
	}
	return red
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func fmtHours(v float64) string { return fmt.Sprintf("%.1fh", v) }

func fmtRatio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func (d *drawer) global(g metrics.GlobalMetrics) {
	d.p.keep(d.l.SectionTitle + 2*d.l.MetricBox + d.l.TextLine + d.l.ProgressBar)
	d.section("Overview")
	d.boxes([]box{
		{"Total tasks", fmt.Sprint(g.TotalTasks)},
		{"Completed", fmt.Sprint(g.CompletedTasks)},
		{"Pending", fmt.Sprint(g.PendingTasks)},
		{"Overdue", fmt.Sprint(g.OverdueTasks)},
		{"Done this period", fmt.Sprint(g.CompletedInPeriod)},
		{"Estimated", fmtHours(g.TotalEstimatedHours)},
		{"Effective", fmtHours(g.TotalEffectiveHours)},
		{"Efficiency", fmtRatio(g.AvgEfficiency)},
	})
	d.progress("Completion rate", g.CompletionRate)
	d.spacer()
}

func (d *drawer) blocks(b metrics.BlockAnalysis) {
	d.p.keep(d.l.SectionTitle + float64(len(domain.BlockTypes)+2)*d.l.TableRow)
	d.section("Block analysis")
	d.p.row(d.l.TableRow, func() {
		for _, h := range []string{"Type", "Incidents", "Hours"} {
			h := h
			d.c.Col(4, func() { d.c.Text(h, props.Text{Size: 9, Style: consts.Bold}) })
		}
	})
	for _, bt := range domain.BlockTypes {
		s := b.ByType[bt]
		cells := []string{string(bt), fmt.Sprint(s.Count), fmtHours(s.TotalHours)}
		d.p.row(d.l.TableRow, func() {
			for _, v := range cells {
				v := v
				d.c.Col(4, func() { d.c.Text(v, props.Text{Size: 9}) })
			}
		})
	}
	d.metricRow([]box{
		{"Incidents", fmt.Sprint(b.TotalBlockIncidents)},
		{"Blocked", fmtHours(b.TotalBlockedHours)},
		{"Average", fmtHours(b.AvgBlockDuration)},
	})
	if lb := b.LongestBlock; lb != nil {
		d.paragraph(fmt.Sprintf("Longest block: %s on %q (%s, %s)", fmtHours(lb.Duration), lb.TaskTitle, lb.BlockedBy, lb.Reason), props.Text{Size: 9})
	}
	if b.MostCommonBlockReason != "" {
		d.paragraph("Most common reason: "+b.MostCommonBlockReason, props.Text{Size: 9})
	}
	d.spacer()
}

func (d *drawer) user(u metrics.UserMetrics) {
	ev := Evaluate(u)
	h := d.l.SectionTitle + 2*d.l.MetricRow + d.l.TextLine + d.l.ProgressBar
	for _, s := range ev.Summary {
		h += d.l.textHeight(s)
	}
	for _, s := range ev.Recommendations {
		h += d.l.textHeight(s)
	}
	d.p.keep(math.Min(h, d.l.PageHeight))

	name := u.User.Name
	if name == "" {
		name = u.User.ID
	}
	d.section(name)
	d.metricRow([]box{
		{"Assigned", fmt.Sprint(u.AssignedTasks)},
		{"Completed", fmt.Sprint(u.CompletedTasks)},
		{"Overdue", fmt.Sprint(u.OverdueTasks)},
		{"Throughput", fmtHours(u.Throughput)},
	})
	d.metricRow([]box{
		{"Efficiency", fmtRatio(u.Efficiency)},
		{"Adjusted", fmtRatio(u.AdjustedEfficiency)},
		{"Block impact", fmt.Sprintf("%.1f%%", u.BlockImpact)},
		{"Trend", string(u.Trend.Direction)},
	})
	d.progress("Completion rate", u.CompletionRate)
	for _, s := range ev.Summary {
		d.paragraph(s, props.Text{Size: 9})
	}
	for _, s := range ev.Recommendations {
		d.paragraph("- "+s, props.Text{Size: 9, Style: consts.Italic})
	}
	d.spacer()
}

func (d *drawer) project(p metrics.ProjectReport) {
	d.p.keep(d.l.SectionTitle + 3*d.l.MetricRow)
	d.section("Project: " + p.Name)
	d.metricRow([]box{
		{"Tasks", fmt.Sprint(p.TotalTasks)},
		{"Open", fmt.Sprint(p.OpenTasks)},
		{"Done this period", fmt.Sprint(p.Throughput.TasksCompleted)},
		{"Efficiency", fmtRatio(p.Throughput.AvgEfficiency)},
	})
	weeks := "n/a"
	if p.ETA.EstimatedWeeksRemaining != nil {
		weeks = fmt.Sprintf("%.1f", *p.ETA.EstimatedWeeksRemaining)
	}
	d.metricRow([]box{
		{"Remaining", fmtHours(p.ETA.RemainingHours)},
		{"Pred. blocked", fmtHours(p.ETA.PredictedBlockedHours)},
		{"Pred. effective", fmtHours(p.ETA.PredictedEffectiveHours)},
		{"Weeks left", weeks},
	})
	d.metricRow([]box{
		{"Block impact", fmt.Sprintf("%.1f%%", p.BlockImpact)},
		{"Weekly rate", fmtHours(p.ETA.AvgWeeklyRate)},
	})
	for _, m := range p.Members {
		name := m.User.Name
		if name == "" {
			name = m.User.ID
		}
		d.paragraph(fmt.Sprintf("%s: %d done, %s delivered, %.1f%% blocked (mostly %s)",
			name, m.TasksCompleted, fmtHours(m.Throughput), m.BlockImpact, m.MostCommonBlockType), props.Text{Size: 9})
	}
	for _, s := range p.Recommendations {
		d.paragraph("- "+s, props.Text{Size: 9, Style: consts.Italic})
	}
	d.spacer()
}
