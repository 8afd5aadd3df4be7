/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package report

import (
	"strings"
	"unicode/utf8"
)

// Layout is the fixed space-estimation table (millimetres) used to decide
// page breaks. It is a heuristic, not a typesetter: every row the renderer
// draws has one of these heights.
type Layout struct {
	PageHeight   float64 // usable height per page, footer excluded
	Title        float64
	Subtitle     float64
	SectionTitle float64
	MetricBox    float64 // one row of the metric box grid
	MetricRow    float64
	ProgressBar  float64
	TableRow     float64
	TextLine     float64
	Spacer       float64
	CharsPerLine int // wrap estimate for narrative text
}

func DefaultLayout() Layout {
	return Layout{
		PageHeight:   250,
		Title:        12,
		Subtitle:     7,
		SectionTitle: 10,
		MetricBox:    18,
		MetricRow:    7,
		ProgressBar:  5,
		TableRow:     6,
		TextLine:     5,
		Spacer:       4,
		CharsPerLine: 90,
	}
}

// wrap breaks s on spaces into lines of at most CharsPerLine characters;
// words longer than a line are split. Explicit newlines start a new line.
func (l Layout) wrap(s string) []string {
	width := l.CharsPerLine
	if width <= 0 {
		return []string{s}
	}
	var out []string
	for _, para := range strings.Split(s, "\n") {
		line, n := "", 0
		for _, w := range strings.Fields(para) {
			for utf8.RuneCountInString(w) > width {
				if line != "" {
					out = append(out, line)
					line, n = "", 0
				}
				r := []rune(w)
				out = append(out, string(r[:width]))
				w = string(r[width:])
			}
			wn := utf8.RuneCountInString(w)
			switch {
			case wn == 0:
			case line == "":
				line, n = w, wn
			case n+1+wn <= width:
				line, n = line+" "+w, n+1+wn
			default:
				out = append(out, line)
				line, n = w, wn
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// lines estimates how many wrapped lines s occupies.
func (l Layout) lines(s string) int { return len(l.wrap(s)) }

func (l Layout) textHeight(s string) float64 { return float64(l.lines(s)) * l.TextLine }

// paginator tracks the vertical space consumed on the current page and
// breaks to a new page when the next block does not fit.
type paginator struct {
	c      canvas
	height float64
	used   float64
	pages  int
}

func newPaginator(c canvas, height float64) *paginator {
	return &paginator{c: c, height: height, pages: 1}
}

// keep moves to a new page unless a block of height h fits on this one.
// A block taller than a page starts on a fresh page and then flows.
func (p *paginator) keep(h float64) {
	if p.used > 0 && p.used+h > p.height {
		p.c.AddPage()
		p.pages++
		p.used = 0
	}
}

// row draws one row, breaking first if it does not fit.
func (p *paginator) row(h float64, fn func()) {
	p.keep(h)
	p.c.Row(h, fn)
	p.used += h
}
