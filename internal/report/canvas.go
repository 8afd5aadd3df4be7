/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package report

import (
	"bytes"

	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"
)

// canvas is the subset of pdf.Maroto the renderer draws with.
type canvas interface {
	Row(height float64, closure func())
	Col(width uint, closure func())
	Text(text string, prop ...props.Text)
	Line(spaceHeight float64, prop ...props.Line)
	SetBackgroundColor(c color.Color)
	AddPage()
	RegisterFooter(closure func())
	SetAliasNbPages(alias string)
	GetCurrentPage() int
	Output() (bytes.Buffer, error)
}

var _ canvas = (pdf.Maroto)(nil)

func newMaroto() canvas {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(15, 10, 15)
	return m
}

var (
	white     = color.NewWhite()
	lightGray = color.Color{Red: 240, Green: 240, Blue: 240}
	barGray   = color.Color{Red: 220, Green: 220, Blue: 220}
	navy      = color.Color{Red: 31, Green: 56, Blue: 100}
	green     = color.Color{Red: 76, Green: 175, Blue: 80}
	amber     = color.Color{Red: 255, Green: 193, Blue: 7}
	red       = color.Color{Red: 220, Green: 53, Blue: 69}
	slate     = color.Color{Red: 90, Green: 90, Blue: 90}
)
