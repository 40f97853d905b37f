// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package export renders the registry as PDF listings and XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"github.com/unilibre/proyectos/pkg/datamodel"
	"go.uber.org/zap"
)

// Page geometry in millimetres, landscape A4.
const (
	marginLeft   = 10.0
	marginRight  = 10.0
	marginTop    = 25.0
	marginBottom = 15.0
	bandHeight   = 20.0

	cellPadX     = 1.8
	cellPadY     = 1.4
	headerPadY   = 2.8
	bodyLineH    = 3.35
	headerLineH  = 3.6
	maxCellRunes = 200
)

type rgb struct{ r, g, b int }

var (
	colorBrand   = rgb{0xB7, 0x1C, 0x1C}
	colorGrid    = rgb{0xD1, 0xD5, 0xDB}
	colorStripe  = rgb{0xF8, 0xF9, 0xFA}
	colorWhite   = rgb{0xFF, 0xFF, 0xFF}
	colorMuted   = rgb{0x66, 0x66, 0x66}
	colorEmphase = rgb{0x1A, 0x4B, 0x8C}
	colorText    = rgb{0x00, 0x00, 0x00}
)

type pdfColumn struct {
	title string
	width float64
	align string
}

var pdfColumns = []pdfColumn{
	{"Proyecto/Artículo", 45, "L"},
	{"Programa", 25, "C"},
	{"Estudiante 1", 30, "L"},
	{"Estudiante 2", 30, "L"},
	{"Evaluadores", 40, "L"},
	{"Artículo/Monografía", 30, "C"},
}

// PDFOptions controls the listing layout.
type PDFOptions struct {
	// LogoPath is drawn in the header band when the file exists.
	LogoPath string
	// Now stamps the subtitle and footer. Zero means time.Now.
	Now time.Time
}

// PDFFilename is the attachment name for a listing generated at now.
func PDFFilename(now time.Time) string {
	return fmt.Sprintf("proyectos_academicos_%s.pdf", now.Format("20060102_1504"))
}

// PDFRow returns the six listing cells of r, already truncated.
func PDFRow(r datamodel.Record) []string {
	var evaluators []string
	for _, col := range []string{datamodel.ColumnEvaluator1, datamodel.ColumnEvaluator2, datamodel.ColumnEvaluator3} {
		if v := strings.TrimSpace(r.Lookup(col)); v != "" {
			evaluators = append(evaluators, v)
		}
	}
	cells := []string{
		r.Lookup(datamodel.ColumnProject),
		r.Lookup(datamodel.ColumnProgram),
		r.Lookup(datamodel.ColumnStudent1),
		r.Lookup(datamodel.ColumnStudent2),
		strings.Join(evaluators, ", "),
		r.Lookup(datamodel.ColumnArticleMonograph),
	}
	for i, c := range cells {
		cells[i] = truncate(strings.TrimSpace(c))
	}
	return cells
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxCellRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxCellRunes-3]) + "..."
}

type listing struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	stamp   string
	logo    *fpdf.ImageInfoType
	logoSrc string
	tableX  float64
}

// WritePDF renders records as the institutional project listing.
func WritePDF(w io.Writer, records []datamodel.Record, opts PDFOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.SetTitle("Listado de Proyectos Académicos - Universidad Libre", true)
	pdf.SetAuthor("Sistema de Gestion de Proyectos", true)
	pdf.SetCreationDate(now)
	pdf.AliasNbPages("")

	l := &listing{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		stamp: now.Format("02/01/2006 15:04"),
	}
	pageW, _ := pdf.GetPageSize()
	l.tableX = marginLeft + (pageW-marginLeft-marginRight-tableWidth())/2
	l.loadLogo(opts.LogoPath)

	pdf.SetHeaderFuncMode(l.header, true)
	pdf.SetFooterFunc(l.footer)
	pdf.AddPage()

	l.title(len(records))
	l.tableHeader()
	for i, r := range records {
		l.row(i, PDFRow(r))
	}
	l.summary(len(records))

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	return pdf.Output(w)
}

func tableWidth() float64 {
	total := 0.0
	for _, c := range pdfColumns {
		total += c.width
	}
	return total
}

func (l *listing) loadLogo(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		zap.S().Debugf("Logo %s not available: %v", path, err)
		return
	}
	info := l.pdf.RegisterImageOptions(path, fpdf.ImageOptions{ReadDpi: true})
	if !l.pdf.Ok() || info == nil {
		zap.S().Warnf("Could not load logo %s: %v", path, l.pdf.Error())
		l.pdf.ClearError()
		return
	}
	l.logo = info
	l.logoSrc = path
}

func (l *listing) setFill(c rgb) { l.pdf.SetFillColor(c.r, c.g, c.b) }
func (l *listing) setText(c rgb) { l.pdf.SetTextColor(c.r, c.g, c.b) }
func (l *listing) setDraw(c rgb) { l.pdf.SetDrawColor(c.r, c.g, c.b) }

func (l *listing) header() {
	pdf := l.pdf
	pageW, _ := pdf.GetPageSize()
	l.setFill(colorBrand)
	pdf.Rect(0, 0, pageW, bandHeight, "F")

	if l.logo != nil {
		iw, ih := l.logo.Width(), l.logo.Height()
		if iw > 0 && ih > 0 {
			scale := min(25/iw, 15/ih)
			pdf.ImageOptions(l.logoSrc, 10, 2, iw*scale, ih*scale, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
		}
	}

	l.setText(colorWhite)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(40, 10, l.tr("UNIVERSIDAD LIBRE"))
	pdf.SetFont("Helvetica", "", 9)
	pdf.Text(40, 15, l.tr("Sistema de Gestion de Proyectos Academicos"))
}

func (l *listing) footer() {
	pdf := l.pdf
	pageW, pageH := pdf.GetPageSize()
	y := pageH - 10
	pdf.SetFont("Helvetica", "", 7)
	l.setText(colorMuted)
	pdf.Text(15, y, l.tr("Generado: "+l.stamp))

	center := l.tr("Confidencial - Uso interno")
	pdf.Text((pageW-pdf.GetStringWidth(center))/2, y, center)

	pdf.SetFont("Helvetica", "", 8)
	l.setText(colorText)
	page := l.tr(fmt.Sprintf("Página %d de {nb}", pdf.PageNo()))
	pdf.Text(pageW-15-pdf.GetStringWidth(page), pageH-11, page)
}

func (l *listing) title(count int) {
	pdf := l.pdf
	pageW, _ := pdf.GetPageSize()
	usable := pageW - marginLeft - marginRight

	pdf.Ln(5)
	pdf.SetFont("Helvetica", "B", 16)
	l.setText(colorBrand)
	pdf.CellFormat(usable, 8, l.tr("LISTADO DE PROYECTOS ACADEMICOS"), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	l.setText(colorMuted)
	sub := fmt.Sprintf("Exportado el %s • %d registros encontrados", l.stamp, count)
	pdf.CellFormat(usable, 5, l.tr(sub), "", 1, "C", false, 0, "")
	pdf.Ln(4)
}

func (l *listing) bottom() float64 {
	_, pageH := l.pdf.GetPageSize()
	return pageH - marginBottom
}

func (l *listing) tableHeader() {
	pdf := l.pdf
	pdf.SetFont("Helvetica", "B", 9)

	lines := make([][][]byte, len(pdfColumns))
	maxLines := 1
	for i, c := range pdfColumns {
		lines[i] = pdf.SplitLines([]byte(l.tr(c.title)), c.width-2*cellPadX)
		maxLines = max(maxLines, len(lines[i]))
	}
	h := float64(maxLines)*headerLineH + 2*headerPadY

	y := pdf.GetY()
	x := l.tableX
	l.setFill(colorBrand)
	l.setDraw(colorGrid)
	l.setText(colorWhite)
	pdf.SetLineWidth(0.18)
	for i, c := range pdfColumns {
		pdf.Rect(x, y, c.width, h, "FD")
		// vertically centred
		ty := y + (h-float64(len(lines[i]))*headerLineH)/2
		for _, line := range lines[i] {
			pdf.SetXY(x+cellPadX, ty)
			pdf.CellFormat(c.width-2*cellPadX, headerLineH, string(line), "", 0, "C", false, 0, "")
			ty += headerLineH
		}
		x += c.width
	}
	pdf.SetXY(marginLeft, y+h)
}

func (l *listing) row(index int, cells []string) {
	pdf := l.pdf

	lines := make([][][]byte, len(pdfColumns))
	maxLines := 1
	for i, c := range pdfColumns {
		l.cellFont(i)
		lines[i] = pdf.SplitLines([]byte(l.tr(cells[i])), c.width-2*cellPadX)
		maxLines = max(maxLines, len(lines[i]))
	}
	h := float64(maxLines)*bodyLineH + 2*cellPadY

	if pdf.GetY()+h > l.bottom() {
		pdf.AddPage()
		l.tableHeader()
	}

	fill := colorStripe
	if index%2 == 1 {
		fill = colorWhite
	}
	y := pdf.GetY()
	x := l.tableX
	l.setDraw(colorGrid)
	for i, c := range pdfColumns {
		l.setFill(fill)
		pdf.Rect(x, y, c.width, h, "FD")
		l.cellFont(i)
		ty := y + cellPadY
		for _, line := range lines[i] {
			pdf.SetXY(x+cellPadX, ty)
			pdf.CellFormat(c.width-2*cellPadX, bodyLineH, string(line), "", 0, c.align, false, 0, "")
			ty += bodyLineH
		}
		x += c.width
	}
	pdf.SetXY(marginLeft, y+h)
}

func (l *listing) cellFont(column int) {
	if column == 0 {
		l.pdf.SetFont("Helvetica", "B", 8)
		l.setText(colorEmphase)
		return
	}
	l.pdf.SetFont("Helvetica", "", 8)
	l.setText(colorText)
}

func (l *listing) summary(count int) {
	pdf := l.pdf
	pageW, _ := pdf.GetPageSize()
	if pdf.GetY()+10 > l.bottom() {
		pdf.AddPage()
	}
	pdf.Ln(4)
	l.setText(colorMuted)
	label := l.tr("Resumen:")
	rest := l.tr(fmt.Sprintf(" Se exportaron %d proyectos académicos con información básica.", count))

	pdf.SetFont("Helvetica", "B", 8)
	labelW := pdf.GetStringWidth(label)
	pdf.SetFont("Helvetica", "", 8)
	restW := pdf.GetStringWidth(rest)

	pdf.SetX((pageW - labelW - restW) / 2)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(labelW, 4, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(restW, 4, rest, "", 1, "L", false, 0, "")
}
