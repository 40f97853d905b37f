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

package export

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ExcelSheet is the name of the only sheet in exported workbooks.
const ExcelSheet = "Proyectos_Academicos"

// OriginColumn is appended to the headers and carries the source label.
const OriginColumn = "Hoja Origen"

const maxColumnWidth = 50

// ExcelFilename is the attachment name for a workbook generated at now.
func ExcelFilename(now time.Time) string {
	return fmt.Sprintf("base_datos_proyectos_%s.xlsx", now.Format("20060102_1504"))
}

// ExcelRows shapes rows to the header width and appends label to each.
func ExcelRows(headers []string, rows [][]string, label string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		full := make([]string, len(headers)+1)
		copy(full, row[:min(len(row), len(headers))])
		full[len(headers)] = label
		out = append(out, full)
	}
	return out
}

// WriteExcel writes the table as a single-sheet workbook.
func WriteExcel(w io.Writer, headers []string, rows [][]string, label string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExcelSheet); err != nil {
		return err
	}

	columns := append(append([]string{}, headers...), OriginColumn)
	widths := make([]int, len(columns))
	if err := writeExcelRow(f, 1, columns, widths); err != nil {
		return err
	}
	for i, row := range ExcelRows(headers, rows, label) {
		if err := writeExcelRow(f, i+2, row, widths); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}
	if err = f.SetCellStyle(ExcelSheet, "A1", last+"1", bold); err != nil {
		return err
	}

	for i, width := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err = f.SetColWidth(ExcelSheet, name, name, float64(min(width+2, maxColumnWidth))); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeExcelRow(f *excelize.File, position int, cells []string, widths []int) error {
	cell, err := excelize.CoordinatesToCellName(1, position)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
		widths[i] = max(widths[i], utf8.RuneCountInString(c))
	}
	return f.SetSheetRow(ExcelSheet, cell, &values)
}
