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

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Workbook keeps the registry in the first sheet of a local .xlsx file.
// It is meant for development and for sites without Google credentials.
type Workbook struct {
	path string
	mu   sync.Mutex
}

// NewWorkbook returns a Workbook store for the file at path. The file must exist.
func NewWorkbook(path string) *Workbook {
	return &Workbook{path: path}
}

func (w *Workbook) open(op string) (*excelize.File, string, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", NewError(op, KindNotFound, err)
		}
		return nil, "", NewError(op, KindMalformed, err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, "", NewError(op, KindMalformed, errors.New("workbook has no sheets"))
	}
	return f, sheets[0], nil
}

func (w *Workbook) rows(op string) ([][]string, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, sheet, err := w.open(op)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, "", NewError(op, KindMalformed, err)
	}
	return rows, sheet, nil
}

func (w *Workbook) List(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, NewError("list", KindTransient, err)
	}
	rows, sheet, err := w.rows("list")
	if err != nil {
		return Table{}, err
	}
	table := Table{Headers: []string{}, Rows: [][]string{}, Title: sheet}
	for i, row := range rows {
		if i == 0 {
			table.Headers = row
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func (w *Workbook) HeaderRow(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("header", KindTransient, err)
	}
	rows, _, err := w.rows("header")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []string{}, nil
	}
	return rows[0], nil
}

func (w *Workbook) Append(ctx context.Context, row []string) error {
	if err := ctx.Err(); err != nil {
		return NewError("append", KindTransient, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, sheet, err := w.open("append")
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return NewError("append", KindMalformed, err)
	}
	return w.writeRow(f, sheet, "append", len(rows)+1, row)
}

func (w *Workbook) Update(ctx context.Context, position int, row []string) error {
	if err := ctx.Err(); err != nil {
		return NewError("update", KindTransient, err)
	}
	if position < 1 {
		return NewError("update", KindUnknown, fmt.Errorf("invalid row position %d", position))
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, sheet, err := w.open("update")
	if err != nil {
		return err
	}
	defer f.Close()
	return w.writeRow(f, sheet, "update", position, row)
}

func (w *Workbook) writeRow(f *excelize.File, sheet, op string, position int, row []string) error {
	cell, err := excelize.CoordinatesToCellName(1, position)
	if err != nil {
		return NewError(op, KindUnknown, err)
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = parseValue(v)
	}
	if err = f.SetSheetRow(sheet, cell, &values); err != nil {
		return NewError(op, KindUnknown, err)
	}
	if err = f.Save(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return NewError(op, KindAuth, err)
		}
		return NewError(op, KindUnknown, err)
	}
	return nil
}

// parseValue mirrors the spreadsheet's user-entered coercion: integers become
// int64, decimals float64, anything else stays text.
func parseValue(s string) interface{} {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	// Keep leading zeros (phone numbers, codes) as text
	if len(trimmed) > 1 && trimmed[0] == '0' && trimmed[1] != '.' {
		return s
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}
