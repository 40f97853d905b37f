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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registro.xlsx")
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Proyectos"))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Proyectos", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestWorkbookList(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Proyecto/Articulo", "Estudiante 1", "Año"},
		{"Sistema X", "Ana", 2024},
	})
	w := NewWorkbook(path)

	table, err := w.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Proyectos", table.Title)
	assert.Equal(t, []string{"Proyecto/Articulo", "Estudiante 1", "Año"}, table.Headers)
	assert.Equal(t, [][]string{{"Sistema X", "Ana", "2024"}}, table.Rows)

	headers, err := w.HeaderRow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, table.Headers, headers)
}

func TestWorkbookAppendAndUpdate(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Proyecto/Articulo", "Estudiante 1"},
		{"Sistema X", "Ana"},
	})
	w := NewWorkbook(path)
	ctx := context.Background()

	require.NoError(t, w.Append(ctx, []string{"Sistema Y", "Luis"}))
	require.NoError(t, w.Update(ctx, 2, []string{"Sistema X v2", "Ana"}))

	table, err := w.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Sistema X v2", "Ana"}, {"Sistema Y", "Luis"}}, table.Rows)
}

func TestWorkbookAppendCoercesNumbers(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{{"Proyecto/Articulo", "Año"}})
	w := NewWorkbook(path)
	require.NoError(t, w.Append(context.Background(), []string{"Sistema X", "2024"}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	typ, err := f.GetCellType("Proyectos", "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)
}

func TestWorkbookMissingFile(t *testing.T) {
	w := NewWorkbook(filepath.Join(t.TempDir(), "none.xlsx"))

	_, err := w.List(context.Background())
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindNotFound, KindOf(w.Append(context.Background(), []string{"x"})))
}

func TestWorkbookCanceledContext(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{{"a"}})
	w := NewWorkbook(path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.List(ctx)
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestWorkbookUpdateInvalidPosition(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{{"a"}})
	assert.Error(t, NewWorkbook(path).Update(context.Background(), 0, []string{"x"}))
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"", ""},
		{"  ", "  "},
		{"2024", int64(2024)},
		{" 42 ", int64(42)},
		{"3.5", 3.5},
		{"0.5", 0.5},
		{"0", int64(0)},
		{"0123", "0123"},
		{"NaN", "NaN"},
		{"Inf", "Inf"},
		{"Sistema X", "Sistema X"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseValue(tt.in), tt.in)
	}
}
