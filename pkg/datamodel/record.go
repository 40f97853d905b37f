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

package datamodel

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/unilibre/proyectos/pkg/normalize"
)

// Provenance keys added to every record when it is encoded.
const (
	OriginKey   = "hoja_origen"
	PositionKey = "numero_fila"
)

// FirstDataRow is the sheet position of the first data row. Position 1 holds the headers.
const FirstDataRow = 2

// Record is one materialized sheet row. Column order follows the headers it
// was built from. Records are built fresh per request and never mutated
// after materialization.
type Record struct {
	columns []string
	values  map[string]string

	// Origin is the label of the source the row was read from.
	Origin string
	// Position is the 1-based sheet row, see FirstDataRow.
	Position int
}

// NewRecord returns an empty record with the given provenance.
func NewRecord(origin string, position int) Record {
	return Record{
		values:   make(map[string]string),
		Origin:   origin,
		Position: position,
	}
}

// Set assigns a column value. A repeated column keeps its first position.
func (r *Record) Set(column, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Get returns the value of a column, or "" if the record has no such column.
func (r Record) Get(column string) string {
	return r.values[column]
}

// Has reports whether the record carries the column.
func (r Record) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Columns returns the record's columns in order.
func (r Record) Columns() []string {
	return r.columns
}

// Lookup returns the first non-blank value among the columns whose header
// folds to the same text as name. Sheets edited by hand tend to carry
// headers like "Trabajo final " or "Ano"; Lookup tolerates both.
func (r Record) Lookup(name string) string {
	if r.Has(name) && strings.TrimSpace(r.Get(name)) != "" {
		return r.Get(name)
	}
	want := normalize.Text(name)
	for _, c := range r.columns {
		if normalize.Text(c) != want {
			continue
		}
		if v := r.values[c]; strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// MarshalJSON encodes the columns in order followed by the provenance keys.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, c := range r.columns {
		if c == OriginKey || c == PositionKey {
			continue
		}
		if err := writeMember(&buf, c, r.values[c]); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	if err := writeMember(&buf, OriginKey, r.Origin); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeMember(&buf, PositionKey, r.Position); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts any flat object, as sent back by the browser for
// exports. Provenance keys are lifted out; every other key becomes a column.
func (r *Record) UnmarshalJSON(data []byte) error {
	keys, values, err := DecodeOrderedObject(data)
	if err != nil {
		return err
	}
	*r = NewRecord("", 0)
	for _, k := range keys {
		switch k {
		case OriginKey:
			r.Origin = CellString(values[k])
		case PositionKey:
			r.Position, _ = strconv.Atoi(strings.TrimSpace(CellString(values[k])))
		default:
			r.Set(k, CellString(values[k]))
		}
	}
	return nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
