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

// Package fallback loads the local JSON snapshot served when the remote
// spreadsheet cannot be read.
package fallback

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/goccy/go-json"
	"github.com/unilibre/proyectos/cmd/proyectos/store"
	"github.com/unilibre/proyectos/pkg/datamodel"
	"go.uber.org/zap"
)

// Label is the source label attached to records loaded from the snapshot.
const Label = "local"

// wrapperKey is the container key used by exported snapshots.
const wrapperKey = "proyectos"

// Loader reads a JSON snapshot of the registry.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path is the snapshot file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load returns the snapshot as a table titled Label. A missing or unreadable
// snapshot yields an empty table.
func (l *Loader) Load() store.Table {
	empty := store.Table{Headers: []string{}, Rows: [][]string{}, Title: Label}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			zap.S().Debugf("Local snapshot %s does not exist", l.path)
		} else {
			zap.S().Warnf("Could not read local snapshot %s: %v", l.path, err)
		}
		return empty
	}

	snap, err := parse(data)
	if err != nil {
		zap.S().Warnf("Could not parse local snapshot %s: %v", l.path, err)
		return empty
	}
	headers, rows := snap.shape()
	zap.S().Debugf("Loaded %d rows from local snapshot %s", len(rows), l.path)
	return store.Table{Headers: headers, Rows: rows, Title: Label}
}

// snapshot holds decoded records before they are shaped into a table.
type snapshot struct {
	columns []string
	seen    map[string]bool
	rows    []map[string]json.RawMessage
}

func newSnapshot() *snapshot {
	return &snapshot{seen: map[string]bool{}}
}

func (s *snapshot) addColumn(name string) {
	if !s.seen[name] {
		s.seen[name] = true
		s.columns = append(s.columns, name)
	}
}

// shape orders the columns along the schema and renders every cell as text.
func (s *snapshot) shape() ([]string, [][]string) {
	headers := make([]string, 0, len(datamodel.Columns))
	for _, col := range datamodel.Columns {
		if s.seen[col] {
			headers = append(headers, col)
		}
	}
	if len(headers) == 0 {
		headers = append(headers, s.columns...)
	} else {
		for _, col := range s.columns {
			if !datamodel.HasColumn(col) {
				zap.S().Debugf("Ignoring snapshot column %q outside the schema", col)
			}
		}
	}

	rows := make([][]string, 0, len(s.rows))
	for _, values := range s.rows {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = datamodel.CellString(values[h])
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func parse(data []byte) (*snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}
	switch data[0] {
	case '[':
		return parseRecords(data)
	case '{':
		keys, values, err := datamodel.DecodeOrderedObject(data)
		if err != nil {
			return nil, err
		}
		if raw, ok := values[wrapperKey]; ok && isArray(raw) {
			return parseRecords(raw)
		}
		if len(keys) == 1 && isArray(values[keys[0]]) && isArrayOfObjects(values[keys[0]]) {
			return parseRecords(values[keys[0]])
		}
		return parseColumns(keys, values)
	default:
		return nil, fmt.Errorf("unexpected document start %q", data[0])
	}
}

// parseRecords reads a list of row objects.
func parseRecords(data []byte) (*snapshot, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	snap := newSnapshot()
	for i, item := range items {
		keys, values, err := datamodel.DecodeOrderedObject(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		for _, k := range keys {
			snap.addColumn(k)
		}
		snap.rows = append(snap.rows, values)
	}
	return snap, nil
}

// parseColumns reads a column-oriented object, either {column: [values]} or
// {column: {index: value}}.
func parseColumns(keys []string, values map[string]json.RawMessage) (*snapshot, error) {
	snap := newSnapshot()
	var (
		index    []string
		indexPos = map[string]int{}
	)
	rowFor := func(label string) map[string]json.RawMessage {
		pos, ok := indexPos[label]
		if !ok {
			pos = len(index)
			indexPos[label] = pos
			index = append(index, label)
			snap.rows = append(snap.rows, map[string]json.RawMessage{})
		}
		return snap.rows[pos]
	}

	for _, col := range keys {
		raw := bytes.TrimSpace(values[col])
		switch {
		case isArray(raw):
			var cells []json.RawMessage
			if err := json.Unmarshal(raw, &cells); err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			for i, cell := range cells {
				rowFor(fmt.Sprint(i))[col] = cell
			}
		case len(raw) > 0 && raw[0] == '{':
			labels, cells, err := datamodel.DecodeOrderedObject(raw)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			for _, label := range labels {
				rowFor(label)[col] = cells[label]
			}
		default:
			return nil, fmt.Errorf("column %q holds a scalar, expected a list or an object", col)
		}
		snap.addColumn(col)
	}
	return snap, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isArrayOfObjects(raw json.RawMessage) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return false
		}
	}
	return true
}
