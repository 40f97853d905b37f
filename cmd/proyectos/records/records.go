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

// Package records turns cached table rows into records and filters them.
package records

import (
	"strings"

	"github.com/unilibre/proyectos/pkg/datamodel"
	"github.com/unilibre/proyectos/pkg/normalize"
)

// Materialize pairs every row with the headers. Missing trailing cells become
// "" and cells beyond the last header are dropped. Positions start at
// datamodel.FirstDataRow.
func Materialize(headers []string, rows [][]string, label string) []datamodel.Record {
	if len(headers) == 0 || len(rows) == 0 {
		return []datamodel.Record{}
	}
	out := make([]datamodel.Record, 0, len(rows))
	for i, row := range rows {
		r := datamodel.NewRecord(label, datamodel.FirstDataRow+i)
		for j, h := range headers {
			v := ""
			if j < len(row) {
				v = row[j]
			}
			r.Set(h, v)
		}
		out = append(out, r)
	}
	return out
}

// Search returns the records where any schema column contains term once both
// are normalized. A blank term returns records unchanged.
func Search(term string, records []datamodel.Record) []datamodel.Record {
	if strings.TrimSpace(term) == "" {
		return records
	}
	out := make([]datamodel.Record, 0)
	for _, r := range records {
		if matches(r, term) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r datamodel.Record, term string) bool {
	for _, col := range datamodel.Columns {
		if normalize.Contains(r.Lookup(col), term) {
			return true
		}
	}
	return false
}
