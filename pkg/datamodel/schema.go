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

import "strings"

// Canonical column names of the project sheet.
const (
	ColumnProject          = "Proyecto/Articulo"
	ColumnProgram          = "Programa"
	ColumnStudent1         = "Estudiante 1"
	ColumnStudent2         = "Estudiante 2"
	ColumnAdvisor          = "Asesor"
	ColumnEvaluator1       = "Evaluador 1"
	ColumnEvaluator2       = "Evaluador 2"
	ColumnEvaluator3       = "Evaluador 3"
	ColumnHour             = "Hora"
	ColumnProposal         = "Propuesta"
	ColumnPreProject       = "Anteproyecto"
	ColumnFinalWork        = "Trabajo final"
	ColumnDefenseDate      = "Fecha sustentación"
	ColumnCall             = "Convocatoria"
	ColumnArticleMonograph = "ARTICULO/MONOGRAFIA"
	ColumnYear             = "Año"
)

// Columns is the expected layout of the sheet. It is fixed configuration and
// is never inferred from the data.
var Columns = []string{
	ColumnProject,
	ColumnProgram,
	ColumnStudent1,
	ColumnStudent2,
	ColumnAdvisor,
	ColumnEvaluator1,
	ColumnEvaluator2,
	ColumnEvaluator3,
	ColumnHour,
	ColumnProposal,
	ColumnPreProject,
	ColumnFinalWork,
	ColumnDefenseDate,
	ColumnCall,
	ColumnArticleMonograph,
	ColumnYear,
}

// Submission keys that the write path requires.
const (
	PayloadProject  = "proyecto_articulo"
	PayloadStudent1 = "estudiante1"
	PayloadRow      = "numero_fila"
)

// FieldMapping binds a submission key to the sheet column it fills.
type FieldMapping struct {
	PayloadKey string
	Column     string
}

// PayloadToSheet maps submission keys to canonical columns. Payload keys not
// listed here are ignored by the write path.
var PayloadToSheet = []FieldMapping{
	{PayloadProject, ColumnProject},
	{"programa", ColumnProgram},
	{PayloadStudent1, ColumnStudent1},
	{"estudiante2", ColumnStudent2},
	{"asesor", ColumnAdvisor},
	{"evaluador1", ColumnEvaluator1},
	{"evaluador2", ColumnEvaluator2},
	{"evaluador3", ColumnEvaluator3},
	{"hora", ColumnHour},
	{"propuesta", ColumnProposal},
	{"anteproyecto", ColumnPreProject},
	{"trabajo_final", ColumnFinalWork},
	{"fecha_sustentacion", ColumnDefenseDate},
	{"convocatoria", ColumnCall},
	{"articulo_monografia", ColumnArticleMonograph},
	{"ano", ColumnYear},
}

// PayloadKeyFor returns the submission key that supplies the given sheet
// header. The header is trimmed before the lookup.
func PayloadKeyFor(header string) (string, bool) {
	header = strings.TrimSpace(header)
	for _, m := range PayloadToSheet {
		if m.Column == header {
			return m.PayloadKey, true
		}
	}
	return "", false
}

// HasColumn reports whether name is part of Columns.
func HasColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}
