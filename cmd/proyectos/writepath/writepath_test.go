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

package writepath

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unilibre/proyectos/cmd/proyectos/store"
	"github.com/unilibre/proyectos/pkg/datamodel"
)

type countingRefresher struct {
	calls int
}

func (r *countingRefresher) Refresh(ctx context.Context) {
	r.calls++
}

func payload(t *testing.T, body string) Payload {
	t.Helper()
	p, err := ParsePayload([]byte(body))
	require.NoError(t, err)
	return p
}

func newWriter(t *testing.T, headers []string) (*Writer, *store.MockStore, *countingRefresher) {
	s := store.GetMockStore(t, store.Table{Headers: headers, Title: "Hoja 1"})
	r := &countingRefresher{}
	return NewWriter(s, r), s, r
}

func assertValidation(t *testing.T, err error, field, message string) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
	assert.Equal(t, field, verr.Field)
	assert.Equal(t, message, verr.Message)
}

func TestAddAppendsMappedRow(t *testing.T) {
	w, s, r := newWriter(t, []string{"Proyecto/Articulo", "Programa ", "Estudiante 1", "Observaciones", "Año"})

	err := w.Add(context.Background(), payload(t, `{
		"proyecto_articulo": "  Sistema X ",
		"estudiante1": "Ana",
		"ano": 2024,
		"programa": null,
		"desconocido": "ignorado"
	}`))
	require.NoError(t, err)

	require.Len(t, s.Appended, 1)
	assert.Equal(t, []string{"Sistema X", "", "Ana", "", "2024"}, s.Appended[0])
	assert.Equal(t, 1, r.calls)
}

func TestAddUsesSchemaWhenHeaderRowEmpty(t *testing.T) {
	w, s, _ := newWriter(t, nil)

	require.NoError(t, w.Add(context.Background(), payload(t, `{"proyecto_articulo": "A", "estudiante1": "B", "convocatoria": "2024-1"}`)))

	require.Len(t, s.Appended, 1)
	row := s.Appended[0]
	require.Len(t, row, len(datamodel.Columns))
	assert.Equal(t, "A", row[0])
	assert.Equal(t, "B", row[2])
	assert.Equal(t, "2024-1", row[13])
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		field   string
		message string
	}{
		{"empty", `{}`, datamodel.PayloadProject, MsgProjectRequired},
		{"both missing reports project first", `{"programa": "x"}`, datamodel.PayloadProject, MsgProjectRequired},
		{"blank project", `{"proyecto_articulo": "   ", "estudiante1": "Ana"}`, datamodel.PayloadProject, MsgProjectRequired},
		{"null project", `{"proyecto_articulo": null, "estudiante1": "Ana"}`, datamodel.PayloadProject, MsgProjectRequired},
		{"missing student", `{"proyecto_articulo": "X"}`, datamodel.PayloadStudent1, MsgStudentRequired},
		{"blank student", `{"proyecto_articulo": "X", "estudiante1": ""}`, datamodel.PayloadStudent1, MsgStudentRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, s, r := newWriter(t, []string{"Proyecto/Articulo"})
			err := w.Add(context.Background(), payload(t, tt.body))
			assertValidation(t, err, tt.field, tt.message)
			assert.Empty(t, s.Appended)
			assert.Zero(t, r.calls)
		})
	}
}

func TestAddStoreFailureSkipsRefresh(t *testing.T) {
	w, s, r := newWriter(t, []string{"Proyecto/Articulo"})
	s.AppendErr = store.NewError("append", store.KindTransient, errors.New("timeout"))

	err := w.Add(context.Background(), payload(t, `{"proyecto_articulo": "X", "estudiante1": "Y"}`))
	require.Error(t, err)
	assert.Equal(t, store.KindTransient, store.KindOf(err))
	assert.Zero(t, r.calls)
}

func TestAddHeaderFailure(t *testing.T) {
	w, s, r := newWriter(t, []string{"Proyecto/Articulo"})
	s.HeaderErr = store.NewError("header", store.KindAuth, errors.New("denied"))

	err := w.Add(context.Background(), payload(t, `{"proyecto_articulo": "X", "estudiante1": "Y"}`))
	assert.Equal(t, store.KindAuth, store.KindOf(err))
	assert.Empty(t, s.Appended)
	assert.Zero(t, r.calls)
}

func TestUpdateOverwritesPosition(t *testing.T) {
	for _, raw := range []string{`5`, `"5"`, `" 5 "`, `5.0`} {
		w, s, r := newWriter(t, []string{"Proyecto/Articulo", "Estudiante 1"})

		err := w.Update(context.Background(), payload(t, `{"proyecto_articulo": "X", "estudiante1": "Y", "numero_fila": `+raw+`}`))
		require.NoError(t, err, raw)
		require.Len(t, s.Updates, 1)
		assert.Equal(t, 5, s.Updates[0].Position)
		assert.Equal(t, []string{"X", "Y"}, s.Updates[0].Row)
		assert.Equal(t, 1, r.calls)
	}
}

func TestUpdateValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		field   string
		message string
	}{
		{"required fields first", `{"numero_fila": 3}`, datamodel.PayloadProject, MsgProjectRequired},
		{"missing position", `{"proyecto_articulo": "X", "estudiante1": "Y"}`, datamodel.PayloadRow, MsgRowMissing},
		{"blank position", `{"proyecto_articulo": "X", "estudiante1": "Y", "numero_fila": ""}`, datamodel.PayloadRow, MsgRowMissing},
		{"header row", `{"proyecto_articulo": "X", "estudiante1": "Y", "numero_fila": 1}`, datamodel.PayloadRow, MsgRowInvalid},
		{"negative", `{"proyecto_articulo": "X", "estudiante1": "Y", "numero_fila": -4}`, datamodel.PayloadRow, MsgRowInvalid},
		{"fraction", `{"proyecto_articulo": "X", "estudiante1": "Y", "numero_fila": 2.5}`, datamodel.PayloadRow, MsgRowInvalid},
		{"text", `{"proyecto_articulo": "X", "estudiante1": "Y", "numero_fila": "abc"}`, datamodel.PayloadRow, MsgRowInvalid},
		{"object", `{"proyecto_articulo": "X", "estudiante1": "Y", "numero_fila": {"a": 1}}`, datamodel.PayloadRow, MsgRowInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, s, r := newWriter(t, []string{"Proyecto/Articulo"})
			err := w.Update(context.Background(), payload(t, tt.body))
			assertValidation(t, err, tt.field, tt.message)
			assert.Empty(t, s.Updates)
			assert.Zero(t, r.calls)
		})
	}
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload(nil)
	require.NoError(t, err)
	assert.Empty(t, p)

	_, err = ParsePayload([]byte(`[1, 2]`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgInvalidPayload, verr.Message)

	_, err = ParsePayload([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestBuildRow(t *testing.T) {
	p := Payload{
		"evaluador1":    []byte(`"Dr. A"`),
		"evaluador3":    []byte(`" Dr. C "`),
		"trabajo_final": []byte(`true`),
	}
	row := BuildRow([]string{"Evaluador 1", "Evaluador 2", " Evaluador 3 ", "Trabajo final", "Otro"}, p)
	assert.Equal(t, []string{"Dr. A", "", "Dr. C", "true", ""}, row)
}
