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

// Package writepath validates submissions and writes them to the store.
package writepath

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/unilibre/proyectos/cmd/proyectos/store"
	"github.com/unilibre/proyectos/pkg/datamodel"
	"go.uber.org/zap"
)

// Client-facing validation messages.
const (
	MsgProjectRequired = "El campo Proyecto/Articulo es obligatorio"
	MsgStudentRequired = "El campo Estudiante 1 es obligatorio"
	MsgRowMissing      = "Número de fila no especificado"
	MsgRowInvalid      = "Número de fila inválido"
	MsgInvalidPayload  = "El cuerpo de la solicitud debe ser un objeto JSON"
	MsgAdded           = "Registro agregado exitosamente a Google Sheets"
	MsgUpdated         = "Registro actualizado exitosamente en Google Sheets"
)

// ValidationError is returned for submissions that must not reach the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Payload is a decoded submission. Values keep their raw JSON form.
type Payload map[string]json.RawMessage

// ParsePayload decodes a submission body. An empty body is an empty payload.
func ParsePayload(data []byte) (Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Payload{}, nil
	}
	_, values, err := datamodel.DecodeOrderedObject(data)
	if err != nil {
		return nil, &ValidationError{Field: "", Message: MsgInvalidPayload}
	}
	return Payload(values), nil
}

// Text returns the trimmed cell text of key, "" when absent or null.
func (p Payload) Text(key string) string {
	raw, ok := p[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(datamodel.CellString(raw))
}

// Refresher reloads the cached table after a write.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Writer appends and updates registry rows.
type Writer struct {
	store     store.Store
	refresher Refresher
}

func NewWriter(s store.Store, r Refresher) *Writer {
	return &Writer{store: s, refresher: r}
}

// Add validates p and appends it as a new row.
func (w *Writer) Add(ctx context.Context, p Payload) error {
	if err := validate(p); err != nil {
		return err
	}
	row, err := w.buildRow(ctx, p)
	if err != nil {
		return err
	}
	if err = w.store.Append(ctx, row); err != nil {
		return fmt.Errorf("appending row: %w", err)
	}
	zap.S().Infof("Appended project %q", p.Text(datamodel.PayloadProject))
	w.refresher.Refresh(ctx)
	return nil
}

// Update validates p and overwrites the row at its numero_fila. The row is
// not checked against its previous content.
func (w *Writer) Update(ctx context.Context, p Payload) error {
	if err := validate(p); err != nil {
		return err
	}
	position, err := rowPosition(p)
	if err != nil {
		return err
	}
	row, err := w.buildRow(ctx, p)
	if err != nil {
		return err
	}
	if err = w.store.Update(ctx, position, row); err != nil {
		return fmt.Errorf("updating row %d: %w", position, err)
	}
	zap.S().Infof("Updated row %d with project %q", position, p.Text(datamodel.PayloadProject))
	w.refresher.Refresh(ctx)
	return nil
}

func validate(p Payload) error {
	if p.Text(datamodel.PayloadProject) == "" {
		return &ValidationError{Field: datamodel.PayloadProject, Message: MsgProjectRequired}
	}
	if p.Text(datamodel.PayloadStudent1) == "" {
		return &ValidationError{Field: datamodel.PayloadStudent1, Message: MsgStudentRequired}
	}
	return nil
}

// rowPosition reads numero_fila as a JSON number or a numeric string.
func rowPosition(p Payload) (int, error) {
	text := p.Text(datamodel.PayloadRow)
	if text == "" {
		return 0, &ValidationError{Field: datamodel.PayloadRow, Message: MsgRowMissing}
	}
	position, err := strconv.Atoi(text)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || f != math.Trunc(f) || f > math.MaxInt32 {
			return 0, &ValidationError{Field: datamodel.PayloadRow, Message: MsgRowInvalid}
		}
		position = int(f)
	}
	if position < datamodel.FirstDataRow {
		return 0, &ValidationError{Field: datamodel.PayloadRow, Message: MsgRowInvalid}
	}
	return position, nil
}

func (w *Writer) buildRow(ctx context.Context, p Payload) ([]string, error) {
	headers, err := w.store.HeaderRow(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading header row: %w", err)
	}
	if len(headers) == 0 {
		headers = datamodel.Columns
	}
	return BuildRow(headers, p), nil
}

// BuildRow lays p out along headers. Headers without a payload key get "".
func BuildRow(headers []string, p Payload) []string {
	row := make([]string, len(headers))
	for i, h := range headers {
		if key, ok := datamodel.PayloadKeyFor(h); ok {
			row[i] = p.Text(key)
		}
	}
	return row
}
