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

// Package store talks to the tabular data source that backs the project
// registry. Implementations exist for Google Sheets and for a local XLSX
// workbook; both report failures as *Error values carrying a Kind so that
// callers can decide whether a local fallback is appropriate.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Table is the content of the first worksheet: its header row, the data rows
// below it and the worksheet title.
type Table struct {
	Headers []string
	Rows    [][]string
	Title   string
}

// Store abstracts over the remote tabular data source.
type Store interface {
	// List returns the first row as headers and all subsequent rows as data.
	List(ctx context.Context) (Table, error)
	// HeaderRow returns the first row only.
	HeaderRow(ctx context.Context) ([]string, error)
	// Append adds one row after the last one, using the store's native type coercion.
	Append(ctx context.Context, row []string) error
	// Update overwrites the row at the 1-based position, starting at the first column.
	Update(ctx context.Context, position int, row []string) error
}

// Kind classifies store failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth covers missing or rejected credentials.
	KindAuth
	// KindNotFound covers a bad spreadsheet identifier or a missing workbook.
	KindNotFound
	// KindTransient covers timeouts, network failures, rate limits and 5xx answers.
	KindTransient
	// KindMalformed covers responses that could not be interpreted.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned by every Store implementation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with an operation name and a kind.
func NewError(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of a store error, KindUnknown for foreign errors and
// KindTransient for context deadline errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// IsTransient reports whether retrying the same call may succeed.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
