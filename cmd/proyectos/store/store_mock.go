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
	"sync"
	"testing"
)

// MockUpdate records one call to MockStore.Update.
type MockUpdate struct {
	Position int
	Row      []string
}

// MockStore is an in-memory Store. Writes are applied to Table so later
// reads observe them.
type MockStore struct {
	mu sync.Mutex

	Table Table

	ListErr   error
	HeaderErr error
	AppendErr error
	UpdateErr error

	// BeforeList runs at the start of every List call, outside the lock.
	BeforeList func()

	Appended  [][]string
	Updates   []MockUpdate
	ListCalls int
}

func GetMockStore(t *testing.T, table Table) *MockStore {
	// Passing t here to ensure it is not used in production code
	t.Logf("Using mock store")
	return &MockStore{Table: table}
}

func (m *MockStore) List(ctx context.Context) (Table, error) {
	if m.BeforeList != nil {
		m.BeforeList()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return Table{}, m.ListErr
	}
	if err := ctx.Err(); err != nil {
		return Table{}, NewError("list", KindTransient, err)
	}
	return copyTable(m.Table), nil
}

func (m *MockStore) HeaderRow(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HeaderErr != nil {
		return nil, m.HeaderErr
	}
	return append([]string{}, m.Table.Headers...), nil
}

func (m *MockStore) Append(ctx context.Context, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	r := append([]string{}, row...)
	m.Appended = append(m.Appended, r)
	m.Table.Rows = append(m.Table.Rows, r)
	return nil
}

func (m *MockStore) Update(ctx context.Context, position int, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	r := append([]string{}, row...)
	m.Updates = append(m.Updates, MockUpdate{Position: position, Row: r})
	idx := position - 2
	for idx >= len(m.Table.Rows) {
		m.Table.Rows = append(m.Table.Rows, []string{})
	}
	if idx >= 0 {
		m.Table.Rows[idx] = r
	}
	return nil
}

// Calls returns the number of List calls so far.
func (m *MockStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ListCalls
}

func copyTable(t Table) Table {
	out := Table{Title: t.Title, Headers: append([]string{}, t.Headers...), Rows: make([][]string, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = append([]string{}, r...)
	}
	return out
}
