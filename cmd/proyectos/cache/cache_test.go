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

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unilibre/proyectos/cmd/proyectos/store"
)

type fakeFallback struct {
	table store.Table
	loads atomic.Int64
}

func (f *fakeFallback) Load() store.Table {
	f.loads.Add(1)
	return f.table
}

type sourceFunc func(ctx context.Context) (store.Table, error)

func (f sourceFunc) List(ctx context.Context) (store.Table, error) {
	return f(ctx)
}

func remoteTable() store.Table {
	return store.Table{
		Headers: []string{"Proyecto/Articulo", "Estudiante 1"},
		Rows:    [][]string{{"Sistema X", "Ana"}},
		Title:   "Hoja 1",
	}
}

func localFallback() *fakeFallback {
	return &fakeFallback{table: store.Table{
		Headers: []string{"Proyecto/Articulo"},
		Rows:    [][]string{{"Respaldo"}},
		Title:   "local",
	}}
}

func TestGetServesLiveEntry(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	c := New(src, localFallback(), time.Minute)
	ctx := context.Background()

	first := c.Get(ctx, false)
	second := c.Get(ctx, false)

	assert.Equal(t, 1, src.Calls())
	assert.Equal(t, first, second)
	assert.Equal(t, "Hoja 1", first.Label)
	assert.False(t, first.Fallback)
	assert.Equal(t, [][]string{{"Sistema X", "Ana"}}, first.Rows)
	assert.NotEmpty(t, first.Fingerprint)
}

func TestGetForceAlwaysFetches(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	c := New(src, localFallback(), time.Minute)
	ctx := context.Background()

	c.Get(ctx, false)
	c.Get(ctx, true)
	c.Get(ctx, true)
	assert.Equal(t, 3, src.Calls())
}

func TestGetFallsBackOnRemoteFailure(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	src.ListErr = store.NewError("list", store.KindAuth, errors.New("denied"))
	fb := localFallback()
	c := New(src, fb, time.Minute)

	e := c.Get(context.Background(), false)
	assert.True(t, e.Fallback)
	assert.Equal(t, "local", e.Label)
	assert.Equal(t, [][]string{{"Respaldo"}}, e.Rows)
	assert.Equal(t, int64(1), fb.loads.Load())

	// The fallback entry is live as well
	c.Get(context.Background(), false)
	assert.Equal(t, 1, src.Calls())
}

func TestGetBothSourcesEmpty(t *testing.T) {
	src := store.GetMockStore(t, store.Table{})
	src.ListErr = errors.New("network down")
	fb := &fakeFallback{table: store.Table{Title: "local"}}
	c := New(src, fb, time.Minute)

	e := c.Get(context.Background(), false)
	assert.Empty(t, e.Headers)
	assert.Empty(t, e.Rows)
	assert.NotNil(t, e.Rows)
	assert.Equal(t, "local", e.Label)
	assert.True(t, e.Fallback)
}

func TestEmptyEntryIsNeverLive(t *testing.T) {
	src := store.GetMockStore(t, store.Table{Headers: []string{"Proyecto/Articulo"}, Title: "Hoja 1"})
	c := New(src, localFallback(), time.Minute)

	c.Get(context.Background(), false)
	c.Get(context.Background(), false)
	assert.Equal(t, 2, src.Calls())
}

func TestZeroTTLDisablesCaching(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	c := New(src, localFallback(), 0)

	c.Get(context.Background(), false)
	c.Get(context.Background(), false)
	assert.Equal(t, 2, src.Calls())
}

func TestEntryExpires(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	c := New(src, localFallback(), 50*time.Millisecond)

	c.Get(context.Background(), false)
	time.Sleep(80 * time.Millisecond)
	c.Get(context.Background(), false)
	assert.Equal(t, 2, src.Calls())
}

func TestInvalidate(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	c := New(src, localFallback(), time.Minute)

	c.Get(context.Background(), false)
	c.Invalidate()
	c.Get(context.Background(), false)
	assert.Equal(t, 2, src.Calls())
}

func TestInvalidateFallbackOnlyDropsFallbackEntries(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	c := New(src, localFallback(), time.Minute)

	c.Get(context.Background(), false)
	c.InvalidateFallback()
	c.Get(context.Background(), false)
	assert.Equal(t, 1, src.Calls())

	src.ListErr = errors.New("down")
	c.Get(context.Background(), true)
	c.InvalidateFallback()
	c.Get(context.Background(), false)
	assert.Equal(t, 3, src.Calls())
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	src.BeforeList = func() {
		once.Do(func() { close(started) })
		<-release
	}
	c := New(src, localFallback(), time.Minute)

	var wg sync.WaitGroup
	results := make([]Entry, 20)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = c.Get(context.Background(), false)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Get(context.Background(), false)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, src.Calls())
	for _, r := range results {
		assert.Equal(t, results[0].Fingerprint, r.Fingerprint)
	}
}

func TestCanceledCallerStillGetsRemoteEntry(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	c := New(src, localFallback(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := c.Get(ctx, false)
	assert.False(t, e.Fallback)
}

func TestForcedRefreshFromCanceledCallerKeepsRemoteEntry(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	c := New(src, localFallback(), time.Minute)
	require.False(t, c.Get(context.Background(), false).Fallback)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	forced := c.Get(ctx, true)
	assert.False(t, forced.Fallback)
	c.Refresh(ctx)

	e := c.Get(context.Background(), false)
	assert.False(t, e.Fallback)
	assert.Equal(t, "Hoja 1", e.Label)
	assert.Equal(t, [][]string{{"Sistema X", "Ana"}}, e.Rows)
	assert.Equal(t, 3, src.Calls())
}

func TestOlderRefreshNeverOverwritesNewer(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	src := sourceFunc(func(ctx context.Context) (store.Table, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			return store.Table{Headers: []string{"h"}, Rows: [][]string{{"old"}}, Title: "Hoja 1"}, nil
		}
		return store.Table{Headers: []string{"h"}, Rows: [][]string{{"new"}}, Title: "Hoja 1"}, nil
	})
	c := New(src, localFallback(), time.Minute)

	slow := make(chan Entry)
	go func() { slow <- c.Get(context.Background(), true) }()
	<-entered

	fast := c.Get(context.Background(), true)
	require.Equal(t, [][]string{{"new"}}, fast.Rows)

	close(release)
	assert.Equal(t, [][]string{{"new"}}, (<-slow).Rows)
	assert.Equal(t, [][]string{{"new"}}, c.Get(context.Background(), false).Rows)
}

func TestFingerprintTracksContent(t *testing.T) {
	src := store.GetMockStore(t, remoteTable())
	c := New(src, localFallback(), time.Minute)

	a := c.Get(context.Background(), true)
	b := c.Get(context.Background(), true)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)

	require.NoError(t, src.Append(context.Background(), []string{"Sistema Y", "Luis"}))
	d := c.Get(context.Background(), true)
	assert.NotEqual(t, a.Fingerprint, d.Fingerprint)
}
