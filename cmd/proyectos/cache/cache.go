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

// Package cache keeps the latest snapshot of the registry table in memory and
// refreshes it from the store, or from the local fallback, once it expires.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/unilibre/proyectos/cmd/proyectos/store"
	"github.com/unilibre/proyectos/internal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const entryKey = "registry"

// Prometheus metrics
var (
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proyectos_cache_hits_total",
			Help: "Reads served from a live cache entry",
		},
	)
	cacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proyectos_cache_refreshes_total",
			Help: "Cache refreshes by the source that produced the new entry",
		},
		[]string{"source"},
	)
	remoteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proyectos_remote_errors_total",
			Help: "Failed reads of the remote store by error kind",
		},
		[]string{"kind"},
	)
	remoteLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "proyectos_remote_fetch_seconds",
			Help:    "Latency of full table reads from the remote store",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

// Source is the remote table reader. store.Store satisfies it.
type Source interface {
	List(ctx context.Context) (store.Table, error)
}

// Fallback provides the local snapshot.
type Fallback interface {
	Load() store.Table
}

// Entry is an immutable snapshot of the table. Callers must not modify its slices.
type Entry struct {
	Timestamp   time.Time
	Headers     []string
	Rows        [][]string
	Label       string
	Fallback    bool
	Fingerprint string
}

// Cache is a read-through cache over a Source with a local Fallback.
type Cache struct {
	source   Source
	fallback Fallback
	ttl      time.Duration
	mem      *gocache.Cache
	group    singleflight.Group
	now      func() time.Time

	seq       atomic.Uint64
	mu        sync.Mutex
	storedSeq uint64
	current   *Entry
}

// New returns a Cache whose entries live for ttl. A ttl of zero or less
// disables caching and every Get reads the source.
func New(source Source, fallback Fallback, ttl time.Duration) *Cache {
	cleanup := ttl * 2
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Cache{
		source:   source,
		fallback: fallback,
		ttl:      ttl,
		mem:      gocache.New(ttl, cleanup),
		now:      time.Now,
	}
}

// Get returns the live entry or refreshes it. force skips the live entry and
// never joins a refresh already in flight. Get never fails: when the source
// fails the fallback snapshot is returned instead.
func (c *Cache) Get(ctx context.Context, force bool) Entry {
	if !force {
		if e, ok := c.live(); ok {
			cacheHits.Inc()
			return e
		}
		v, _, _ := c.group.Do(entryKey, func() (interface{}, error) {
			// Shared between callers, so one caller leaving must not cancel it
			return c.refresh(context.WithoutCancel(ctx)), nil
		})
		return v.(Entry)
	}
	// A caller that goes away mid-refresh is not a source failure
	return c.refresh(context.WithoutCancel(ctx))
}

// Refresh replaces the entry with a fresh read, bypassing any live entry.
func (c *Cache) Refresh(ctx context.Context) {
	c.Get(ctx, true)
}

// Invalidate drops the live entry so that the next Get refreshes.
func (c *Cache) Invalidate() {
	c.mem.Delete(entryKey)
}

// InvalidateFallback drops the live entry only when it was served from the fallback.
func (c *Cache) InvalidateFallback() {
	c.mu.Lock()
	fromFallback := c.current != nil && c.current.Fallback
	c.mu.Unlock()
	if fromFallback {
		zap.S().Infof("Local snapshot changed, invalidating cached entry")
		c.Invalidate()
	}
}

func (c *Cache) live() (Entry, bool) {
	if c.ttl <= 0 {
		return Entry{}, false
	}
	v, found := c.mem.Get(entryKey)
	if !found {
		return Entry{}, false
	}
	e, ok := v.(*Entry)
	// An entry without rows never counts as live
	if !ok || len(e.Rows) == 0 {
		return Entry{}, false
	}
	return *e, true
}

func (c *Cache) refresh(ctx context.Context) Entry {
	seq := c.seq.Add(1)
	e := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.storedSeq && c.current != nil {
		zap.S().Debugf("Discarding refresh %d, entry from refresh %d is newer", seq, c.storedSeq)
		return *c.current
	}
	c.storedSeq = seq
	c.current = &e
	if c.ttl > 0 {
		c.mem.Set(entryKey, &e, c.ttl)
	}
	return e
}

func (c *Cache) fetch(ctx context.Context) Entry {
	start := c.now()
	table, err := c.source.List(ctx)
	if err == nil {
		remoteLatency.Observe(time.Since(start).Seconds())
		cacheRefreshes.WithLabelValues("remote").Inc()
		zap.S().Debugf("Fetched %d rows from worksheet %q", len(table.Rows), table.Title)
		return c.newEntry(table, false)
	}

	kind := store.KindOf(err)
	remoteErrors.WithLabelValues(kind.String()).Inc()
	zap.S().Warnf("Remote store failed (%s), using local fallback: %v", kind, err)
	cacheRefreshes.WithLabelValues("fallback").Inc()
	return c.newEntry(c.fallback.Load(), true)
}

func (c *Cache) newEntry(table store.Table, fromFallback bool) Entry {
	headers := table.Headers
	if headers == nil {
		headers = []string{}
	}
	rows := table.Rows
	if rows == nil {
		rows = [][]string{}
	}
	return Entry{
		Timestamp:   c.now(),
		Headers:     headers,
		Rows:        rows,
		Label:       table.Title,
		Fallback:    fromFallback,
		Fingerprint: internal.TableFingerprint(table.Title, headers, rows),
	}
}
