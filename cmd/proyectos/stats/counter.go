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

package stats

import (
	"bytes"
	"sort"

	"github.com/goccy/go-json"
)

// Counter counts occurrences per key and remembers the order keys first appeared in.
type Counter struct {
	keys   []string
	counts map[string]int
}

func NewCounter() Counter {
	return Counter{counts: map[string]int{}}
}

func (c *Counter) Add(key string) {
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	if _, ok := c.counts[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.counts[key]++
}

func (c Counter) Get(key string) int {
	return c.counts[key]
}

func (c Counter) Keys() []string {
	return c.keys
}

func (c Counter) Len() int {
	return len(c.keys)
}

// TopN returns the n keys with the highest counts. Ties keep their first-seen order.
func (c Counter) TopN(n int) Counter {
	keys := append([]string{}, c.keys...)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})
	return c.subset(keys[:min(n, len(keys))])
}

// LastNByKey returns the n greatest keys in ascending key order.
func (c Counter) LastNByKey(n int) Counter {
	keys := append([]string{}, c.keys...)
	sort.Strings(keys)
	return c.subset(keys[max(0, len(keys)-n):])
}

func (c Counter) subset(keys []string) Counter {
	out := NewCounter()
	for _, k := range keys {
		out.keys = append(out.keys, k)
		out.counts[k] = c.counts[k]
	}
	return out
}

// MarshalJSON encodes the counter as an object in key order.
func (c Counter) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(c.counts[k])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
