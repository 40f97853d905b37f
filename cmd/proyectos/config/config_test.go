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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultSheetID, cfg.SheetID)
	assert.Equal(t, "credentials.json", cfg.CredentialsFile)
	assert.Equal(t, BackendSheets, cfg.StoreBackend)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL)
	assert.Equal(t, 15*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, "static/data.json", cfg.LocalDataJSON)
	assert.True(t, cfg.WatchLocalData)
	assert.Equal(t, 5000, cfg.HTTPPort)
	assert.Equal(t, 2112, cfg.MetricsPort)
	assert.Equal(t, 8086, cfg.HealthPort)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxContentLength)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHEET_ID", "abc")
	t.Setenv("CACHE_TTL", "0")
	t.Setenv("STORE_BACKEND", "xlsx")
	t.Setenv("XLSX_PATH", "/tmp/registro.xlsx")
	t.Setenv("WATCH_LOCAL_DATA", "false")
	t.Setenv("HTTP_PORT", "8080")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.SheetID)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL)
	assert.Equal(t, BackendXLSX, cfg.StoreBackend)
	assert.Equal(t, "/tmp/registro.xlsx", cfg.XLSXPath)
	assert.False(t, cfg.WatchLocalData)
	assert.Equal(t, 8080, cfg.HTTPPort)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"CACHE_TTL":          "soon",
		"STORE_BACKEND":      "postgres",
		"MAX_CONTENT_LENGTH": "0",
		"REMOTE_TIMEOUT":     "-1",
		"HEALTH_PORT":        "70000",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
