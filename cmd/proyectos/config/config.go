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

// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/umh-utils/env"
)

const (
	BackendSheets = "sheets"
	BackendXLSX   = "xlsx"
)

// DefaultSheetID is the registry spreadsheet used when SHEET_ID is unset.
const DefaultSheetID = "1GrPYixg14z76tea7PPvb58BCTRsN96wjikitCDal2OA"

type Config struct {
	SheetID         string
	CredentialsJSON string
	CredentialsFile string
	StoreBackend    string
	XLSXPath        string
	RemoteTimeout   time.Duration

	CacheTTL       time.Duration
	LocalDataJSON  string
	WatchLocalData bool

	HTTPPort         int
	MetricsPort      int
	HealthPort       int
	MaxContentLength int64
	StaticDir        string
	LogoPath         string
}

// Load reads every setting, applying defaults for the optional ones.
func Load() (Config, error) {
	var (
		cfg Config
		err error
	)
	if cfg.SheetID, err = env.GetAsString("SHEET_ID", false, DefaultSheetID); err != nil {
		return cfg, err
	}
	if cfg.CredentialsJSON, err = env.GetAsString("GOOGLE_CREDENTIALS_JSON", false, ""); err != nil {
		return cfg, err
	}
	if cfg.CredentialsFile, err = env.GetAsString("GOOGLE_APPLICATION_CREDENTIALS", false, "credentials.json"); err != nil {
		return cfg, err
	}
	if cfg.StoreBackend, err = env.GetAsString("STORE_BACKEND", false, BackendSheets); err != nil {
		return cfg, err
	}
	if cfg.XLSXPath, err = env.GetAsString("XLSX_PATH", false, "data/proyectos.xlsx"); err != nil {
		return cfg, err
	}
	remoteTimeout, err := env.GetAsInt("REMOTE_TIMEOUT", false, 15)
	if err != nil {
		return cfg, err
	}
	cfg.RemoteTimeout = time.Duration(remoteTimeout) * time.Second

	cacheTTL, err := env.GetAsInt("CACHE_TTL", false, 60)
	if err != nil {
		return cfg, err
	}
	cfg.CacheTTL = time.Duration(cacheTTL) * time.Second
	if cfg.LocalDataJSON, err = env.GetAsString("LOCAL_DATA_JSON", false, "static/data.json"); err != nil {
		return cfg, err
	}
	if cfg.WatchLocalData, err = env.GetAsBool("WATCH_LOCAL_DATA", false, true); err != nil {
		return cfg, err
	}

	if cfg.HTTPPort, err = env.GetAsInt("HTTP_PORT", false, 5000); err != nil {
		return cfg, err
	}
	if cfg.MetricsPort, err = env.GetAsInt("METRICS_PORT", false, 2112); err != nil {
		return cfg, err
	}
	if cfg.HealthPort, err = env.GetAsInt("HEALTH_PORT", false, 8086); err != nil {
		return cfg, err
	}
	maxContentLength, err := env.GetAsInt("MAX_CONTENT_LENGTH", false, 10*1024*1024)
	if err != nil {
		return cfg, err
	}
	cfg.MaxContentLength = int64(maxContentLength)
	if cfg.StaticDir, err = env.GetAsString("STATIC_DIR", false, "static"); err != nil {
		return cfg, err
	}
	if cfg.LogoPath, err = env.GetAsString("LOGO_PATH", false, "Logo_UNILIBRE.png"); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendSheets:
		if c.SheetID == "" {
			return fmt.Errorf("SHEET_ID must not be empty")
		}
	case BackendXLSX:
		if c.XLSXPath == "" {
			return fmt.Errorf("XLSX_PATH must not be empty when STORE_BACKEND is %s", BackendXLSX)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %s or %s, got %q", BackendSheets, BackendXLSX, c.StoreBackend)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive")
	}
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive")
	}
	for name, port := range map[string]int{"HTTP_PORT": c.HTTPPort, "METRICS_PORT": c.MetricsPort, "HEALTH_PORT": c.HealthPort} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
		}
	}
	return nil
}
