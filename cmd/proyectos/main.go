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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"github.com/unilibre/proyectos/cmd/proyectos/cache"
	"github.com/unilibre/proyectos/cmd/proyectos/config"
	"github.com/unilibre/proyectos/cmd/proyectos/controllers"
	"github.com/unilibre/proyectos/cmd/proyectos/fallback"
	"github.com/unilibre/proyectos/cmd/proyectos/store"
	"github.com/unilibre/proyectos/cmd/proyectos/writepath"
	"github.com/unilibre/proyectos/internal"
	"go.uber.org/zap"
)

func main() {
	InitLogging()

	cfg, err := config.Load()
	if err != nil {
		zap.S().Fatalf("Invalid configuration: %v", err)
	}
	InitPrometheus(cfg.MetricsPort)

	st := newStore(cfg)
	loader := fallback.NewLoader(cfg.LocalDataJSON)
	entries := cache.New(st, loader, cfg.CacheTTL)
	writer := writepath.NewWriter(st, entries)
	ctl := controllers.New(entries, writer, controllers.Options{
		SheetID:  cfg.SheetID,
		CacheTTL: cfg.CacheTTL,
		LogoPath: cfg.LogoPath,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           SetupRestAPI(ctl, cfg.MaxContentLength, cfg.StaticDir),
		ReadHeaderTimeout: internal.FifteenSeconds,
	}

	ctx, cancel := context.WithCancel(context.Background())
	shutdown := internal.NewGracefulShutdown(internal.ThirtySeconds, func(shutdownCtx context.Context) error {
		cancel()
		zap.S().Debugf("Draining http server")
		return srv.Shutdown(shutdownCtx)
	})
	InitHealthCheck(cfg.HealthPort, shutdown)

	if cfg.WatchLocalData {
		if err = fallback.Watch(ctx, loader.Path(), entries.InvalidateFallback); err != nil {
			zap.S().Warnf("Not watching local snapshot: %v", err)
		}
	}

	go func() {
		zap.S().Infof("Listening on %s (store backend %s, cache ttl %s)", srv.Addr, cfg.StoreBackend, cfg.CacheTTL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Errorf("Error starting http server: %s", err)
			shutdown.Shutdown()
		}
	}()

	shutdown.Wait()
	// Wait normally never returns, the shutdown handler exits the process
	select {}
}

func newStore(cfg config.Config) store.Store {
	if cfg.StoreBackend == config.BackendXLSX {
		zap.S().Infof("Using local workbook %s", cfg.XLSXPath)
		return store.NewWorkbook(cfg.XLSXPath)
	}
	zap.S().Infof("Using Google Sheets %s", cfg.SheetID)
	return store.NewSheets(store.SheetsConfig{
		SpreadsheetID:   cfg.SheetID,
		CredentialsJSON: cfg.CredentialsJSON,
		CredentialsFile: cfg.CredentialsFile,
		Timeout:         cfg.RemoteTimeout,
		ReadRetries:     2,
	})
}

func InitLogging() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	_ = logger.New(logLevel)
}

func InitPrometheus(port int) {
	// Prometheus
	metricsPath := "/metrics"
	metricsPort := fmt.Sprintf(":%d", port)
	zap.S().Debugf("Setting up metrics %s %v", metricsPath, metricsPort)

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(metricsPort, mux)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()
}

func InitHealthCheck(port int, shutdown internal.GracefulShutdownHandler) {
	zap.S().Debugf("Setting up healthcheck")

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000000))
	health.AddReadinessCheck("shutdown", func() error {
		if shutdown.ShuttingDown() {
			return errors.New("shutting down")
		}
		return nil
	})
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()
}
