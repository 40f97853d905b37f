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
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/unilibre/proyectos/cmd/proyectos/controllers"
	"github.com/unilibre/proyectos/cmd/proyectos/helpers"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const staticPrefix = "/static"

// SetupRestAPI builds the router with its middleware chain and every route.
func SetupRestAPI(ctl *controllers.Controller, maxBodyBytes int64, staticDir string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))

	// Logs all panic to error log and answers with the generic 500 body
	router.Use(ginzap.CustomRecoveryWithZap(zap.L(), true, func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": helpers.MsgInternal})
	}))

	router.Use(securityHeaders())
	router.Use(bodyLimit(maxBodyBytes))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/exportar_pdf", "/exportar_excel"})))

	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))
	router.Static(staticPrefix, staticDir)

	ctl.Register(router)
	router.NoRoute(helpers.HandleNotFound)

	return router
}

// securityHeaders sets the hardening headers and a no-store default that
// handlers may override.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-XSS-Protection", "1; mode=block")
		if !strings.HasPrefix(c.Request.URL.Path, staticPrefix+"/") {
			h.Set("Cache-Control", "no-store")
		}
		c.Next()
	}
}

// bodyLimit rejects declared oversized bodies up front and caps the rest while they are read.
func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			helpers.HandlePayloadTooLarge(c)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
