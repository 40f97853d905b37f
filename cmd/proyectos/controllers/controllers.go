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

// Package controllers holds the gin handlers of the registry API.
package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/unilibre/proyectos/cmd/proyectos/cache"
	"github.com/unilibre/proyectos/cmd/proyectos/export"
	"github.com/unilibre/proyectos/cmd/proyectos/helpers"
	"github.com/unilibre/proyectos/cmd/proyectos/records"
	"github.com/unilibre/proyectos/cmd/proyectos/stats"
	"github.com/unilibre/proyectos/cmd/proyectos/writepath"
	"github.com/unilibre/proyectos/internal"
	"github.com/unilibre/proyectos/pkg/datamodel"
	"go.uber.org/zap"
)

const (
	MsgNothingToExport = "No hay datos para exportar"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// EntrySource serves cached table snapshots. *cache.Cache satisfies it.
type EntrySource interface {
	Get(ctx context.Context, force bool) cache.Entry
}

// RecordWriter persists submissions. *writepath.Writer satisfies it.
type RecordWriter interface {
	Add(ctx context.Context, p writepath.Payload) error
	Update(ctx context.Context, p writepath.Payload) error
}

type Options struct {
	SheetID  string
	CacheTTL time.Duration
	LogoPath string
}

type Controller struct {
	entries EntrySource
	writer  RecordWriter
	opts    Options
	now     func() time.Time
}

func New(entries EntrySource, writer RecordWriter, opts Options) *Controller {
	return &Controller{entries: entries, writer: writer, opts: opts, now: time.Now}
}

// Register mounts every route on r.
func (ctl *Controller) Register(r gin.IRoutes) {
	r.GET("/", ctl.Index)
	r.GET("/verificar-conexion", ctl.VerifyConnection)
	r.GET("/mostrar_todos", ctl.ShowAll)
	r.POST("/buscar", ctl.Search)
	r.POST("/agregar", ctl.Add)
	r.POST("/actualizar", ctl.Update)
	r.POST("/exportar_pdf", ctl.ExportPDF)
	r.GET("/exportar_excel", ctl.ExportExcel)
	r.GET("/estadisticas-detalladas", ctl.Statistics)
	r.GET("/health", ctl.Health)
}

func (ctl *Controller) Index(c *gin.Context) {
	c.Header("Cache-Control", "")
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Year": ctl.now().Year(),
	})
}

func (ctl *Controller) VerifyConnection(c *gin.Context) {
	entry := ctl.entries.Get(c.Request.Context(), true)
	total := len(entry.Rows)
	if entry.Fallback {
		c.JSON(http.StatusOK, gin.H{
			"estado":          "local",
			"mensaje":         fmt.Sprintf("Sin conexión con Google Sheets. %d registros en respaldo local", total),
			"total_registros": total,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"estado":          "conectado",
		"mensaje":         fmt.Sprintf("Conexión exitosa. %d registros en hoja \"%s\"", total, entry.Label),
		"total_registros": total,
	})
}

func (ctl *Controller) ShowAll(c *gin.Context) {
	entry := ctl.entries.Get(c.Request.Context(), false)
	etag := `"` + entry.Fingerprint + `"`
	c.Header("Cache-Control", "public, max-age=30")
	c.Header("ETag", etag)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resultados": records.Materialize(entry.Headers, entry.Rows, entry.Label)})
}

func (ctl *Controller) Search(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	var term string
	if _, values, err := datamodel.DecodeOrderedObject(body); err == nil {
		term = datamodel.CellString(values["termino"])
	}
	entry := ctl.entries.Get(c.Request.Context(), false)
	recs := records.Materialize(entry.Headers, entry.Rows, entry.Label)
	c.JSON(http.StatusOK, gin.H{"resultados": records.Search(term, recs)})
}

func (ctl *Controller) Add(c *gin.Context) {
	ctl.write(c, ctl.writer.Add, writepath.MsgAdded)
}

func (ctl *Controller) Update(c *gin.Context) {
	ctl.write(c, ctl.writer.Update, writepath.MsgUpdated)
}

func (ctl *Controller) write(c *gin.Context, op func(context.Context, writepath.Payload) error, success string) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	payload, err := writepath.ParsePayload(body)
	if err == nil {
		err = op(c.Request.Context(), payload)
	}
	var verr *writepath.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"mensaje": success})
	case errors.As(err, &verr):
		helpers.HandleInvalidInputError(c, verr.Message)
	default:
		helpers.HandleInternalServerError(c, err)
	}
}

func (ctl *Controller) ExportPDF(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	recs := exportRecords(body)
	if len(recs) == 0 {
		helpers.HandleInvalidInputError(c, MsgNothingToExport)
		return
	}

	now := ctl.now()
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, recs, export.PDFOptions{LogoPath: ctl.opts.LogoPath, Now: now}); err != nil {
		helpers.HandleInternalServerError(c, err)
		return
	}
	attachment(c, export.PDFFilename(now))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// exportRecords decodes {"datos": [...]}. Elements that are not objects are skipped.
func exportRecords(body []byte) []datamodel.Record {
	var req struct {
		Datos []json.RawMessage `json:"datos"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil
	}
	recs := make([]datamodel.Record, 0, len(req.Datos))
	for i, raw := range req.Datos {
		var r datamodel.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			zap.S().Warnf("Skipping export record %d: %v", i, err)
			continue
		}
		recs = append(recs, r)
	}
	return recs
}

func (ctl *Controller) ExportExcel(c *gin.Context) {
	entry := ctl.entries.Get(c.Request.Context(), false)
	if len(entry.Rows) == 0 {
		helpers.HandleInvalidInputError(c, MsgNothingToExport)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteExcel(&buf, entry.Headers, entry.Rows, entry.Label); err != nil {
		helpers.HandleInternalServerError(c, err)
		return
	}
	attachment(c, export.ExcelFilename(ctl.now()))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (ctl *Controller) Statistics(c *gin.Context) {
	entry := ctl.entries.Get(c.Request.Context(), false)
	recs := records.Materialize(entry.Headers, entry.Rows, entry.Label)
	c.Header("Cache-Control", "no-cache")
	c.JSON(http.StatusOK, stats.Compute(recs, ctl.now()))
}

func (ctl *Controller) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": ctl.now().Format(internal.IsoTimestamp),
		"sheet_id":  ctl.opts.SheetID,
		"cache_ttl": int(ctl.opts.CacheTTL / time.Second),
	})
}

func attachment(c *gin.Context, filename string) {
	c.Header("Cache-Control", "")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}

// readBody reads the request body and answers 413 when it exceeds the limit
// installed by the body limit middleware.
func readBody(c *gin.Context) ([]byte, bool) {
	if c.Request.Body == nil {
		return nil, true
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if helpers.IsBodyTooLarge(err) {
			helpers.HandlePayloadTooLarge(c)
			return nil, false
		}
		helpers.HandleInvalidInputError(c, helpers.MsgBadRequest)
		return nil, false
	}
	return body, true
}
