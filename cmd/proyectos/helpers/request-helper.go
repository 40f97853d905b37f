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

package helpers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Client-facing error messages.
const (
	MsgInternal        = "Error interno del servidor"
	MsgBadRequest      = "Solicitud inválida"
	MsgNotFound        = "Recurso no encontrado"
	MsgPayloadTooLarge = "Payload demasiado grande"
)

// HandleInternalServerError logs err and answers with a generic 500 body.
// The error detail never reaches the client.
func HandleInternalServerError(c *gin.Context, err error) {
	if c == nil {
		panic("HandleInternalServerError: c is nil")
	}
	if err == nil {
		err = errors.New("unknown error")
	}

	zap.S().Errorw(
		"Internal server error",
		"error", err,
		"route", c.FullPath(),
	)

	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": MsgInternal})
}

// HandleInvalidInputError answers with 400 and message as the error text.
// An empty message falls back to the generic one.
func HandleInvalidInputError(c *gin.Context, message string) {
	if c == nil {
		panic("HandleInvalidInputError: c is nil")
	}
	if message == "" {
		message = MsgBadRequest
	}
	zap.S().Infow(
		"Invalid input",
		"error", message,
		"route", c.FullPath(),
	)

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

func HandleNotFound(c *gin.Context) {
	if c == nil {
		panic("HandleNotFound: c is nil")
	}
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": MsgNotFound})
}

func HandlePayloadTooLarge(c *gin.Context) {
	if c == nil {
		panic("HandlePayloadTooLarge: c is nil")
	}
	zap.S().Infow(
		"Payload too large",
		"route", c.FullPath(),
		"content_length", c.Request.ContentLength,
	)
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": MsgPayloadTooLarge})
}

// IsBodyTooLarge reports whether err came from a body read past its limit.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
