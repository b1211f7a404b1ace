// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
)

// renderError writes {"error": message} with the status of the error kind.
// Server side failures are logged with their full detail and answered with a
// generic message.
func renderError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "kind", apperr.KindOf(err).String(), "error", err)
	} else {
		slog.InfoContext(c.Request.Context(), "request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

// bindJSON decodes the body into req and renders a 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		renderError(c, apperr.Wrap(apperr.Validation, err, "Invalid request body."))
		return false
	}
	return true
}

// ndjsonSink writes one JSON chunk per line to the response and flushes
// after each line. The first write commits a 200 with the NDJSON content
// type. Once a write fails, or the client has gone, every later call fails.
type ndjsonSink struct {
	mu      sync.Mutex
	c       *gin.Context
	written bool
	broken  error
}

var errClientGone = errors.New("stream client went away")

func newNDJSONSink(c *gin.Context) *ndjsonSink {
	return &ndjsonSink{c: c}
}

func (s *ndjsonSink) WriteChunk(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken != nil {
		return s.broken
	}
	if err := s.c.Request.Context().Err(); err != nil {
		s.broken = errors.Join(errClientGone, err)
		return s.broken
	}
	if !s.written {
		s.c.Header("Content-Type", "application/x-ndjson")
		s.c.Header("Cache-Control", "no-cache")
		s.c.Status(http.StatusOK)
		s.written = true
	}
	line := make([]byte, 0, len(chunk)+1)
	line = append(line, chunk...)
	line = append(line, '\n')
	if _, err := s.c.Writer.Write(line); err != nil {
		s.broken = errors.Join(errClientGone, err)
		return s.broken
	}
	s.c.Writer.Flush()
	return nil
}

// Started reports whether any part of the body was sent.
func (s *ndjsonSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}
