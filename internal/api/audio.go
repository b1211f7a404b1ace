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
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/speech"
)

type sceneAudioBody struct {
	ScriptID  string `json:"scriptId"`
	VersionID string `json:"versionId"`
}

type synthesizeBody struct {
	Text      string `json:"text"`
	ScriptID  string `json:"scriptId"`
	VersionID string `json:"versionId"`
	Gender    string `json:"gender"`
}

// AudioRouter registers the media synthesis routes.
//
// scene-audio only hands the version to the media trigger and answers 202.
// The outcome is observable on the scene analysis record (audioProcessing
// and per-unit audio status). synthesize-audio renders a single unit
// synchronously. The two stream routes send stored audio back as
// audio/mpeg, the list variant concatenates the files in the given order.
func AudioRouter(r *gin.RouterGroup, deps *Dependencies) {
	scripts := r.Group("/scripts")
	{
		scripts.POST("/scene-audio", func(c *gin.Context) {
			var body sceneAudioBody
			if !bindJSON(c, &body) {
				return
			}
			if body.ScriptID == "" || body.VersionID == "" {
				renderError(c, apperr.New(apperr.Validation, "Missing required body parameters: scriptId and versionId."))
				return
			}
			key := model.VersionKey{UserID: CallerID(c), ScriptID: body.ScriptID, VersionID: body.VersionID}
			if err := deps.Media.Trigger(c.Request.Context(), key); err != nil {
				renderError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"message": "Scene audio generation started."})
		})

		scripts.POST("/synthesize-audio", func(c *gin.Context) {
			var body synthesizeBody
			if !bindJSON(c, &body) {
				return
			}
			if body.Text == "" || body.ScriptID == "" || body.VersionID == "" {
				renderError(c, apperr.New(apperr.Validation, "Missing required body parameters: text, scriptId, and versionId."))
				return
			}
			key := model.VersionKey{UserID: CallerID(c), ScriptID: body.ScriptID, VersionID: body.VersionID}
			unit := speech.Unit{Name: "custom_" + uuid.NewString(), Text: body.Text, Gender: speech.NormalizeGender(body.Gender)}
			path, err := deps.Units.Synthesize(c.Request.Context(), key, unit)
			if err != nil {
				renderError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Audio synthesized and saved successfully.", "gcsFilePath": path})
		})

		scripts.GET("/stream-audio", func(c *gin.Context) {
			path := c.Query("filePath")
			if path == "" {
				renderError(c, apperr.New(apperr.Validation, "Missing required parameter: filePath"))
				return
			}
			if !model.OwnsPath(CallerID(c), path) {
				renderError(c, apperr.New(apperr.Authorization, "Unauthorized access to this file."))
				return
			}
			streamAudio(c, deps, []string{path})
		})

		scripts.GET("/stream-audio-list", func(c *gin.Context) {
			raw := c.Query("filePaths")
			if raw == "" {
				renderError(c, apperr.New(apperr.Validation, "Missing required parameter: filePaths"))
				return
			}
			var paths []string
			if err := json.Unmarshal([]byte(raw), &paths); err != nil || len(paths) == 0 {
				renderError(c, apperr.New(apperr.Validation, "filePaths must be a non-empty array."))
				return
			}
			for _, p := range paths {
				if !model.OwnsPath(CallerID(c), p) {
					renderError(c, apperr.New(apperr.Authorization, "Unauthorized access to this file."))
					return
				}
			}
			streamAudio(c, deps, paths)
		})
	}
}

// streamAudio copies the objects one after another into the response. A
// failure before the first byte is rendered as an error. Later failures can
// only cut the stream short.
func streamAudio(c *gin.Context, deps *Dependencies, paths []string) {
	ctx := c.Request.Context()
	started := false
	for _, path := range paths {
		rc, err := deps.Objects.Open(ctx, path)
		if err != nil {
			if !started {
				renderError(c, err)
				return
			}
			slog.ErrorContext(ctx, "audio stream cut short", "path", path, "error", err)
			c.Abort()
			return
		}
		if !started {
			c.Header("Content-Type", speech.AudioContentType)
			c.Status(http.StatusOK)
			started = true
		}
		_, err = io.Copy(c.Writer, rc)
		rc.Close()
		if err != nil {
			slog.WarnContext(ctx, "audio stream interrupted", "path", path, "error", err)
			c.Abort()
			return
		}
		c.Writer.Flush()
	}
}
