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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pymenow/f3backEnd/internal/core/commands"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// analysisRoutes maps each route under /scripts onto the analysis it runs.
var analysisRoutes = map[string]model.AnalysisType{
	"info":             model.ScriptInfo,
	"brand-analysis":   model.BrandAnalysis,
	"script-summary":   model.ScriptSummary,
	"rating":           model.Rating,
	"emotion-analysis": model.EmotionAnalysis,
	"scene-analysis":   model.SceneAnalysis,
	"shot-list":        model.ShotList,
	"prompt-generator": model.PromptGenerator,
	"story-plot":       model.StoryPlot,
}

type analysisBody struct {
	UserID    string `json:"userId"`
	ScriptID  string `json:"scriptId"`
	VersionID string `json:"versionId"`
}

// AnalysisRouter registers one POST route per analysis type. With
// `?stream=true` the model chunks are sent as NDJSON while they arrive.
func AnalysisRouter(r *gin.RouterGroup, deps *Dependencies) {
	scripts := r.Group("/scripts")
	for route, analysisType := range analysisRoutes {
		scripts.POST("/"+route, analysisHandler(deps, analysisType))
	}
}

func analysisHandler(deps *Dependencies, analysisType model.AnalysisType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body analysisBody
		if !bindJSON(c, &body) {
			return
		}

		req := &commands.AnalysisRequest{
			CallerID:     CallerID(c),
			UserID:       body.UserID,
			ScriptID:     body.ScriptID,
			VersionID:    body.VersionID,
			AnalysisType: analysisType,
			Stream:       c.Query("stream") == "true",
		}

		if !req.Stream {
			record, err := deps.Analysis.Run(c.Request.Context(), req)
			if err != nil {
				renderError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Analysis completed!", "finalOutput": record})
			return
		}

		sink := newNDJSONSink(c)
		req.Sink = sink
		_, err := deps.Analysis.Run(c.Request.Context(), req)
		switch {
		case err != nil && !sink.Started():
			renderError(c, err)
		case err != nil:
			// Chunks already went out, the status line cannot change.
			slog.ErrorContext(c.Request.Context(), "streamed analysis failed after first chunk", "analysisType", analysisType, "error", err)
		case !sink.Started():
			c.Header("Content-Type", "application/x-ndjson")
			c.Status(http.StatusOK)
		}
	}
}
