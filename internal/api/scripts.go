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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pymenow/f3backEnd/internal/core/model"
)

type presampleBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Script      string `json:"script"`
}

type addVersionBody struct {
	ScriptID      string `json:"scriptId"`
	ScriptContent string `json:"scriptContent"`
	FileURL       string `json:"fileURL"`
}

// ScriptRouter registers the script lifecycle routes: creation with
// screening, new versions and the read endpoints.
func ScriptRouter(r *gin.RouterGroup, deps *Dependencies) {
	scripts := r.Group("/scripts")
	{
		scripts.POST("/presampling", func(c *gin.Context) {
			var body presampleBody
			if !bindJSON(c, &body) {
				return
			}
			result, err := deps.Scripts.Presample(c.Request.Context(), CallerID(c), body.Title, body.Description, body.Script)
			if err != nil {
				renderError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"message":         "Presampling completed successfully!",
				"scriptId":        result.ScriptID,
				"versionId":       result.VersionID,
				"analysisResults": result.Results,
			})
		})

		scripts.POST("/add-version", func(c *gin.Context) {
			var body addVersionBody
			if !bindJSON(c, &body) {
				return
			}
			result, err := deps.Scripts.AddVersion(c.Request.Context(), CallerID(c), body.ScriptID, body.ScriptContent, body.FileURL)
			if err != nil {
				renderError(c, err)
				return
			}
			out := gin.H{
				"message":       "New version added successfully.",
				"versionId":     result.VersionID,
				"versionNumber": result.VersionNumber,
			}
			if result.Results != nil {
				out["analysisResults"] = result.Results
			}
			c.JSON(http.StatusCreated, out)
		})

		scripts.GET("/get-script", func(c *gin.Context) {
			includeDetails, _ := strconv.ParseBool(c.DefaultQuery("includeDetails", "false"))
			view, err := deps.Scripts.GetScript(c.Request.Context(), CallerID(c), c.Query("scriptId"), c.Query("versionId"), includeDetails)
			if err != nil {
				renderError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Script retrieved successfully.", "script": view})
		})

		scripts.GET("/get-analysis", func(c *gin.Context) {
			key := model.VersionKey{UserID: CallerID(c), ScriptID: c.Query("scriptId"), VersionID: c.Query("versionId")}
			analyses, err := deps.Scripts.GetAnalyses(c.Request.Context(), key, c.Query("analysisType"))
			if err != nil {
				renderError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Analyses retrieved successfully.", "analyses": analyses})
		})
	}
}
