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

	"github.com/gin-gonic/gin"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/commands"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

type imageBody struct {
	ScriptID     string `json:"scriptId"`
	VersionID    string `json:"versionId"`
	Prompt       string `json:"prompt"`
	ArtifactType string `json:"artifactType"`
	APIPath      string `json:"apiPath"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Prod         bool   `json:"prod"`
}

// ImageRouter registers the image generation route. `prod` selects Flux,
// otherwise FAL renders the image.
func ImageRouter(r *gin.RouterGroup, deps *Dependencies) {
	r.POST("/scripts/fram3AIImage", func(c *gin.Context) {
		var body imageBody
		if !bindJSON(c, &body) {
			return
		}
		if body.ScriptID == "" || body.VersionID == "" || body.Prompt == "" {
			renderError(c, apperr.New(apperr.Validation, "Missing required fields: scriptId, versionId, and prompt are mandatory."))
			return
		}
		artifactType := model.ArtifactImages
		if body.ArtifactType != "" {
			t, ok := model.ParseArtifactType(body.ArtifactType)
			if !ok {
				renderError(c, apperr.New(apperr.Validation, "Invalid artifact type."))
				return
			}
			artifactType = t
		}

		result, err := deps.Images.Run(c.Request.Context(), &commands.ImageRequest{
			UserID:       CallerID(c),
			ScriptID:     body.ScriptID,
			VersionID:    body.VersionID,
			Prompt:       body.Prompt,
			ArtifactType: artifactType,
			APIPath:      body.APIPath,
			Width:        body.Width,
			Height:       body.Height,
			Prod:         body.Prod,
		})
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":   "Image generated and saved successfully!",
			"signedUrl": result.SignedURL,
			"path":      result.Path,
			"uri":       result.URI,
		})
	})
}
