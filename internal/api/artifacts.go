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

// Package api holds the HTTP surface of the server. This file defines the
// artifact routes, which store and serve the files a user attaches to a
// script version.
//
// Logic Flow:
//  1. Uploads (multipart or by URL) are read fully, bounded by
//     MaxUploadBytes, and their MIME type is sniffed with filetype.
//  2. Objects are stored under {uid}/{scriptId}/{versionId}/{artifactType}/.
//  3. retrieve and delete accept a full path, or the parts it is made of. A
//     path outside the caller's prefix is rejected with 403.
package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

type uploadURLBody struct {
	ScriptID     string `json:"scriptId"`
	VersionID    string `json:"versionId"`
	ArtifactType string `json:"artifactType"`
	FileURL      string `json:"fileUrl"`
	URL          string `json:"url"`
}

// ArtifactRouter registers the upload, retrieve and delete routes.
func ArtifactRouter(r *gin.RouterGroup, deps *Dependencies) {
	artifacts := r.Group("/artifacts")
	{
		artifacts.POST("/upload-file", func(c *gin.Context) {
			key, artifactType, err := artifactTarget(CallerID(c), c.PostForm("scriptId"), c.PostForm("versionId"), c.PostForm("artifactType"))
			if err != nil {
				renderError(c, err)
				return
			}
			header, err := c.FormFile("file")
			if err != nil {
				renderError(c, apperr.Wrap(apperr.Validation, err, "Missing required fields or file."))
				return
			}
			file, err := header.Open()
			if err != nil {
				renderError(c, apperr.Wrap(apperr.Validation, err, "Unreadable file."))
				return
			}
			defer file.Close()

			data, err := readBounded(file, deps.MaxUploadBytes)
			if err != nil {
				renderError(c, err)
				return
			}
			contentType, _ := sniff(data, header.Header.Get("Content-Type"))
			name := path.Base(header.Filename)
			if name == "." || name == "/" {
				name = uuid.NewString()
			}
			storeArtifact(c, deps, model.ArtifactPath(key, artifactType, name), contentType, data)
		})

		artifacts.POST("/upload", func(c *gin.Context) {
			var body uploadURLBody
			if !bindJSON(c, &body) {
				return
			}
			source := body.FileURL
			if source == "" {
				source = body.URL
			}
			if source == "" {
				renderError(c, apperr.New(apperr.Validation, "Missing required fields."))
				return
			}
			key, artifactType, err := artifactTarget(CallerID(c), body.ScriptID, body.VersionID, body.ArtifactType)
			if err != nil {
				renderError(c, err)
				return
			}
			data, err := download(c, deps, source)
			if err != nil {
				renderError(c, err)
				return
			}
			contentType, extension := sniff(data, "")
			name := uuid.NewString() + extension
			storeArtifact(c, deps, model.ArtifactPath(key, artifactType, name), contentType, data)
		})

		artifacts.GET("/retrieve", func(c *gin.Context) {
			objectPath, err := requestedPath(CallerID(c), c.Query)
			if err != nil {
				renderError(c, err)
				return
			}
			signed, err := deps.Objects.SignedURL(c.Request.Context(), objectPath)
			if err != nil {
				renderError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Artifact retrieved successfully!", "signedUrl": signed})
		})

		artifacts.DELETE("/delete", func(c *gin.Context) {
			objectPath, err := requestedPath(CallerID(c), c.Query)
			if err != nil {
				renderError(c, err)
				return
			}
			if err := deps.Objects.Delete(c.Request.Context(), objectPath); err != nil {
				renderError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Artifact deleted successfully."})
		})
	}
}

func artifactTarget(uid, scriptID, versionID, artifactType string) (model.VersionKey, model.ArtifactType, error) {
	if scriptID == "" || versionID == "" || artifactType == "" {
		return model.VersionKey{}, "", apperr.New(apperr.Validation, "Missing required fields or file.")
	}
	t, ok := model.ParseArtifactType(artifactType)
	if !ok {
		return model.VersionKey{}, "", apperr.New(apperr.Validation, "Invalid artifact type.")
	}
	return model.VersionKey{UserID: uid, ScriptID: scriptID, VersionID: versionID}, t, nil
}

// requestedPath resolves `path`, or scriptId/versionId/artifactType/fileName,
// into an object path the caller owns.
func requestedPath(uid string, query func(string) string) (string, error) {
	if p := query("path"); p != "" {
		if !model.OwnsPath(uid, p) {
			return "", apperr.New(apperr.Authorization, "Unauthorized access to this file.")
		}
		return p, nil
	}
	key, artifactType, err := artifactTarget(uid, query("scriptId"), query("versionId"), query("artifactType"))
	if err != nil {
		return "", err
	}
	name := query("fileName")
	if name == "" || path.Base(name) != name {
		return "", apperr.New(apperr.Validation, "Missing required query parameters.")
	}
	return model.ArtifactPath(key, artifactType, name), nil
}

func storeArtifact(c *gin.Context, deps *Dependencies, objectPath, contentType string, data []byte) {
	if err := deps.Objects.Save(c.Request.Context(), objectPath, contentType, data); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Artifact uploaded successfully!",
		"artifactPath": deps.Objects.URI(objectPath),
		"path":         objectPath,
	})
}

func readBounded(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "Unreadable file.")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, apperr.New(apperr.Validation, "File exceeds %d bytes.", maxBytes)
	}
	return data, nil
}

func download(c *gin.Context, deps *Dependencies, url string) ([]byte, error) {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "Invalid file URL.")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.Validation, "File URL answered with status %d.", resp.StatusCode)
	}
	return readBounded(resp.Body, deps.MaxUploadBytes)
}

// sniff prefers the type detected from the bytes and falls back to the
// declared one. The extension is empty when none is known.
func sniff(data []byte, declared string) (contentType string, extension string) {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value, "." + kind.Extension
	}
	if declared == "" {
		return "application/octet-stream", ""
	}
	if exts, err := mime.ExtensionsByType(declared); err == nil && len(exts) > 0 {
		return declared, exts[0]
	}
	return declared, ""
}
