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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// steps of the image generation workflow.
//
// Logic Flow:
//  1. GenerateImage submits the prompt to Flux (prod) or FAL and waits for the
//     provider to report a result URL.
//  2. DownloadImage fetches the result and sniffs it, anything that is not an
//     image is rejected.
//  3. WatermarkImage overlays the configured watermark. Without a configured
//     watermark the bytes pass through untouched.
package commands

import (
	"net/http"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/imagery"
	"github.com/pymenow/f3backEnd/internal/core/model"
)

// ImageRequest is the input of the image generation workflow.
type ImageRequest struct {
	UserID       string
	ScriptID     string
	VersionID    string
	Prompt       string
	ArtifactType model.ArtifactType
	APIPath      string
	Width        int
	Height       int
	Prod         bool // Selects Flux instead of FAL.
}

// Key returns the version the image belongs to.
func (r *ImageRequest) Key() model.VersionKey {
	return model.VersionKey{UserID: r.UserID, ScriptID: r.ScriptID, VersionID: r.VersionID}
}

// ImageData is an image held in memory between steps.
type ImageData struct {
	Bytes    []byte
	MIMEType string
}

func imageRequest(context cor.Context) *ImageRequest {
	req, _ := context.Get(ParamImageRequest).(*ImageRequest)
	return req
}

// GenerateImage asks the selected provider for an image.
type GenerateImage struct {
	cor.BaseCommand
	providers map[string]imagery.Provider
}

func NewGenerateImage(name string, providers map[string]imagery.Provider) *GenerateImage {
	return &GenerateImage{BaseCommand: *cor.NewBaseCommand(name), providers: providers}
}

func (c *GenerateImage) IsExecutable(context cor.Context) bool {
	return context != nil && imageRequest(context) != nil
}

func (c *GenerateImage) Execute(context cor.Context) {
	req := imageRequest(context)
	if req.Prompt == "" || req.ScriptID == "" || req.VersionID == "" {
		c.Fail(context, apperr.New(apperr.Validation, "Missing required fields: scriptId, versionId and prompt."))
		return
	}

	name := imagery.ProviderFal
	if req.Prod {
		name = imagery.ProviderFlux
	}
	provider, ok := c.providers[name]
	if !ok {
		c.Fail(context, apperr.New(apperr.Configuration, "image provider %s is not configured", name))
		return
	}

	url, err := provider.Generate(context.GetContext(), imagery.Request{
		Prompt:  req.Prompt,
		APIPath: req.APIPath,
		Width:   req.Width,
		Height:  req.Height,
	})
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	context.Add(ParamImageURL, url)
}

// DownloadImage fetches the generated image.
type DownloadImage struct {
	cor.BaseCommand
	client   *http.Client
	maxBytes int64
}

func NewDownloadImage(name string, client *http.Client, maxBytes int64) *DownloadImage {
	if client == nil {
		client = http.DefaultClient
	}
	return &DownloadImage{BaseCommand: *cor.NewBaseCommand(name), client: client, maxBytes: maxBytes}
}

func (c *DownloadImage) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamImageURL) != nil
}

func (c *DownloadImage) Execute(context cor.Context) {
	url := context.Get(ParamImageURL).(string)
	data, mime, err := imagery.Fetch(context.GetContext(), c.client, url, c.maxBytes)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	context.Add(ParamImageBytes, &ImageData{Bytes: data, MIMEType: mime})
}

// WatermarkImage stamps the image. The result is always PNG.
type WatermarkImage struct {
	cor.BaseCommand
	watermarker *imagery.Watermarker
}

func NewWatermarkImage(name string, watermarker *imagery.Watermarker) *WatermarkImage {
	return &WatermarkImage{BaseCommand: *cor.NewBaseCommand(name), watermarker: watermarker}
}

func (c *WatermarkImage) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamImageBytes) != nil
}

func (c *WatermarkImage) Execute(context cor.Context) {
	if !c.watermarker.Enabled() {
		c.Succeed(context)
		return
	}
	img := context.Get(ParamImageBytes).(*ImageData)
	out, err := c.watermarker.Apply(img.Bytes)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	context.Add(ParamImageBytes, &ImageData{Bytes: out, MIMEType: "image/png"})
}
