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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements the
// image generation workflow.
package workflow

import (
	goctx "context"
	"net/http"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/commands"
	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/imagery"
	"github.com/pymenow/f3backEnd/internal/core/services"
)

// ImageResult is what the caller gets back from an image generation.
type ImageResult struct {
	Path      string `json:"path"`
	URI       string `json:"uri"`
	SignedURL string `json:"signedUrl"`
}

// ImageGenerationWorkflow chains generate, download, watermark, upload and
// sign.
type ImageGenerationWorkflow struct {
	cor.BaseCommand
	objects services.ObjectStore
	chain   cor.Chain
}

// NewImageGenerationWorkflow is the constructor for the ImageGenerationWorkflow.
//
// Inputs:
//   - providers: Image providers keyed by imagery.ProviderFlux and imagery.ProviderFal.
//   - httpClient: Client used to download the generated image.
//   - maxBytes: Largest accepted image.
//   - watermarker: Optional, a nil watermarker leaves images untouched.
//   - objects: Where the final image is stored.
func NewImageGenerationWorkflow(
	providers map[string]imagery.Provider,
	httpClient *http.Client,
	maxBytes int64,
	watermarker *imagery.Watermarker,
	objects services.ObjectStore) *ImageGenerationWorkflow {

	w := &ImageGenerationWorkflow{BaseCommand: *cor.NewBaseCommand("image-generation-workflow"), objects: objects}

	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewGenerateImage("generate-image", providers))
	out.AddCommand(commands.NewDownloadImage("download-image", httpClient, maxBytes))
	out.AddCommand(commands.NewWatermarkImage("watermark-image", watermarker))
	out.AddCommand(commands.NewUploadArtifact("upload-artifact", objects))
	out.AddCommand(commands.NewSignArtifact("sign-artifact", objects))
	w.chain = out
	return w
}

// Execute runs the underlying chain.
func (w *ImageGenerationWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Run generates and stores one image.
func (w *ImageGenerationWorkflow) Run(ctx goctx.Context, req *commands.ImageRequest) (*ImageResult, error) {
	chCtx := cor.NewBaseContextWith(ctx)
	defer chCtx.Close()
	chCtx.Add(commands.ParamImageRequest, req)

	w.Execute(chCtx)
	if err := chCtx.Err(); err != nil {
		return nil, err
	}

	path, _ := chCtx.Get(commands.ParamArtifactPath).(string)
	signed, _ := chCtx.Get(commands.ParamSignedURL).(string)
	if path == "" || signed == "" {
		return nil, apperr.New(apperr.Internal, "image generation finished without an artifact")
	}
	return &ImageResult{Path: path, URI: w.objects.URI(path), SignedURL: signed}, nil
}
