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
// last two steps of the image generation workflow.
//
// Logic Flow:
//  1. UploadArtifact stores the image in the artifacts bucket under
//     `{uid}/{scriptId}/{versionId}/{artifactType}/{uuid}.png`.
//  2. SignArtifact issues a short lived V4 signed URL for the stored object
//     and passes it on as the workflow output.
package commands

import (
	"github.com/google/uuid"

	"github.com/pymenow/f3backEnd/internal/core/cor"
	"github.com/pymenow/f3backEnd/internal/core/model"
	"github.com/pymenow/f3backEnd/internal/core/services"
)

// UploadArtifact persists the in-memory image.
type UploadArtifact struct {
	cor.BaseCommand
	objects services.ObjectStore
}

func NewUploadArtifact(name string, objects services.ObjectStore) *UploadArtifact {
	return &UploadArtifact{BaseCommand: *cor.NewBaseCommand(name), objects: objects}
}

func (c *UploadArtifact) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamImageBytes) != nil && imageRequest(context) != nil
}

func (c *UploadArtifact) Execute(context cor.Context) {
	req := imageRequest(context)
	img := context.Get(ParamImageBytes).(*ImageData)

	artifactType := req.ArtifactType
	if artifactType == "" {
		artifactType = model.ArtifactImages
	}
	path := model.ArtifactPath(req.Key(), artifactType, uuid.NewString()+".png")

	if err := c.objects.Save(context.GetContext(), path, img.MIMEType, img.Bytes); err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	context.Add(ParamArtifactPath, path)
}

// SignArtifact issues the signed URL of the uploaded artifact.
type SignArtifact struct {
	cor.BaseCommand
	objects services.ObjectStore
}

func NewSignArtifact(name string, objects services.ObjectStore) *SignArtifact {
	return &SignArtifact{BaseCommand: *cor.NewBaseCommand(name), objects: objects}
}

func (c *SignArtifact) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(ParamArtifactPath) != nil
}

func (c *SignArtifact) Execute(context cor.Context) {
	path := context.Get(ParamArtifactPath).(string)
	url, err := c.objects.SignedURL(context.GetContext(), path)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	context.Add(ParamSignedURL, url)
	context.Add(cor.CtxOut, url)
}
