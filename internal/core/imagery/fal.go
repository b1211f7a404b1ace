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

package imagery

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
)

const defaultFalModel = "fal-ai/flux/schnell"

type falImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type falSubmit struct {
	Prompt              string       `json:"prompt"`
	ImageSize           falImageSize `json:"image_size"`
	NumImages           int          `json:"num_images"`
	NumInferenceSteps   int          `json:"num_inference_steps"`
	EnableSafetyChecker bool         `json:"enable_safety_checker"`
}

type falQueued struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type falStatus struct {
	Status string `json:"status"`
}

type falResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// FalProvider generates images through the fal.ai queue API.
type FalProvider struct {
	client *restClient
	config cloud.ImageProvider
}

func (p *FalProvider) Name() string { return ProviderFal }

// Generate queues the prompt, waits for COMPLETED on the status URL and
// reads the first image of the response. Default size is 1280x720.
func (p *FalProvider) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withProviderTimeout(ctx, p.config)
	defer cancel()

	model := req.APIPath
	if model == "" {
		model = p.config.DefaultPath
	}
	if model == "" {
		model = defaultFalModel
	}
	width, height := dimensions(req, p.config, 1280, 720)

	headers := http.Header{}
	headers.Set("Authorization", "Key "+p.client.apiKey)

	var queued falQueued
	submitURL := strings.TrimRight(p.client.baseURL, "/") + "/" + strings.TrimLeft(model, "/")
	body := falSubmit{
		Prompt:              req.Prompt,
		ImageSize:           falImageSize{Width: width, Height: height},
		NumImages:           1,
		NumInferenceSteps:   4,
		EnableSafetyChecker: false,
	}
	if err := p.client.post(ctx, submitURL, headers, body, &queued); err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "fal request failed")
	}
	if queued.StatusURL == "" || queued.ResponseURL == "" {
		return "", apperr.New(apperr.Internal, "fal did not return a queue handle")
	}
	slog.InfoContext(ctx, "fal request queued", "requestId", queued.RequestID, "model", model)

	err := poll(ctx, pollInterval(p.config), func(ctx context.Context) (bool, error) {
		var status falStatus
		if err := p.client.get(ctx, queued.StatusURL, headers, &status); err != nil {
			return false, apperr.Wrap(apperr.Internal, err, "fal polling failed")
		}
		slog.DebugContext(ctx, "fal polling", "requestId", queued.RequestID, "status", status.Status)
		return status.Status == "COMPLETED", nil
	})
	if err != nil {
		return "", err
	}

	var resp falResponse
	if err := p.client.get(ctx, queued.ResponseURL, headers, &resp); err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "fal result fetch failed")
	}
	if len(resp.Images) == 0 || resp.Images[0].URL == "" {
		return "", apperr.New(apperr.Internal, "failed to retrieve image url from fal")
	}
	return resp.Images[0].URL, nil
}
