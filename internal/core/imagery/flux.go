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
	"net/url"
	"strings"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
)

const defaultFluxPath = "flux-dev"

// Flux result states that end polling with an error.
var fluxFailed = map[string]bool{
	"Error":             true,
	"Content Moderated": true,
	"Request Moderated": true,
}

type fluxSubmit struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type fluxHandle struct {
	ID string `json:"id"`
}

type fluxResult struct {
	Status string `json:"status"`
	Result struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// FluxProvider generates images with the Black Forest Labs API.
type FluxProvider struct {
	client *restClient
	config cloud.ImageProvider
}

func (p *FluxProvider) Name() string { return ProviderFlux }

// Generate submits the prompt and polls `get_result` until the sample is
// ready. Default size is 1024x1024.
func (p *FluxProvider) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withProviderTimeout(ctx, p.config)
	defer cancel()

	apiPath := req.APIPath
	if apiPath == "" {
		apiPath = p.config.DefaultPath
	}
	if apiPath == "" {
		apiPath = defaultFluxPath
	}
	width, height := dimensions(req, p.config, 1024, 1024)

	headers := http.Header{}
	headers.Set("x-key", p.client.apiKey)

	var handle fluxHandle
	submitURL := strings.TrimRight(p.client.baseURL, "/") + "/" + strings.TrimLeft(apiPath, "/")
	if err := p.client.post(ctx, submitURL, headers, fluxSubmit{Prompt: req.Prompt, Width: width, Height: height}, &handle); err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "flux request failed")
	}
	if handle.ID == "" {
		return "", apperr.New(apperr.Internal, "no request id received from flux")
	}
	slog.InfoContext(ctx, "flux request submitted", "id", handle.ID, "path", apiPath)

	resultURL := strings.TrimRight(p.client.baseURL, "/") + "/get_result?id=" + url.QueryEscape(handle.ID)
	var imageURL string
	err := poll(ctx, pollInterval(p.config), func(ctx context.Context) (bool, error) {
		var result fluxResult
		if err := p.client.get(ctx, resultURL, headers, &result); err != nil {
			return false, apperr.Wrap(apperr.Internal, err, "flux polling failed")
		}
		switch {
		case result.Status == "Ready":
			imageURL = result.Result.Sample
			return true, nil
		case fluxFailed[result.Status]:
			return false, apperr.New(apperr.Internal, "flux generation ended with status %q", result.Status)
		default:
			slog.DebugContext(ctx, "flux polling", "id", handle.ID, "status", result.Status)
			return false, nil
		}
	})
	if err != nil {
		return "", err
	}
	if imageURL == "" {
		return "", apperr.New(apperr.Internal, "failed to retrieve image url from flux")
	}
	return imageURL, nil
}
