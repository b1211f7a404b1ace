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

// Package imagery talks to the external image generation APIs and prepares
// their output for storage.
//
// Both providers are asynchronous: a prompt is submitted, the returned
// handle is polled until the image is ready, and the provider answers with a
// URL. Fetch downloads that URL and Watermarker stamps the result before it is
// uploaded by the artifact service.
package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
)

// Provider names used as keys of `[image_providers]`.
const (
	ProviderFlux = "flux"
	ProviderFal  = "fal"
)

// Request is one image generation call. Zero dimensions use the provider
// defaults and an empty APIPath uses the configured model path.
type Request struct {
	Prompt  string
	APIPath string
	Width   int
	Height  int
}

// Provider generates an image and returns the URL it can be downloaded from.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// NewProvider builds the provider configured under name.
func NewProvider(name string, cfg cloud.ImageProvider, httpClient *http.Client) (Provider, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := &restClient{
		http:    httpClient,
		baseURL: cfg.BaseURL,
		apiKey:  os.Getenv(cfg.APIKeyEnv),
	}
	switch name {
	case ProviderFlux:
		return &FluxProvider{client: c, config: cfg}, nil
	case ProviderFal:
		return &FalProvider{client: c, config: cfg}, nil
	default:
		return nil, apperr.New(apperr.Configuration, "unknown image provider %q", name)
	}
}

// restClient holds the plumbing shared by both providers.
type restClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func (c *restClient) post(ctx context.Context, url string, headers http.Header, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, headers, result)
}

func (c *restClient) get(ctx context.Context, url string, headers http.Header, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, headers, result)
}

func (c *restClient) do(req *http.Request, headers http.Header, result any) error {
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	slog.DebugContext(req.Context(), "image provider response", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image provider error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// poll calls check every interval until it reports done, returns an error or
// ctx ends. A deadline maps to Timeout.
func poll(ctx context.Context, interval time.Duration, check func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.Timeout, ctx.Err(), "image generation did not finish in time")
		case <-ticker.C:
			done, err := check(ctx)
			if err != nil || done {
				return err
			}
		}
	}
}

func pollInterval(cfg cloud.ImageProvider) time.Duration {
	if cfg.PollIntervalMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(cfg.PollIntervalMillis) * time.Millisecond
}

func withProviderTimeout(ctx context.Context, cfg cloud.ImageProvider) (context.Context, context.CancelFunc) {
	if cfg.TimeoutSeconds <= 0 {
		return context.WithTimeout(ctx, 2*time.Minute)
	}
	return context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
}

func dimensions(req Request, cfg cloud.ImageProvider, defWidth, defHeight int) (int, int) {
	w, h := req.Width, req.Height
	if w <= 0 {
		w = cfg.Width
	}
	if h <= 0 {
		h = cfg.Height
	}
	if w <= 0 {
		w = defWidth
	}
	if h <= 0 {
		h = defHeight
	}
	return w, h
}
