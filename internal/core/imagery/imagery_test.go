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

package imagery_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pymenow/f3backEnd/internal/cloud"
	"github.com/pymenow/f3backEnd/internal/core/apperr"
	"github.com/pymenow/f3backEnd/internal/core/imagery"
)

func TestFluxPollsUntilReady(t *testing.T) {
	t.Setenv("TEST_FLUX_KEY", "secret")
	var polls atomic.Int32
	var submitted map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-key"))
		switch r.URL.Path {
		case "/flux-dev":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "req-1"})
		case "/get_result":
			assert.Equal(t, "req-1", r.URL.Query().Get("id"))
			if polls.Add(1) < 3 {
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "Pending"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "Ready", "result": map[string]any{"sample": "https://img/1.png"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := imagery.NewProvider(imagery.ProviderFlux, cloud.ImageProvider{BaseURL: srv.URL, APIKeyEnv: "TEST_FLUX_KEY", PollIntervalMillis: 1}, srv.Client())
	require.NoError(t, err)

	url, err := p.Generate(context.Background(), imagery.Request{Prompt: "a lighthouse"})
	require.NoError(t, err)
	assert.Equal(t, "https://img/1.png", url)
	assert.Equal(t, int32(3), polls.Load())
	assert.Equal(t, "a lighthouse", submitted["prompt"])
	assert.Equal(t, float64(1024), submitted["width"])
	assert.Equal(t, float64(1024), submitted["height"])
}

func TestFluxModeratedFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "req-2"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "Content Moderated"})
	}))
	defer srv.Close()

	p, err := imagery.NewProvider(imagery.ProviderFlux, cloud.ImageProvider{BaseURL: srv.URL, PollIntervalMillis: 1}, srv.Client())
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), imagery.Request{Prompt: "x"})
	assert.ErrorContains(t, err, "Content Moderated")
}

func TestFalQueueFlow(t *testing.T) {
	t.Setenv("TEST_FAL_KEY", "k")
	var srv *httptest.Server
	var statusCalls atomic.Int32
	var submitted map[string]any

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key k", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/fal-ai/flux/schnell":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"request_id":   "q1",
				"status_url":   srv.URL + "/status/q1",
				"response_url": srv.URL + "/result/q1",
			})
		case "/status/q1":
			status := "IN_PROGRESS"
			if statusCalls.Add(1) > 1 {
				status = "COMPLETED"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"status": status})
		case "/result/q1":
			_ = json.NewEncoder(w).Encode(map[string]any{"images": []any{map[string]any{"url": "https://fal/img.png"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := imagery.NewProvider(imagery.ProviderFal, cloud.ImageProvider{BaseURL: srv.URL, APIKeyEnv: "TEST_FAL_KEY", PollIntervalMillis: 1}, srv.Client())
	require.NoError(t, err)

	url, err := p.Generate(context.Background(), imagery.Request{Prompt: "desert"})
	require.NoError(t, err)
	assert.Equal(t, "https://fal/img.png", url)
	size := submitted["image_size"].(map[string]any)
	assert.Equal(t, float64(1280), size["width"])
	assert.Equal(t, float64(720), size["height"])
	assert.Equal(t, float64(4), submitted["num_inference_steps"])
	assert.Equal(t, false, submitted["enable_safety_checker"])
}

func TestUnknownProvider(t *testing.T) {
	_, err := imagery.NewProvider("dalle", cloud.ImageProvider{}, nil)
	assert.Equal(t, apperr.Configuration, apperr.KindOf(err))
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestWatermarkSoutheast(t *testing.T) {
	mark := solidPNG(t, 4, 4, color.NRGBA{R: 255, A: 255})
	w, err := imagery.NewWatermarker(bytes.NewReader(mark), nil)
	require.NoError(t, err)
	require.True(t, w.Enabled())

	out, err := w.Apply(solidPNG(t, 40, 30, color.NRGBA{B: 255, A: 255}))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	r, _, b, _ := img.At(40-imagery.WatermarkMargin-1, 30-imagery.WatermarkMargin-1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0), b)

	r, _, b, _ = img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), r)
	assert.Equal(t, uint32(0xffff), b)
}

func TestWatermarkDisabledIsIdentity(t *testing.T) {
	var w *imagery.Watermarker
	data := []byte("anything")
	out, err := w.Apply(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestFetchRejectsNonImages(t *testing.T) {
	pngData := solidPNG(t, 2, 2, color.White)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.png" {
			_, _ = w.Write(pngData)
			return
		}
		_, _ = w.Write([]byte("plain text, not an image"))
	}))
	defer srv.Close()

	data, mime, err := imagery.Fetch(context.Background(), srv.Client(), srv.URL+"/ok.png", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, pngData, data)

	_, _, err = imagery.Fetch(context.Background(), srv.Client(), srv.URL+"/text", 1<<20)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, _, err = imagery.Fetch(context.Background(), srv.Client(), srv.URL+"/ok.png", 8)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}
